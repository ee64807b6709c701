package main

import "dutch-auction-service/internal/cli"

func main() {
	cli.Execute()
}
