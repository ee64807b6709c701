package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/ports/inbound"
)

var (
	createSeller        string
	createStartPrice    string
	createEndPrice      string
	createDecrement     string
	createInterval      time.Duration
	createDuration      time.Duration
	createDepositToken  string
	createDepositAmount string

	listStatus   string
	listPage     int
	listPageSize int

	startCaller string

	fundToken  string
	fundOwner  string
	fundAmount string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new auction in the created state",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := createRequest()
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd.Context(), getEnv())
		if err != nil {
			return err
		}
		defer rt.Close()

		created, err := rt.services.Auctions.CreateAuction(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), inbound.NewAuctionView(created, time.Now()))
	},
}

func createRequest() (inbound.CreateAuctionRequest, error) {
	var req inbound.CreateAuctionRequest
	var err error

	if req.Seller, err = parseAddress("seller", createSeller); err != nil {
		return req, err
	}
	if req.DepositToken, err = parseAddress("deposit-token", createDepositToken); err != nil {
		return req, err
	}
	amounts := []struct {
		flag string
		raw  string
		dst  *decimal.Decimal
	}{
		{"start-price", createStartPrice, &req.StartPrice},
		{"end-price", createEndPrice, &req.EndPrice},
		{"decrement", createDecrement, &req.PriceDecrement},
		{"deposit-amount", createDepositAmount, &req.DepositAmount},
	}
	for _, a := range amounts {
		if *a.dst, err = decimal.NewFromString(a.raw); err != nil {
			return req, fmt.Errorf("--%s must be a decimal, got %q", a.flag, a.raw)
		}
	}
	req.DecrementInterval = createInterval
	req.Duration = createDuration
	return req, nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List auctions in creation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := inbound.ListAuctionsRequest{Page: listPage, PageSize: listPageSize}
		if listStatus != "" {
			status, ok := auction.ParseStatus(listStatus)
			if !ok {
				return fmt.Errorf("--status must be one of created, started, ended")
			}
			req.Status = &status
		}

		rt, err := openRuntime(cmd.Context(), getEnv())
		if err != nil {
			return err
		}
		defer rt.Close()

		views, err := rt.services.Auctions.ListAuctions(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), views)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <auction-id>",
	Short: "Show one auction with its audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid auction id %q", args[0])
		}

		rt, err := openRuntime(cmd.Context(), getEnv())
		if err != nil {
			return err
		}
		defer rt.Close()

		view, err := rt.services.Auctions.GetAuction(cmd.Context(), id)
		if err != nil {
			return err
		}
		events, err := rt.services.Auctions.ListEvents(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{"auction": view, "events": events})
	},
}

var startCmd = &cobra.Command{
	Use:   "start <auction-id>",
	Short: "Start an auction; the caller must be an admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid auction id %q", args[0])
		}
		caller, err := parseAddress("caller", startCaller)
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd.Context(), getEnv())
		if err != nil {
			return err
		}
		defer rt.Close()

		started, err := rt.services.Auctions.StartAuction(cmd.Context(), inbound.StartAuctionRequest{AuctionID: id, Caller: caller})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), inbound.NewAuctionView(started, time.Now()))
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Credit deposit-asset balance to an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenAddr, err := parseAddress("token", fundToken)
		if err != nil {
			return err
		}
		owner, err := parseAddress("owner", fundOwner)
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(fundAmount)
		if err != nil {
			return fmt.Errorf("--amount must be a decimal, got %q", fundAmount)
		}

		rt, err := openRuntime(cmd.Context(), getEnv())
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if err := rt.services.Collateral.Fund(ctx, inbound.FundRequest{Token: tokenAddr, Owner: owner, Amount: amount}); err != nil {
			return err
		}
		balance, err := rt.services.Collateral.BalanceOf(ctx, tokenAddr, owner)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %s\n", owner.Hex(), balance)
		return nil
	},
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	createCmd.Flags().StringVar(&createSeller, "seller", "", "Seller address")
	createCmd.Flags().StringVar(&createStartPrice, "start-price", "", "Opening price")
	createCmd.Flags().StringVar(&createEndPrice, "end-price", "0", "Floor price")
	createCmd.Flags().StringVar(&createDecrement, "decrement", "", "Price drop per interval")
	createCmd.Flags().DurationVar(&createInterval, "interval", time.Minute, "Time between price drops")
	createCmd.Flags().DurationVar(&createDuration, "duration", time.Hour, "Auction length once started")
	createCmd.Flags().StringVar(&createDepositToken, "deposit-token", "", "Deposit asset address")
	createCmd.Flags().StringVar(&createDepositAmount, "deposit-amount", "0", "Deposit required to bid")
	_ = createCmd.MarkFlagRequired("seller")
	_ = createCmd.MarkFlagRequired("start-price")
	_ = createCmd.MarkFlagRequired("decrement")
	_ = createCmd.MarkFlagRequired("deposit-token")

	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (created|started|ended)")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 10, "Auctions per page")

	startCmd.Flags().StringVar(&startCaller, "caller", "", "Admin address starting the auction")
	_ = startCmd.MarkFlagRequired("caller")

	fundCmd.Flags().StringVar(&fundToken, "token", "", "Deposit asset address")
	fundCmd.Flags().StringVar(&fundOwner, "owner", "", "Account to credit")
	fundCmd.Flags().StringVar(&fundAmount, "amount", "", "Amount to credit")
	_ = fundCmd.MarkFlagRequired("token")
	_ = fundCmd.MarkFlagRequired("owner")
	_ = fundCmd.MarkFlagRequired("amount")
}
