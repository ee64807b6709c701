package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dutch-auction-service/internal/config"
	"dutch-auction-service/internal/logging"
)

// environment is what every command shares once flags are parsed
type environment struct {
	cfg    *config.Config
	logger zerolog.Logger
}

var (
	cfgFile   string
	logLevel  string
	driver    string
	envHandle *environment
)

var rootCmd = &cobra.Command{
	Use:           "auction-service",
	Short:         "Descending-price auctions with collateral and keeper-driven upkeep",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envHandle != nil {
			return nil
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if driver != "" {
			cfg.Storage.Driver = driver
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		envHandle = &environment{cfg: cfg, logger: logging.NewLogger(cfg.Logging)}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Override storage driver (postgres|memory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(fundCmd)
	rootCmd.AddCommand(grantAdminCmd)
	rootCmd.AddCommand(revokeAdminCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

func getEnv() *environment {
	if envHandle == nil {
		panic("environment not initialized; PersistentPreRunE not executed")
	}
	return envHandle
}
