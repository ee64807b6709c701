package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dutch-auction-service/internal/adapters/db"
	"dutch-auction-service/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or inspect the PostgreSQL schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		env := getEnv()
		if env.cfg.Storage.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate requires the %s driver", config.DriverPostgres)
		}

		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		conn, err := db.NewConnection(cmd.Context(), env.cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		switch direction {
		case "down":
			err = conn.MigrateDown(cmd.Context())
		case "status":
			err = conn.MigrationStatus(cmd.Context())
		default:
			err = conn.MigrateUp(cmd.Context())
		}
		if err != nil {
			return err
		}

		env.logger.Info().Str("direction", direction).Msg("Migrations completed successfully")
		return nil
	},
}
