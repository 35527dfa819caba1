package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/config"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/database"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down [steps]|version]",
	Short: "Manage the database schema",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New(cfg.LogLevel, cfg.LogFormat)

		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		switch args[0] {
		case "up":
			if err := db.MigrateUp(); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")

		case "down":
			steps := 1
			if len(args) > 1 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid steps argument %q", args[1])
				}
				steps = n
			}
			if err := db.MigrateDown(steps); err != nil {
				return err
			}
			log.Info().Int("steps", steps).Msg("migrations rolled back")

		case "version":
			version, dirty, err := db.MigrateVersion()
			if err != nil {
				return err
			}
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")

		default:
			return fmt.Errorf("unknown migrate command %q", args[0])
		}
		return nil
	},
}
