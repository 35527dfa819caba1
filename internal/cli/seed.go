package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/config"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/database"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/logging"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/models"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo contacts into the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		if err := db.MigrateUp(); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		repo := repository.NewSQL(db.Conn)
		ctx := cmd.Context()
		err = repo.InTx(ctx, func(tx repository.ContactTx) error {
			martyEmail := "martymcfly@hillvalley.edu"
			docEmail := "docbrown@hillvalley.edu"
			phone := "0001112222"

			marty, err := tx.Create(ctx, repository.CreateParams{
				Email:          &martyEmail,
				PhoneNumber:    &phone,
				LinkPrecedence: models.LinkPrecedencePrimary,
			})
			if err != nil {
				return err
			}

			_, err = tx.Create(ctx, repository.CreateParams{
				Email:          &docEmail,
				PhoneNumber:    &phone,
				LinkPrecedence: models.LinkPrecedenceSecondary,
				LinkedID:       &marty.ID,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("seed database: %w", err)
		}

		log.Info().Msg("seeding completed")
		return nil
	},
}
