package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	ingest "github.com/Ricou-IA/baikal-ingest"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run store schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			cfg, err := ingest.LoadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, cleanup, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("migrations applied", slog.String("driver", cfg.StoreDriver))
			return nil
		},
	}
}
