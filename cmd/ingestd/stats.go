package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

func newStatsCmd() *cobra.Command {
	var appID, orgID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate queue statistics",
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

			stats, err := st.JobStats(ctx, queue.StatsFilter{AppID: appID, OrgID: orgID})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}

	cmd.Flags().StringVar(&appID, "app-id", "", "scope stats to an application")
	cmd.Flags().StringVar(&orgID, "org-id", "", "scope stats to an organization")
	return cmd
}
