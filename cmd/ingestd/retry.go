package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/retry"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

func newRetryCmd() *cobra.Command {
	var (
		all   bool
		appID string
		orgID string
	)

	cmd := &cobra.Command{
		Use:   "retry [file-id]",
		Short: "Retry one job by file ID, or every non-terminal job with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass exactly one of <file-id> or --all")
			}

			logger := newLogger()

			cfg, err := ingest.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.TriggerURL == "" {
				return errors.New("INGESTD_TRIGGER_URL must not be empty")
			}

			ctx := cmd.Context()
			st, cleanup, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			trig := trigger.New(cfg.TriggerURL,
				trigger.WithBearerToken(cfg.TriggerToken),
				trigger.WithTimeout(cfg.TriggerTimeout),
				trigger.WithLogger(logger),
			)
			svc := retry.NewService(st, st, trig,
				retry.WithLogger(logger),
				retry.WithBulkLimit(cfg.BulkRetryLimit),
			)

			if all {
				res, err := svc.RetryAll(ctx, queue.StatsFilter{AppID: appID, OrgID: orgID})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fileID, err := id.ParseFileID(args[0])
			if err != nil {
				return fmt.Errorf("invalid file id: %w", err)
			}

			j, err := svc.Retry(ctx, fileID)
			if err != nil {
				// The reset stands on a failed hand-off; report it and
				// still print the queued job.
				if j == nil || !errors.Is(err, ingest.ErrTriggerFailed) {
					return err
				}
				logger.Warn("job reset but trigger failed", slog.String("error", err.Error()))
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(j)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "retry every failed and queued job")
	cmd.Flags().StringVar(&appID, "app-id", "", "scope --all to an application")
	cmd.Flags().StringVar(&orgID, "org-id", "", "scope --all to an organization")
	return cmd
}
