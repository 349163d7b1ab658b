package console

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// Report is a worker's out-of-band status write for one file's job.
type Report struct {
	// Status must be sent, completed, or failed. Workers never write
	// queued; that status belongs to the core.
	Status queue.Status `json:"status"`
	// ErrorMessage carries the failure reason on a failed report.
	ErrorMessage string `json:"error_message,omitempty"`
	// WorkerResponse is a free-form diagnostic blob stored verbatim.
	WorkerResponse json.RawMessage `json:"worker_response,omitempty"`
	// NextRetryAt is the worker's own backoff schedule on failure. Left
	// nil, the core fills in a hint from its backoff strategy.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

// Report applies a worker status write through the store upsert,
// creating the row when the job vanished in between. Last writer wins.
//
// Mapping per status: sent stamps the attempt start; failed increments
// attempts, records the error, and ensures next_retry_at carries at
// least a backoff hint; completed clears the error and lets the store
// set CompletedAt.
func (s *Service) Report(ctx context.Context, fileID id.FileID, r Report) (*queue.Job, error) {
	now := time.Now().UTC()
	upd := queue.StatusUpdate{WorkerResponse: r.WorkerResponse}

	switch r.Status {
	case queue.StatusSent:
		upd.LastAttemptAt = &now
	case queue.StatusCompleted:
		upd.ClearError = true
	case queue.StatusFailed:
		upd.IncrementAttempts = true
		upd.ErrorMessage = r.ErrorMessage
		upd.LastAttemptAt = &now
		upd.NextRetryAt = r.NextRetryAt
		if upd.NextRetryAt == nil {
			hint := now.Add(s.backoff.Delay(s.nextAttempt(ctx, fileID)))
			upd.NextRetryAt = &hint
		}
	default:
		return nil, fmt.Errorf("console: report status %q: %w", r.Status, ingest.ErrInvalidStatus)
	}

	j, err := s.jobs.UpsertStatus(ctx, fileID, r.Status, upd)
	if err != nil {
		return nil, err
	}
	s.ext.EmitJobReported(ctx, j)

	s.logger.Debug("worker report applied",
		slog.String("file_id", fileID.String()),
		slog.String("status", string(r.Status)),
		slog.Int("attempts", j.Attempts),
	)
	return j, nil
}

// nextAttempt derives the 1-indexed retry attempt the backoff hint is
// for. A vanished job counts as its first failure.
func (s *Service) nextAttempt(ctx context.Context, fileID id.FileID) int {
	if cur, err := s.jobs.GetJob(ctx, fileID); err == nil {
		return cur.Attempts + 1
	}
	return 1
}
