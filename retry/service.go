package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/ext"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

// DefaultBulkLimit caps how many failed and how many queued jobs a
// single bulk sweep fetches. The sweep is bounded, not unbounded.
const DefaultBulkLimit = 1000

// Trigger invokes the external processing worker. Implementations must
// not mutate any store; outcomes flow back through the worker's own
// status writes. *trigger.Client satisfies this.
type Trigger interface {
	Trigger(ctx context.Context, p *trigger.Payload) error
}

// Service orchestrates single and bulk retries over a job store and
// file registry.
type Service struct {
	jobs      queue.Store
	files     file.Registry
	trigger   Trigger
	logger    *slog.Logger
	ext       *ext.Registry
	bulkLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRegistry sets the extension registry notified on retry events.
func WithRegistry(r *ext.Registry) Option {
	return func(s *Service) { s.ext = r }
}

// WithBulkLimit caps the number of jobs fetched per status in a bulk
// sweep. n <= 0 keeps DefaultBulkLimit.
func WithBulkLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.bulkLimit = n
		}
	}
}

// NewService creates a retry service.
func NewService(jobs queue.Store, files file.Registry, trig Trigger, opts ...Option) *Service {
	s := &Service{
		jobs:      jobs,
		files:     files,
		trigger:   trig,
		logger:    slog.Default(),
		ext:       ext.NewRegistry(slog.Default()),
		bulkLimit: DefaultBulkLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retry resets the job tracking fileID back to queued and re-triggers
// the worker with a payload rebuilt from the current file record.
//
// The reset happens before the trigger call. On trigger failure the
// reset job is returned together with the error: callers can tell
// "nothing happened" (nil job) from "reset but not delivered" (job plus
// an error wrapping ingest.ErrTriggerFailed).
func (s *Service) Retry(ctx context.Context, fileID id.FileID) (*queue.Job, error) {
	j, err := s.jobs.GetJob(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !j.Status.CanRetry() {
		return nil, fmt.Errorf("%w: job %s is %s", ingest.ErrNotRetryable, j.ID, j.Status)
	}

	// The payload is rebuilt from the live file record, never replayed
	// from a stored copy. No file, no retry.
	f, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	j, err = s.jobs.UpsertStatus(ctx, fileID, queue.StatusQueued, queue.StatusUpdate{
		ResetAttempts: true,
		ClearError:    true,
		NextRetryAt:   &now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.files.ResetProcessing(ctx, fileID); err != nil {
		// The job reset already stands; a stale processing mirror only
		// affects display.
		s.logger.Warn("reset processing mirror failed",
			slog.String("file_id", fileID.String()),
			slog.String("error", err.Error()),
		)
	}

	p := trigger.BuildPayload(j, f)
	if err := s.trigger.Trigger(ctx, p); err != nil {
		s.ext.EmitTriggerFailed(ctx, j, err)
		s.logger.Warn("retry trigger failed",
			slog.String("job_id", j.ID.String()),
			slog.String("file_id", fileID.String()),
			slog.String("error", err.Error()),
		)
		return j, err
	}

	s.ext.EmitJobRetried(ctx, j)
	s.logger.Info("job retried",
		slog.String("job_id", j.ID.String()),
		slog.String("file_id", fileID.String()),
		slog.Int("max_attempts", j.MaxAttempts),
	)
	return j, nil
}

// RetryAll sweeps every failed and queued job in the given tenant scope
// and retries each one independently. The sweep never aborts early: a
// job that cannot be retried lands in the result's error list and the
// loop moves on.
//
// Count reports jobs that were reset to queued, including those whose
// trigger call then failed. Errors carries one entry per job that
// reported any failure.
func (s *Service) RetryAll(ctx context.Context, f queue.StatsFilter) (*BulkResult, error) {
	failed, err := s.jobs.ListJobs(ctx, queue.ListOpts{
		Status: queue.StatusFailed,
		AppID:  f.AppID,
		OrgID:  f.OrgID,
		Limit:  s.bulkLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("retry: list failed jobs: %w", err)
	}
	queued, err := s.jobs.ListJobs(ctx, queue.ListOpts{
		Status: queue.StatusQueued,
		AppID:  f.AppID,
		OrgID:  f.OrgID,
		Limit:  s.bulkLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("retry: list queued jobs: %w", err)
	}

	res := &BulkResult{Errors: []JobError{}}
	for _, d := range append(failed, queued...) {
		j, retryErr := s.Retry(ctx, d.FileID)
		if j != nil {
			res.Count++
		}
		if retryErr != nil {
			res.Errors = append(res.Errors, JobError{
				FileID:  d.FileID,
				Message: retryErr.Error(),
			})
		}
	}

	s.ext.EmitBulkRetryFinished(ctx, res.Count, len(res.Errors))
	s.logger.Info("bulk retry finished",
		slog.Int("count", res.Count),
		slog.Int("errors", len(res.Errors)),
		slog.String("app_id", f.AppID),
		slog.String("org_id", f.OrgID),
	)
	return res, nil
}
