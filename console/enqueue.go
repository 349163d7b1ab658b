package console

import (
	"context"
	"fmt"
	"log/slog"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

// Enqueue registers an uploaded file, creates its job in queued, and
// issues the initial trigger call. A nil file ID is minted; the
// processing mirror starts at pending.
//
// Like retry, the enqueue is optimistic toward the worker: when the
// trigger call fails the file and job are already persisted, the job is
// returned alongside an error wrapping ingest.ErrTriggerFailed, and the
// operator's remedy is a plain retry.
func (s *Service) Enqueue(ctx context.Context, f *file.File) (*queue.Job, error) {
	if f == nil {
		return nil, fmt.Errorf("console: enqueue: nil file")
	}
	if f.Filename == "" {
		return nil, fmt.Errorf("console: enqueue: filename required")
	}

	if f.ID.IsNil() {
		f.ID = id.NewFileID()
	}
	if f.CreatedAt.IsZero() {
		f.Entity = ingest.NewEntity()
	}
	if f.ProcessingStatus == "" {
		f.ProcessingStatus = file.ProcessingPending
	}

	if err := s.files.CreateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("console: enqueue: register file: %w", err)
	}

	j := queue.NewJob(f.ID, s.maxAttempts)
	if err := s.jobs.CreateJob(ctx, j); err != nil {
		return nil, err
	}
	s.ext.EmitJobEnqueued(ctx, j)

	p := trigger.BuildPayload(j, f)
	if err := s.trigger.Trigger(ctx, p); err != nil {
		s.ext.EmitTriggerFailed(ctx, j, err)
		s.logger.Warn("initial trigger failed",
			slog.String("job_id", j.ID.String()),
			slog.String("file_id", f.ID.String()),
			slog.String("error", err.Error()),
		)
		return j, err
	}

	s.logger.Info("file enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("file_id", f.ID.String()),
		slog.String("filename", f.Filename),
	)
	return j, nil
}
