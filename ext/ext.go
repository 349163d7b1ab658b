package ext

import (
	"context"

	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Queue lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a file is registered and its job accepted.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *queue.Job) error
}

// JobReported is called after the worker's outcome for a job is
// recorded. The job carries the status it just landed on.
type JobReported interface {
	OnJobReported(ctx context.Context, j *queue.Job) error
}

// JobRetried is called after a job is reset and the worker successfully
// re-triggered.
type JobRetried interface {
	OnJobRetried(ctx context.Context, j *queue.Job) error
}

// TriggerFailed is called when a job was reset but the worker trigger
// call failed. The reset stands; the job stays queued.
type TriggerFailed interface {
	OnTriggerFailed(ctx context.Context, j *queue.Job, err error) error
}

// BulkRetryFinished is called after a bulk retry pass over failed and
// queued jobs completes. failed counts jobs whose retry reported an
// error.
type BulkRetryFinished interface {
	OnBulkRetryFinished(ctx context.Context, total, failed int) error
}

// JobDeleted is called after the deletion guard removes a job row.
type JobDeleted interface {
	OnJobDeleted(ctx context.Context, jobID id.JobID) error
}

// FileDeleteFailed is called when the cascade file delete following a
// job delete fails. The job row is already gone.
type FileDeleteFailed interface {
	OnFileDeleteFailed(ctx context.Context, fileID id.FileID, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
