package ext

import (
	"context"
	"log/slog"

	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobEnqueuedEntry struct {
	name string
	hook JobEnqueued
}

type jobReportedEntry struct {
	name string
	hook JobReported
}

type jobRetriedEntry struct {
	name string
	hook JobRetried
}

type triggerFailedEntry struct {
	name string
	hook TriggerFailed
}

type bulkRetryFinishedEntry struct {
	name string
	hook BulkRetryFinished
}

type jobDeletedEntry struct {
	name string
	hook JobDeleted
}

type fileDeleteFailedEntry struct {
	name string
	hook FileDeleteFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobEnqueued       []jobEnqueuedEntry
	jobReported       []jobReportedEntry
	jobRetried        []jobRetriedEntry
	triggerFailed     []triggerFailedEntry
	bulkRetryFinished []bulkRetryFinishedEntry
	jobDeleted        []jobDeletedEntry
	fileDeleteFailed  []fileDeleteFailedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobEnqueued); ok {
		r.jobEnqueued = append(r.jobEnqueued, jobEnqueuedEntry{name, h})
	}
	if h, ok := e.(JobReported); ok {
		r.jobReported = append(r.jobReported, jobReportedEntry{name, h})
	}
	if h, ok := e.(JobRetried); ok {
		r.jobRetried = append(r.jobRetried, jobRetriedEntry{name, h})
	}
	if h, ok := e.(TriggerFailed); ok {
		r.triggerFailed = append(r.triggerFailed, triggerFailedEntry{name, h})
	}
	if h, ok := e.(BulkRetryFinished); ok {
		r.bulkRetryFinished = append(r.bulkRetryFinished, bulkRetryFinishedEntry{name, h})
	}
	if h, ok := e.(JobDeleted); ok {
		r.jobDeleted = append(r.jobDeleted, jobDeletedEntry{name, h})
	}
	if h, ok := e.(FileDeleteFailed); ok {
		r.fileDeleteFailed = append(r.fileDeleteFailed, fileDeleteFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Queue event emitters
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *queue.Job) {
	for _, e := range r.jobEnqueued {
		if err := e.hook.OnJobEnqueued(ctx, j); err != nil {
			r.logHookError("OnJobEnqueued", e.name, err)
		}
	}
}

// EmitJobReported notifies all extensions that implement JobReported.
func (r *Registry) EmitJobReported(ctx context.Context, j *queue.Job) {
	for _, e := range r.jobReported {
		if err := e.hook.OnJobReported(ctx, j); err != nil {
			r.logHookError("OnJobReported", e.name, err)
		}
	}
}

// EmitJobRetried notifies all extensions that implement JobRetried.
func (r *Registry) EmitJobRetried(ctx context.Context, j *queue.Job) {
	for _, e := range r.jobRetried {
		if err := e.hook.OnJobRetried(ctx, j); err != nil {
			r.logHookError("OnJobRetried", e.name, err)
		}
	}
}

// EmitTriggerFailed notifies all extensions that implement TriggerFailed.
func (r *Registry) EmitTriggerFailed(ctx context.Context, j *queue.Job, triggerErr error) {
	for _, e := range r.triggerFailed {
		if err := e.hook.OnTriggerFailed(ctx, j, triggerErr); err != nil {
			r.logHookError("OnTriggerFailed", e.name, err)
		}
	}
}

// EmitBulkRetryFinished notifies all extensions that implement
// BulkRetryFinished.
func (r *Registry) EmitBulkRetryFinished(ctx context.Context, total, failed int) {
	for _, e := range r.bulkRetryFinished {
		if err := e.hook.OnBulkRetryFinished(ctx, total, failed); err != nil {
			r.logHookError("OnBulkRetryFinished", e.name, err)
		}
	}
}

// EmitJobDeleted notifies all extensions that implement JobDeleted.
func (r *Registry) EmitJobDeleted(ctx context.Context, jobID id.JobID) {
	for _, e := range r.jobDeleted {
		if err := e.hook.OnJobDeleted(ctx, jobID); err != nil {
			r.logHookError("OnJobDeleted", e.name, err)
		}
	}
}

// EmitFileDeleteFailed notifies all extensions that implement
// FileDeleteFailed.
func (r *Registry) EmitFileDeleteFailed(ctx context.Context, fileID id.FileID, deleteErr error) {
	for _, e := range r.fileDeleteFailed {
		if err := e.hook.OnFileDeleteFailed(ctx, fileID, deleteErr); err != nil {
			r.logHookError("OnFileDeleteFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the queue.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
