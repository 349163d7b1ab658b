// Package ext defines the extension system for the ingest core.
//
// Extensions are notified of queue lifecycle events and can react to
// them: recording metrics, emitting audit trails, forwarding alerts.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobRetried(ctx context.Context, j *queue.Job) error {
//	    log.Printf("job %s reset and re-triggered", j.ID)
//	    return nil
//	}
//
// # Queue Lifecycle Hooks
//
//   - [JobEnqueued] — a file was registered and its job accepted
//   - [JobReported] — the worker reported an outcome for a job
//   - [JobRetried] — a job was reset and the worker re-triggered
//   - [TriggerFailed] — a job was reset but the worker call failed
//   - [BulkRetryFinished] — a bulk retry pass finished
//   - [JobDeleted] — a job row was removed by the deletion guard
//   - [FileDeleteFailed] — the cascade file delete after a job delete failed
//
// # Other Hooks
//
//   - [Shutdown] — the process is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
