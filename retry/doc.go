// Package retry implements the operator-driven retry path: resetting a
// job back to queued, rewinding its file's processing mirror, and
// re-triggering the external worker with a freshly built payload.
//
// Retry is always explicit. Nothing in this package runs on a timer or
// reacts to failures on its own; a job sits in failed until an operator
// (or the bulk sweep) acts on it. That keeps retry storms impossible by
// construction.
//
// # State machine
//
// Only failed and queued jobs are retryable. A retry resets the job to
// queued with attempts zeroed, the error cleared, and next_retry_at set
// to now, then issues one trigger call. Sent jobs are in flight and
// completed jobs are terminal; retrying either returns
// [ingest.ErrNotRetryable].
//
// # Optimistic reset
//
// The job is reset before the trigger call is issued. When the trigger
// fails the reset stands: the job shows as queued, the error wraps
// [ingest.ErrTriggerFailed], and the operator can simply retry again.
// Visibility of the reset is preferred over atomicity with the worker
// call.
//
// # Bulk retry
//
// [Service.RetryAll] sweeps every failed and queued job (optionally
// scoped to a tenant), retrying each one independently and sequentially.
// One job's failure never aborts the sweep; the result reports how many
// jobs were reset alongside the per-job errors.
package retry
