// Package console provides the operator-facing queue operations: the
// dashboard read paths (stats, joined job listing), the submission path
// that registers a file and enqueues its job, the worker report path,
// and the guarded delete.
//
// # Read paths
//
// [Service.Stats] recomputes per-status counts from the source rows on
// every call; nothing is cached. [Service.ListJobs] returns jobs joined
// with their file and uploader, newest first. Free-text search refines
// the fetched page in the service layer (case-insensitive match on
// filename and uploader email), so a searched page may carry fewer rows
// than the requested limit.
//
// # Submission
//
// [Service.Enqueue] registers the file, creates its job in queued, and
// issues the initial trigger call. Payload construction is shared with
// the retry path, so the worker sees identical shapes on first delivery
// and on every retry.
//
// # Worker reports
//
// [Service.Report] applies the worker's out-of-band status writes
// (sent, completed, failed) through the store upsert. A failure report
// without a next_retry_at gets a backoff-derived hint; the core never
// acts on that hint itself.
//
// # Deletion
//
// [Service.DeleteJob] refuses to delete completed jobs (fail closed)
// and otherwise removes the job row, then best-effort deletes the file.
package console
