// Package queue defines the ingestion job entity, its status machine,
// and the store interface.
//
// # Job Entity
//
// A [Job] tracks one uploaded file through the asynchronous processing
// pipeline. It embeds [ingest.Entity] for timestamps and progresses
// through a status machine driven from two sides: the external worker
// reports outcomes, operators retry and delete.
//
//	queued → sent → completed
//	queued → sent → failed
//	failed → queued   (manual or bulk retry)
//	queued → queued   (retry of a stuck job, idempotent re-trigger)
//
// Completed is the only terminal status: a completed job is never
// retried and never resurrected. Fields of note:
//   - FileID: the uploaded file this job tracks (unique per live job)
//   - Attempts / MaxAttempts: worker-incremented counter and advisory
//     ceiling; a manual retry resets Attempts and may exceed the ceiling
//   - NextRetryAt: scheduling hint for the worker, no timer fires on it
//   - WorkerResponse: raw diagnostic blob from the worker, never parsed
//
// # Store
//
// [Store] is the persistence contract. Reads are keyed by file
// (GetJob, UpsertStatus) because the file is the business key; deletion
// is keyed by job ID. ListJobs returns [JobDetail] rows joined against
// the file registry; when a tenant filter (app, org) is active, jobs
// whose file is gone are excluded, otherwise they are returned with a
// nil File.
//
// Status writes go through [Store.UpsertStatus], a single-row
// last-writer-wins upsert shared by the worker write-back contract and
// the retry path. It maintains the completion invariant: CompletedAt is
// set when and only when the status lands on completed.
package queue
