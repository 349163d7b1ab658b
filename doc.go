// Package ingest provides the job queue core of the Baikal document
// ingestion platform. It tracks uploaded files through an asynchronous
// processing pipeline, exposes aggregate queue statistics, supports
// manual and bulk retry with exact trigger payload reconstruction, and
// enforces deletion invariants tied to job state.
//
// Ingest is designed as a library, not a service. Import it, configure a
// store, and drive the queue from your own transport. A reference HTTP
// surface lives in the api package and a thin binary in cmd/ingestd.
//
// # Quick Start
//
//	st := memory.New()
//	tr := trigger.New(workerURL, trigger.WithBearerToken(token))
//	svc := console.NewService(st, st, tr)
//	jobs, err := svc.ListJobs(ctx, console.ListParams{Status: queue.StatusFailed})
//
// # Architecture
//
// Ingest follows a composable store pattern where each subsystem (queue,
// file) defines its own store interface. A single backend implements all
// of them; backends exist for Postgres (pgx and Bun), SQLite, MongoDB,
// and memory.
//
// The core never processes documents itself. It hands files to an
// external worker through a one-way HTTP trigger and the worker writes
// results back through the queue store. There is no internal scheduler
// and no background goroutine; every operation is a synchronous call.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package ingest
