// Package sqlite implements the store on SQLite via the pure-Go
// modernc driver, so it runs without cgo. Single-file database, WAL
// journaling, embedded SQL migrations. Meant for single-node
// deployments, local development and tests.
//
// Usage:
//
//	store, err := sqlite.New("/var/lib/ingest/queue.db")
//	if err != nil { ... }
//	defer store.Close()
//	if err := store.Migrate(ctx); err != nil { ... }
package sqlite
