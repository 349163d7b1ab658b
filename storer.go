package ingest

import "context"

// Storer is the minimal store interface held by transport layers and the
// CLI. It covers lifecycle operations only. The full composite interface
// (store.Store) embeds all subsystem stores and is what services consume.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
