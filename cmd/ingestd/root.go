package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/store"
	bunstore "github.com/Ricou-IA/baikal-ingest/store/bun"
	"github.com/Ricou-IA/baikal-ingest/store/memory"
	"github.com/Ricou-IA/baikal-ingest/store/mongo"
	"github.com/Ricou-IA/baikal-ingest/store/postgres"
	"github.com/Ricou-IA/baikal-ingest/store/sqlite"
)

// defaultMongoDatabase is used when the Mongo DSN carries no database
// in its path.
const defaultMongoDatabase = "ingest"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ingestd",
		Short:         "Ingestion job queue daemon and maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newStatsCmd(),
		newRetryCmd(),
	)
	return root
}

// newLogger builds the process-wide JSON logger and installs it as the
// slog default so library fallbacks land in the same stream.
func newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStore builds the configured backend. The returned cleanup closes
// every handle the store does not own itself.
func openStore(ctx context.Context, cfg ingest.Config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case ingest.DriverMemory:
		s := memory.New()
		return s, func() {}, nil

	case ingest.DriverPostgres:
		s, err := postgres.New(ctx, cfg.StoreDSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case ingest.DriverBun:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.StoreDSN)))
		db := bun.NewDB(sqldb, pgdialect.New())
		s := bunstore.New(db, bunstore.WithLogger(logger))
		return s, func() { _ = db.Close() }, nil

	case ingest.DriverSQLite:
		s, err := sqlite.New(cfg.StoreDSN, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case ingest.DriverMongo:
		client, err := mongod.Connect(mongoopts.Client().ApplyURI(cfg.StoreDSN))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		s := mongo.New(client.Database(mongoDatabaseName(cfg.StoreDSN)), mongo.WithLogger(logger))
		cleanup := func() { _ = client.Disconnect(context.Background()) }
		return s, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// mongoDatabaseName extracts the database from the DSN path, falling
// back to defaultMongoDatabase.
func mongoDatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}
