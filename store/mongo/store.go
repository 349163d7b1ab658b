package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// Collection name constants.
const (
	colJobs      = "ingest_jobs"
	colFiles     = "ingest_files"
	colUploaders = "ingest_uploaders"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ queue.Store   = (*Store)(nil)
	_ file.Registry = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store using the official
// v2 driver. The caller owns the client lifecycle; Store never
// disconnects it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store on the given database handle. The
// caller owns the client lifecycle -- the Store will not disconnect it
// on Close().
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying *mongo.Database for advanced usage.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// Migrate creates indexes for all ingest collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("ingest/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}

// migrationIndexes returns the index definitions for all ingest collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colJobs: {
			// One live job per file.
			{
				Keys:    bson.D{{Key: "file_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			// Status index.
			{Keys: bson.D{{Key: "status", Value: 1}}},
			// Listing index: newest first.
			{Keys: bson.D{
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			}},
		},
		colFiles: {
			// Tenant scope index.
			{Keys: bson.D{
				{Key: "app_id", Value: 1},
				{Key: "org_id", Value: 1},
			}},
			// Uploader index.
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
		},
	}
}
