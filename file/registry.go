// Package file defines the file registry entities and the adapter
// contract the queue core uses to reach them.
//
// The registry is owned by the wider platform; the core touches it in
// exactly three ways: it reads files to rebuild trigger payloads, it
// resets the processing mirror when a job is retried, and it removes
// the row when a guarded delete cascades. Uploader accounts are
// read-only.
package file

import (
	"context"

	"github.com/Ricou-IA/baikal-ingest/id"
)

// Registry defines the persistence contract for registered files and
// their uploaders.
type Registry interface {
	// CreateFile registers an uploaded file.
	CreateFile(ctx context.Context, f *File) error

	// GetFile retrieves a registered file.
	// Returns ingest.ErrFileNotFound when the file is gone.
	GetFile(ctx context.Context, fileID id.FileID) (*File, error)

	// ResetProcessing rewinds the processing mirror for a retried file:
	// status back to pending, error cleared. Nothing else is touched.
	ResetProcessing(ctx context.Context, fileID id.FileID) error

	// DeleteFile removes a registered file.
	// Returns ingest.ErrFileNotFound when no such row exists.
	DeleteFile(ctx context.Context, fileID id.FileID) error

	// GetUploader looks up the account that uploaded a file.
	// Returns ingest.ErrUploaderNotFound when the account is unknown.
	GetUploader(ctx context.Context, userID id.UserID) (*Uploader, error)
}
