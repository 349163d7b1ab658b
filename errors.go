package ingest

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("ingest: no store configured")
	ErrStoreClosed     = errors.New("ingest: store closed")
	ErrMigrationFailed = errors.New("ingest: migration failed")

	// Not found errors.
	ErrJobNotFound      = errors.New("ingest: job not found")
	ErrFileNotFound     = errors.New("ingest: file not found")
	ErrUploaderNotFound = errors.New("ingest: uploader not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("ingest: job already exists for file")
	ErrJobCompleted     = errors.New("ingest: job already completed")

	// State errors.
	ErrNotRetryable  = errors.New("ingest: job is not retryable")
	ErrInvalidStatus = errors.New("ingest: invalid job status")

	// Upstream errors.
	ErrTriggerFailed = errors.New("ingest: worker trigger failed")
)
