package queue

import (
	"encoding/json"
	"time"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
)

// Status represents the lifecycle status of an ingestion job.
type Status string

const (
	// StatusQueued means the job is waiting for the worker to pick it up.
	StatusQueued Status = "queued"
	// StatusSent means the worker accepted the file for processing.
	StatusSent Status = "sent"
	// StatusCompleted means processing finished successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means processing failed; the job is eligible for retry.
	StatusFailed Status = "failed"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal status. Only completed is
// terminal: completed jobs are never retried and never resurrected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// CanRetry reports whether a job in status s may be reset and
// re-triggered. Failed jobs and stuck queued jobs qualify; sent jobs are
// in flight and completed jobs are done.
func (s Status) CanRetry() bool {
	return s == StatusQueued || s == StatusFailed
}

// DefaultMaxAttempts is the attempt ceiling stamped on jobs created
// without an explicit one (including rows created through UpsertStatus).
const DefaultMaxAttempts = 3

// Job tracks one uploaded file through the processing pipeline.
type Job struct {
	ingest.Entity

	ID             id.JobID        `json:"id"`
	FileID         id.FileID       `json:"file_id"`
	Status         Status          `json:"status"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	LastAttemptAt  *time.Time      `json:"last_attempt_at,omitempty"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	WorkerResponse json.RawMessage `json:"worker_response,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// NewJob builds a queued job for the given file with a fresh ID.
// maxAttempts <= 0 falls back to DefaultMaxAttempts.
func NewJob(fileID id.FileID, maxAttempts int) *Job {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Job{
		Entity:      ingest.NewEntity(),
		ID:          id.NewJobID(),
		FileID:      fileID,
		Status:      StatusQueued,
		MaxAttempts: maxAttempts,
	}
}

// JobDetail is a job row joined against the file registry. File is nil
// when the underlying file is gone and no tenant filter was applied;
// Uploader is nil whenever the uploader account is unknown.
type JobDetail struct {
	Job

	File     *file.File     `json:"file,omitempty"`
	Uploader *file.Uploader `json:"uploader,omitempty"`
}
