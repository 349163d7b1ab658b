package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ricou-IA/baikal-ingest/id"
)

// ListOpts controls filtering and pagination for job list queries.
// Filters compose as AND; zero values mean "no filter".
type ListOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
	// AppID filters by the owning application of the job's file.
	AppID string
	// OrgID filters by the owning organization of the job's file.
	OrgID string
	// Limit is the maximum number of rows to return. Zero means no limit.
	Limit int
	// Offset is the number of rows to skip.
	Offset int
}

// TenantFiltered reports whether opts carry an app or org dimension,
// which switches the file join from permissive to restrictive.
func (o ListOpts) TenantFiltered() bool {
	return o.AppID != "" || o.OrgID != ""
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
	// AppID filters by the owning application of the job's file.
	AppID string
	// OrgID filters by the owning organization of the job's file.
	OrgID string
}

// TenantFiltered reports whether opts carry an app or org filter.
func (o CountOpts) TenantFiltered() bool {
	return o.AppID != "" || o.OrgID != ""
}

// StatsFilter scopes a stats query to a tenant. Zero value means the
// whole queue.
type StatsFilter struct {
	AppID string
	OrgID string
}

// TenantFiltered reports whether the filter carries an app or org
// dimension.
func (f StatsFilter) TenantFiltered() bool {
	return f.AppID != "" || f.OrgID != ""
}

// Stats is an aggregate snapshot of the queue, recomputed from the
// source rows on every call. An empty match set yields all zeros.
type Stats struct {
	Queued    int64 `json:"queued"`
	Sent      int64 `json:"sent"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

// StatusUpdate carries the optional field changes applied alongside a
// status transition in UpsertStatus. The zero value changes nothing
// beyond the status itself.
type StatusUpdate struct {
	// ResetAttempts zeroes the attempt counter (manual retry).
	ResetAttempts bool
	// IncrementAttempts adds one to the attempt counter (worker failure
	// report). Ignored when ResetAttempts is set.
	IncrementAttempts bool
	// ClearError empties the stored error message.
	ClearError bool
	// ErrorMessage replaces the stored error message when non-empty.
	ErrorMessage string
	// WorkerResponse replaces the stored diagnostic blob when non-nil.
	WorkerResponse json.RawMessage
	// NextRetryAt replaces the scheduling hint when non-nil.
	NextRetryAt *time.Time
	// LastAttemptAt replaces the last-attempt timestamp when non-nil.
	LastAttemptAt *time.Time
}

// Store defines the persistence contract for ingestion jobs.
type Store interface {
	// CreateJob persists a new job. Returns ingest.ErrJobAlreadyExists
	// when a live job for the same file exists.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves the job tracking the given file.
	// Returns ingest.ErrJobNotFound when no live job exists.
	GetJob(ctx context.Context, fileID id.FileID) (*Job, error)

	// UpsertStatus applies a status transition to the job tracking
	// fileID, creating the row when no live entry exists. Last writer
	// wins. CompletedAt is set when status is completed and cleared
	// otherwise. Returns the job as stored.
	UpsertStatus(ctx context.Context, fileID id.FileID, status Status, upd StatusUpdate) (*Job, error)

	// DeleteJob removes a job row by job ID.
	// Returns ingest.ErrJobNotFound when no such row exists.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobs returns jobs joined against the file registry, newest
	// first (CreatedAt descending). Jobs with a missing file are
	// excluded when opts carries a tenant filter and included with a
	// nil File otherwise.
	ListJobs(ctx context.Context, opts ListOpts) ([]*JobDetail, error)

	// CountJobs returns the number of jobs matching opts, with the same
	// join semantics as ListJobs.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// JobStats aggregates per-status counts for the given tenant scope.
	JobStats(ctx context.Context, f StatsFilter) (*Stats, error)
}
