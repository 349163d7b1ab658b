package retry

import "github.com/Ricou-IA/baikal-ingest/id"

// BulkResult reports the outcome of a bulk retry sweep. It is always a
// full report: partial failure never collapses to a single error.
type BulkResult struct {
	// Count is the number of jobs reset to queued, including jobs whose
	// trigger call subsequently failed.
	Count int `json:"count"`
	// Errors lists every job that reported a failure during the sweep.
	// Marshals as [], never null.
	Errors []JobError `json:"errors"`
}

// JobError ties one sweep failure to the job's file.
type JobError struct {
	FileID  id.FileID `json:"file_id"`
	Message string    `json:"message"`
}
