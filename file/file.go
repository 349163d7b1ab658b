package file

import (
	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/id"
)

// ProcessingStatus mirrors the per-file processing state kept by the
// registry. It moves independently of the job status: the worker owns
// it once processing starts.
type ProcessingStatus string

const (
	// ProcessingPending means the file is waiting to be processed.
	ProcessingPending ProcessingStatus = "pending"
	// ProcessingActive means the worker is processing the file.
	ProcessingActive ProcessingStatus = "processing"
	// ProcessingCompleted means processing finished successfully.
	ProcessingCompleted ProcessingStatus = "completed"
	// ProcessingFailed means processing failed.
	ProcessingFailed ProcessingStatus = "failed"
)

// File is an uploaded document registered for ingestion. The queue
// references files, it does not own them: the core only ever writes the
// processing mirror (status + error) and, on a guarded delete, removes
// the row.
type File struct {
	ingest.Entity

	ID               id.FileID        `json:"id"`
	Filename         string           `json:"filename"`
	Bucket           string           `json:"bucket"`
	StoragePath      string           `json:"storage_path"`
	MimeType         string           `json:"mime_type,omitempty"`
	SizeBytes        int64            `json:"size_bytes"`
	Layer            string           `json:"layer,omitempty"`
	OrgID            string           `json:"org_id,omitempty"`
	ProjectID        string           `json:"project_id,omitempty"`
	AppID            string           `json:"app_id,omitempty"`
	CreatedBy        id.UserID        `json:"created_by,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ProcessingError  string           `json:"processing_error,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// Uploader is the read-only directory entry for the account that
// uploaded a file. Only lookups are exposed; the platform owns writes.
type Uploader struct {
	ID          id.UserID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
}

// MetaString returns the metadata value under key when it is a
// non-empty string.
func (f *File) MetaString(key string) (string, bool) {
	if f == nil || f.Metadata == nil {
		return "", false
	}
	s, ok := f.Metadata[key].(string)
	return s, ok && s != ""
}

// MetaStrings returns the metadata value under key as a string slice,
// accepting either []string or []any of strings.
func (f *File) MetaStrings(key string) ([]string, bool) {
	if f == nil || f.Metadata == nil {
		return nil, false
	}
	switch v := f.Metadata[key].(type) {
	case []string:
		if len(v) == 0 {
			return nil, false
		}
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	}
	return nil, false
}
