package trigger

import (
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// QualityBaseline is the quality tier sent when the file metadata does
// not carry one.
const QualityBaseline = "standard"

// File metadata keys consulted when building a payload.
const (
	metaTitle         = "title"
	metaCategory      = "category"
	metaFilenameClean = "filename_clean"
	metaQualityLevel  = "quality_level"
	metaTargets       = "target_project_ids"
)

// Payload is the canonical trigger body sent to the processing worker.
// It is rebuilt from the current file record on every call, initial or
// retry; stale copies are never replayed.
type Payload struct {
	QueueID       string `json:"queue_id"`
	FileID        string `json:"file_id"`
	Filename      string `json:"filename"`
	StorageBucket string `json:"storage_bucket"`
	StoragePath   string `json:"storage_path"`
	MimeType      string `json:"mime_type"`
	Layer         string `json:"layer"`
	OrgID         string `json:"org_id"`
	ProjectID     string `json:"project_id"`
	CreatedBy     string `json:"created_by"`
	AppID         string `json:"app_id"`
	Metadata      Meta   `json:"metadata"`
}

// Meta is the derived metadata block of a trigger payload. Absent title
// and category are sent as JSON null, not omitted; the worker relies on
// the keys being present.
type Meta struct {
	DocumentTitle    *string  `json:"document_title"`
	CategorySlug     *string  `json:"category_slug"`
	FilenameClean    string   `json:"filename_clean"`
	QualityLevel     string   `json:"quality_level"`
	FileSize         int64    `json:"file_size"`
	TargetProjectIDs []string `json:"target_project_ids"`
}

// BuildPayload derives the canonical payload for a job from the current
// file record.
//
// Defaulting rules:
//   - document_title:     metadata "title", else null
//   - category_slug:      metadata "category", else null
//   - filename_clean:     metadata "filename_clean", else the filename
//   - quality_level:      metadata "quality_level", else QualityBaseline
//   - target_project_ids: metadata list, else [file's project], else []
func BuildPayload(j *queue.Job, f *file.File) *Payload {
	p := &Payload{
		QueueID:       j.ID.String(),
		FileID:        f.ID.String(),
		Filename:      f.Filename,
		StorageBucket: f.Bucket,
		StoragePath:   f.StoragePath,
		MimeType:      f.MimeType,
		Layer:         f.Layer,
		OrgID:         f.OrgID,
		ProjectID:     f.ProjectID,
		CreatedBy:     f.CreatedBy.String(),
		AppID:         f.AppID,
		Metadata: Meta{
			FilenameClean: f.Filename,
			QualityLevel:  QualityBaseline,
			FileSize:      f.SizeBytes,
			// Marshals as [], never null.
			TargetProjectIDs: []string{},
		},
	}

	if title, ok := f.MetaString(metaTitle); ok {
		p.Metadata.DocumentTitle = &title
	}
	if category, ok := f.MetaString(metaCategory); ok {
		p.Metadata.CategorySlug = &category
	}
	if clean, ok := f.MetaString(metaFilenameClean); ok {
		p.Metadata.FilenameClean = clean
	}
	if quality, ok := f.MetaString(metaQualityLevel); ok {
		p.Metadata.QualityLevel = quality
	}

	switch targets, ok := f.MetaStrings(metaTargets); {
	case ok:
		p.Metadata.TargetProjectIDs = targets
	case f.ProjectID != "":
		p.Metadata.TargetProjectIDs = []string{f.ProjectID}
	}

	return p
}
