package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	ID             string     `bson:"_id"`
	FileID         string     `bson:"file_id"`
	Status         string     `bson:"status"`
	Attempts       int        `bson:"attempts"`
	MaxAttempts    int        `bson:"max_attempts"`
	LastAttemptAt  *time.Time `bson:"last_attempt_at,omitempty"`
	NextRetryAt    *time.Time `bson:"next_retry_at,omitempty"`
	ErrorMessage   string     `bson:"error_message"`
	WorkerResponse []byte     `bson:"worker_response,omitempty"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toJobModel(j *queue.Job) *jobModel {
	return &jobModel{
		ID:             j.ID.String(),
		FileID:         j.FileID.String(),
		Status:         string(j.Status),
		Attempts:       j.Attempts,
		MaxAttempts:    j.MaxAttempts,
		LastAttemptAt:  j.LastAttemptAt,
		NextRetryAt:    j.NextRetryAt,
		ErrorMessage:   j.ErrorMessage,
		WorkerResponse: j.WorkerResponse,
		CompletedAt:    j.CompletedAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*queue.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("ingest/mongo: parse job id %q: %w", m.ID, err)
	}

	parsedFile, err := id.ParseFileID(m.FileID)
	if err != nil {
		return nil, fmt.Errorf("ingest/mongo: parse file id %q: %w", m.FileID, err)
	}

	j := &queue.Job{
		Entity: ingest.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            parsedID,
		FileID:        parsedFile,
		Status:        queue.Status(m.Status),
		Attempts:      m.Attempts,
		MaxAttempts:   m.MaxAttempts,
		LastAttemptAt: m.LastAttemptAt,
		NextRetryAt:   m.NextRetryAt,
		ErrorMessage:  m.ErrorMessage,
		CompletedAt:   m.CompletedAt,
	}
	if len(m.WorkerResponse) > 0 {
		j.WorkerResponse = json.RawMessage(m.WorkerResponse)
	}

	return j, nil
}

// ── Joined detail model ───────────────────────────────────────────

// jobDetailModel is the shape produced by the listing pipeline: the job
// document with the looked-up file and uploader unwound next to it.
type jobDetailModel struct {
	jobModel `bson:",inline"`

	File     *fileModel     `bson:"file,omitempty"`
	Uploader *uploaderModel `bson:"uploader,omitempty"`
}

func fromDetailModel(m *jobDetailModel) (*queue.JobDetail, error) {
	j, err := fromJobModel(&m.jobModel)
	if err != nil {
		return nil, err
	}

	d := &queue.JobDetail{Job: *j}

	if m.File != nil {
		f, fErr := fromFileModel(m.File)
		if fErr != nil {
			return nil, fErr
		}
		d.File = f
	}
	if m.Uploader != nil {
		d.Uploader = fromUploaderModel(m.Uploader)
	}

	return d, nil
}

// ── File model ────────────────────────────────────────────────────

type fileModel struct {
	ID               string         `bson:"_id"`
	Filename         string         `bson:"filename"`
	Bucket           string         `bson:"bucket"`
	StoragePath      string         `bson:"storage_path"`
	MimeType         string         `bson:"mime_type"`
	SizeBytes        int64          `bson:"size_bytes"`
	Layer            string         `bson:"layer"`
	OrgID            string         `bson:"org_id"`
	ProjectID        string         `bson:"project_id"`
	AppID            string         `bson:"app_id"`
	CreatedBy        string         `bson:"created_by"`
	ProcessingStatus string         `bson:"processing_status"`
	ProcessingError  string         `bson:"processing_error"`
	Metadata         map[string]any `bson:"metadata,omitempty"`
	CreatedAt        time.Time      `bson:"created_at"`
	UpdatedAt        time.Time      `bson:"updated_at"`
}

func toFileModel(f *file.File) *fileModel {
	return &fileModel{
		ID:               f.ID.String(),
		Filename:         f.Filename,
		Bucket:           f.Bucket,
		StoragePath:      f.StoragePath,
		MimeType:         f.MimeType,
		SizeBytes:        f.SizeBytes,
		Layer:            f.Layer,
		OrgID:            f.OrgID,
		ProjectID:        f.ProjectID,
		AppID:            f.AppID,
		CreatedBy:        f.CreatedBy.String(),
		ProcessingStatus: string(f.ProcessingStatus),
		ProcessingError:  f.ProcessingError,
		Metadata:         f.Metadata,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

func fromFileModel(m *fileModel) (*file.File, error) {
	parsedID, err := id.ParseFileID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("ingest/mongo: parse file id %q: %w", m.ID, err)
	}

	f := &file.File{
		Entity: ingest.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               parsedID,
		Filename:         m.Filename,
		Bucket:           m.Bucket,
		StoragePath:      m.StoragePath,
		MimeType:         m.MimeType,
		SizeBytes:        m.SizeBytes,
		Layer:            m.Layer,
		OrgID:            m.OrgID,
		ProjectID:        m.ProjectID,
		AppID:            m.AppID,
		ProcessingStatus: file.ProcessingStatus(m.ProcessingStatus),
		ProcessingError:  m.ProcessingError,
		Metadata:         m.Metadata,
	}

	if m.CreatedBy != "" {
		parsedUser, uErr := id.ParseUserID(m.CreatedBy)
		if uErr == nil {
			f.CreatedBy = parsedUser
		}
	}

	return f, nil
}

// ── Uploader model ────────────────────────────────────────────────

type uploaderModel struct {
	ID          string `bson:"_id"`
	Email       string `bson:"email"`
	DisplayName string `bson:"display_name"`
}

func toUploaderModel(u *file.Uploader) *uploaderModel {
	return &uploaderModel{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
}

func fromUploaderModel(m *uploaderModel) *file.Uploader {
	u := &file.Uploader{
		Email:       m.Email,
		DisplayName: m.DisplayName,
	}
	parsedID, err := id.ParseUserID(m.ID)
	if err == nil {
		u.ID = parsedID
	}
	return u
}
