package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:ingest_jobs,alias:j"`

	ID             string          `bun:"id,pk"`
	FileID         string          `bun:"file_id,notnull,unique"`
	Status         string          `bun:"status,notnull,default:'queued'"`
	Attempts       int             `bun:"attempts,notnull,default:0"`
	MaxAttempts    int             `bun:"max_attempts,notnull,default:3"`
	LastAttemptAt  *time.Time      `bun:"last_attempt_at"`
	NextRetryAt    *time.Time      `bun:"next_retry_at"`
	ErrorMessage   string          `bun:"error_message,notnull,default:''"`
	WorkerResponse json.RawMessage `bun:"worker_response,type:jsonb"`
	CompletedAt    *time.Time      `bun:"completed_at"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull,default:current_timestamp"`

	File *fileModel `bun:"rel:belongs-to,join:file_id=id"`
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
		return nil, fmt.Errorf("ingest/bun: parse job id %q: %w", m.ID, err)
	}

	parsedFile, err := id.ParseFileID(m.FileID)
	if err != nil {
		return nil, fmt.Errorf("ingest/bun: parse file id %q: %w", m.FileID, err)
	}

	return &queue.Job{
		Entity: ingest.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             parsedID,
		FileID:         parsedFile,
		Status:         queue.Status(m.Status),
		Attempts:       m.Attempts,
		MaxAttempts:    m.MaxAttempts,
		LastAttemptAt:  m.LastAttemptAt,
		NextRetryAt:    m.NextRetryAt,
		ErrorMessage:   m.ErrorMessage,
		WorkerResponse: m.WorkerResponse,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// fromDetailModel converts a job model with its File and File.Uploader
// relations loaded into a JobDetail.
func fromDetailModel(m *jobModel) (*queue.JobDetail, error) {
	j, err := fromJobModel(m)
	if err != nil {
		return nil, err
	}

	d := &queue.JobDetail{Job: *j}
	if m.File == nil {
		return d, nil
	}

	f, err := fromFileModel(m.File)
	if err != nil {
		return nil, err
	}
	d.File = f

	if m.File.Uploader != nil {
		u, uErr := fromUploaderModel(m.File.Uploader)
		if uErr != nil {
			return nil, uErr
		}
		d.Uploader = u
	}

	return d, nil
}

// ── File model ────────────────────────────────────────────────────

type fileModel struct {
	bun.BaseModel `bun:"table:ingest_files,alias:f"`

	ID               string         `bun:"id,pk"`
	Filename         string         `bun:"filename,notnull"`
	Bucket           string         `bun:"bucket,notnull,default:''"`
	StoragePath      string         `bun:"storage_path,notnull,default:''"`
	MimeType         string         `bun:"mime_type,notnull,default:''"`
	SizeBytes        int64          `bun:"size_bytes,notnull,default:0"`
	Layer            string         `bun:"layer,notnull,default:''"`
	OrgID            string         `bun:"org_id,notnull,default:''"`
	ProjectID        string         `bun:"project_id,notnull,default:''"`
	AppID            string         `bun:"app_id,notnull,default:''"`
	CreatedBy        string         `bun:"created_by,notnull,default:''"`
	ProcessingStatus string         `bun:"processing_status,notnull,default:'pending'"`
	ProcessingError  string         `bun:"processing_error,notnull,default:''"`
	Metadata         map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt        time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time      `bun:"updated_at,notnull,default:current_timestamp"`

	Uploader *uploaderModel `bun:"rel:belongs-to,join:created_by=id"`
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
		return nil, fmt.Errorf("ingest/bun: parse file id %q: %w", m.ID, err)
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
	bun.BaseModel `bun:"table:ingest_uploaders,alias:u"`

	ID          string `bun:"id,pk"`
	Email       string `bun:"email,notnull,default:''"`
	DisplayName string `bun:"display_name,notnull,default:''"`
}

func fromUploaderModel(m *uploaderModel) (*file.Uploader, error) {
	parsedID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("ingest/bun: parse uploader id %q: %w", m.ID, err)
	}

	return &file.Uploader{
		ID:          parsedID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
	}, nil
}
