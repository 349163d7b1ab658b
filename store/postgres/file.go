package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
)

const fileColumns = `
	id, filename, bucket, storage_path, mime_type, size_bytes,
	layer, org_id, project_id, app_id, created_by,
	processing_status, processing_error, metadata, created_at, updated_at`

// CreateFile registers an uploaded file.
func (s *Store) CreateFile(ctx context.Context, f *file.File) error {
	metadata, err := encodeMetadata(f.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ingest_files (
			id, filename, bucket, storage_path, mime_type, size_bytes,
			layer, org_id, project_id, app_id, created_by,
			processing_status, processing_error, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16
		)`,
		f.ID.String(), f.Filename, f.Bucket, f.StoragePath, f.MimeType, f.SizeBytes,
		f.Layer, f.OrgID, f.ProjectID, f.AppID, f.CreatedBy.String(),
		string(f.ProcessingStatus), f.ProcessingError, metadata,
		f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ingest/postgres: create file: %w", err)
	}
	return nil
}

// GetFile retrieves a registered file.
func (s *Store) GetFile(ctx context.Context, fileID id.FileID) (*file.File, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+fileColumns+`
		FROM ingest_files
		WHERE id = $1`,
		fileID.String(),
	)

	f, err := scanFile(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrFileNotFound
		}
		return nil, fmt.Errorf("ingest/postgres: get file: %w", err)
	}
	return f, nil
}

// ResetProcessing rewinds the processing mirror for a retried file:
// status back to pending, error cleared.
func (s *Store) ResetProcessing(ctx context.Context, fileID id.FileID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_files
		SET processing_status = 'pending', processing_error = '', updated_at = NOW()
		WHERE id = $1`,
		fileID.String(),
	)
	if err != nil {
		return fmt.Errorf("ingest/postgres: reset processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrFileNotFound
	}
	return nil
}

// DeleteFile removes a registered file.
func (s *Store) DeleteFile(ctx context.Context, fileID id.FileID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ingest_files WHERE id = $1`, fileID.String())
	if err != nil {
		return fmt.Errorf("ingest/postgres: delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrFileNotFound
	}
	return nil
}

// GetUploader looks up the account that uploaded a file.
func (s *Store) GetUploader(ctx context.Context, userID id.UserID) (*file.Uploader, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, display_name FROM ingest_uploaders WHERE id = $1`,
		userID.String(),
	)

	var (
		u     file.Uploader
		idStr string
	)
	err := row.Scan(&idStr, &u.Email, &u.DisplayName)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrUploaderNotFound
		}
		return nil, fmt.Errorf("ingest/postgres: get uploader: %w", err)
	}

	parsedID, parseErr := id.ParseUserID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/postgres: parse uploader id %q: %w", idStr, parseErr)
	}
	u.ID = parsedID

	return &u, nil
}

// PutUploader seeds or refreshes an uploader account. The directory is
// read-only in the Registry contract; this is for platform sync and
// development wiring.
func (s *Store) PutUploader(ctx context.Context, u *file.Uploader) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_uploaders (id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name`,
		u.ID.String(), u.Email, u.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("ingest/postgres: put uploader: %w", err)
	}
	return nil
}

// scanFile scans a single file row.
func scanFile(row pgx.Row) (*file.File, error) {
	var (
		f         file.File
		idStr     string
		createdBy string
		statusStr string
		metadata  []byte
	)
	err := row.Scan(
		&idStr, &f.Filename, &f.Bucket, &f.StoragePath, &f.MimeType, &f.SizeBytes,
		&f.Layer, &f.OrgID, &f.ProjectID, &f.AppID, &createdBy,
		&statusStr, &f.ProcessingError, &metadata, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.ProcessingStatus = file.ProcessingStatus(statusStr)

	parsedID, parseErr := id.ParseFileID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/postgres: parse file id %q: %w", idStr, parseErr)
	}
	f.ID = parsedID

	if createdBy != "" {
		parsedUser, userErr := id.ParseUserID(createdBy)
		if userErr == nil {
			f.CreatedBy = parsedUser
		}
	}

	if len(metadata) > 0 {
		if mErr := json.Unmarshal(metadata, &f.Metadata); mErr != nil {
			return nil, fmt.Errorf("ingest/postgres: decode file metadata: %w", mErr)
		}
	}

	return &f, nil
}

// encodeMetadata marshals the metadata map, mapping nil to SQL NULL.
func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ingest/postgres: encode file metadata: %w", err)
	}
	return data, nil
}
