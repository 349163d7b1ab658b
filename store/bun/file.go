package bunstore

import (
	"context"
	"fmt"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
)

// CreateFile registers an uploaded file.
func (s *Store) CreateFile(ctx context.Context, f *file.File) error {
	m := toFileModel(f)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("ingest/bun: create file: %w", err)
	}
	return nil
}

// GetFile retrieves a registered file.
func (s *Store) GetFile(ctx context.Context, fileID id.FileID) (*file.File, error) {
	m := new(fileModel)
	err := s.db.NewSelect().Model(m).
		Where("f.id = ?", fileID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrFileNotFound
		}
		return nil, fmt.Errorf("ingest/bun: get file: %w", err)
	}
	return fromFileModel(m)
}

// ResetProcessing rewinds the processing mirror for a retried file:
// status back to pending, error cleared.
func (s *Store) ResetProcessing(ctx context.Context, fileID id.FileID) error {
	res, err := s.db.NewUpdate().
		TableExpr("ingest_files").
		Set("processing_status = 'pending'").
		Set("processing_error = ''").
		Set("updated_at = NOW()").
		Where("id = ?", fileID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ingest/bun: reset processing: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return ingest.ErrFileNotFound
	}
	return nil
}

// DeleteFile removes a registered file.
func (s *Store) DeleteFile(ctx context.Context, fileID id.FileID) error {
	res, err := s.db.NewDelete().
		TableExpr("ingest_files").
		Where("id = ?", fileID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ingest/bun: delete file: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return ingest.ErrFileNotFound
	}
	return nil
}

// GetUploader looks up the account that uploaded a file.
func (s *Store) GetUploader(ctx context.Context, userID id.UserID) (*file.Uploader, error) {
	m := new(uploaderModel)
	err := s.db.NewSelect().Model(m).
		Where("u.id = ?", userID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrUploaderNotFound
		}
		return nil, fmt.Errorf("ingest/bun: get uploader: %w", err)
	}
	return fromUploaderModel(m)
}

// PutUploader seeds or refreshes an uploader account. The directory is
// read-only in the Registry contract; this is for platform sync and
// development wiring.
func (s *Store) PutUploader(ctx context.Context, u *file.Uploader) error {
	m := &uploaderModel{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("display_name = EXCLUDED.display_name").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ingest/bun: put uploader: %w", err)
	}
	return nil
}
