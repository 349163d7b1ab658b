package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
)

// CreateFile registers an uploaded file.
func (s *Store) CreateFile(ctx context.Context, f *file.File) error {
	_, err := s.db.Collection(colFiles).InsertOne(ctx, toFileModel(f))
	if err != nil {
		return fmt.Errorf("ingest/mongo: create file: %w", err)
	}
	return nil
}

// GetFile retrieves a registered file.
func (s *Store) GetFile(ctx context.Context, fileID id.FileID) (*file.File, error) {
	var m fileModel
	err := s.db.Collection(colFiles).
		FindOne(ctx, bson.M{"_id": fileID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ingest.ErrFileNotFound
		}
		return nil, fmt.Errorf("ingest/mongo: get file: %w", err)
	}
	return fromFileModel(&m)
}

// ResetProcessing rewinds the processing mirror for a retried file:
// status back to pending, error cleared.
func (s *Store) ResetProcessing(ctx context.Context, fileID id.FileID) error {
	res, err := s.db.Collection(colFiles).UpdateOne(ctx,
		bson.M{"_id": fileID.String()},
		bson.M{"$set": bson.M{
			"processing_status": string(file.ProcessingPending),
			"processing_error":  "",
			"updated_at":        now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("ingest/mongo: reset processing: %w", err)
	}
	if res.MatchedCount == 0 {
		return ingest.ErrFileNotFound
	}
	return nil
}

// DeleteFile removes a registered file.
func (s *Store) DeleteFile(ctx context.Context, fileID id.FileID) error {
	res, err := s.db.Collection(colFiles).DeleteOne(ctx, bson.M{"_id": fileID.String()})
	if err != nil {
		return fmt.Errorf("ingest/mongo: delete file: %w", err)
	}
	if res.DeletedCount == 0 {
		return ingest.ErrFileNotFound
	}
	return nil
}

// GetUploader looks up the account that uploaded a file.
func (s *Store) GetUploader(ctx context.Context, userID id.UserID) (*file.Uploader, error) {
	var m uploaderModel
	err := s.db.Collection(colUploaders).
		FindOne(ctx, bson.M{"_id": userID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ingest.ErrUploaderNotFound
		}
		return nil, fmt.Errorf("ingest/mongo: get uploader: %w", err)
	}
	return fromUploaderModel(&m), nil
}

// PutUploader seeds or refreshes an uploader account. The directory is
// read-only in the Registry contract; this is for platform sync and
// development wiring.
func (s *Store) PutUploader(ctx context.Context, u *file.Uploader) error {
	m := toUploaderModel(u)
	_, err := s.db.Collection(colUploaders).ReplaceOne(ctx,
		bson.M{"_id": m.ID},
		m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ingest/mongo: put uploader: %w", err)
	}
	return nil
}
