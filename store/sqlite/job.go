package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

const jobColumns = `
	id, file_id, status, attempts, max_attempts,
	last_attempt_at, next_retry_at, error_message, worker_response,
	completed_at, created_at, updated_at`

// scanner is the subset of sql.Row and sql.Rows the scan helpers need.
type scanner interface {
	Scan(dest ...any) error
}

// CreateJob persists a new job. The unique index on file_id enforces
// one live job per file.
func (s *Store) CreateJob(ctx context.Context, j *queue.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_jobs (
			id, file_id, status, attempts, max_attempts,
			last_attempt_at, next_retry_at, error_message, worker_response,
			completed_at, created_at, updated_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?
		)`,
		j.ID.String(), j.FileID.String(), string(j.Status),
		j.Attempts, j.MaxAttempts,
		nullableTime(j.LastAttemptAt), nullableTime(j.NextRetryAt),
		j.ErrorMessage, nullableJSON(j.WorkerResponse),
		nullableTime(j.CompletedAt), j.CreatedAt.UTC(), j.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ingest.ErrJobAlreadyExists
		}
		return fmt.Errorf("ingest/sqlite: create job: %w", err)
	}
	return nil
}

// GetJob retrieves the job tracking the given file.
func (s *Store) GetJob(ctx context.Context, fileID id.FileID) (*queue.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+jobColumns+`
		FROM ingest_jobs
		WHERE file_id = ?`,
		fileID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrJobNotFound
		}
		return nil, fmt.Errorf("ingest/sqlite: get job: %w", err)
	}
	return j, nil
}

// UpsertStatus applies a status transition to the job tracking fileID,
// creating the row when no live entry exists. The CASE arms mirror the
// StatusUpdate field semantics: reset beats increment, a non-empty
// error message beats clearing, nil pointers leave the stored value
// alone. CompletedAt is set exactly when the new status is completed.
// Numbered placeholders because most parameters appear twice.
func (s *Store) UpsertStatus(ctx context.Context, fileID id.FileID, status queue.Status, upd queue.StatusUpdate) (*queue.Job, error) {
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO ingest_jobs (
			id, file_id, status, attempts, max_attempts,
			last_attempt_at, next_retry_at, error_message, worker_response,
			completed_at, created_at, updated_at
		) VALUES (
			?1, ?2, ?3,
			CASE WHEN ?4 THEN 0 WHEN ?5 THEN 1 ELSE 0 END,
			?6,
			?7, ?8, ?9, ?10,
			CASE WHEN ?3 = 'completed' THEN ?12 ELSE NULL END,
			?12, ?12
		)
		ON CONFLICT (file_id) DO UPDATE SET
			status = excluded.status,
			attempts = CASE
				WHEN ?4 THEN 0
				WHEN ?5 THEN ingest_jobs.attempts + 1
				ELSE ingest_jobs.attempts
			END,
			last_attempt_at = COALESCE(?7, ingest_jobs.last_attempt_at),
			next_retry_at = COALESCE(?8, ingest_jobs.next_retry_at),
			error_message = CASE
				WHEN ?9 <> '' THEN ?9
				WHEN ?11 THEN ''
				ELSE ingest_jobs.error_message
			END,
			worker_response = COALESCE(?10, ingest_jobs.worker_response),
			completed_at = CASE WHEN excluded.status = 'completed' THEN ?12 ELSE NULL END,
			updated_at = ?12
		RETURNING`+jobColumns,
		id.NewJobID().String(), fileID.String(), string(status),
		upd.ResetAttempts, upd.IncrementAttempts,
		queue.DefaultMaxAttempts,
		nullableTime(upd.LastAttemptAt), nullableTime(upd.NextRetryAt),
		upd.ErrorMessage, nullableJSON(upd.WorkerResponse),
		upd.ClearError,
		now,
	)

	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("ingest/sqlite: upsert status: %w", err)
	}
	return j, nil
}

// DeleteJob removes a job row by job ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ingest_jobs WHERE id = ?`, jobID.String())
	if err != nil {
		return fmt.Errorf("ingest/sqlite: delete job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return ingest.ErrJobNotFound
	}
	return nil
}

// ListJobs returns jobs joined against the file registry, newest first.
// A tenant condition on the joined file columns turns the LEFT JOIN
// restrictive, so jobs whose file is gone drop out exactly when a
// tenant filter is applied.
func (s *Store) ListJobs(ctx context.Context, opts queue.ListOpts) ([]*queue.JobDetail, error) {
	query := `
		SELECT
			j.id, j.file_id, j.status, j.attempts, j.max_attempts,
			j.last_attempt_at, j.next_retry_at, j.error_message, j.worker_response,
			j.completed_at, j.created_at, j.updated_at,
			f.id, f.filename, f.bucket, f.storage_path, f.mime_type, f.size_bytes,
			f.layer, f.org_id, f.project_id, f.app_id, f.created_by,
			f.processing_status, f.processing_error, f.metadata, f.created_at, f.updated_at,
			u.id, u.email, u.display_name
		FROM ingest_jobs j
		LEFT JOIN ingest_files f ON f.id = j.file_id
		LEFT JOIN ingest_uploaders u ON u.id = f.created_by
		WHERE 1=1`
	args := []any{}

	if opts.Status != "" {
		query += " AND j.status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.AppID != "" {
		query += " AND f.app_id = ?"
		args = append(args, opts.AppID)
	}
	if opts.OrgID != "" {
		query += " AND f.org_id = ?"
		args = append(args, opts.OrgID)
	}

	query += " ORDER BY j.created_at DESC, j.id DESC"

	switch {
	case opts.Limit > 0:
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		// SQLite requires a LIMIT clause before OFFSET.
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ingest/sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	var details []*queue.JobDetail
	for rows.Next() {
		d, scanErr := scanJobDetail(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("ingest/sqlite: scan job row: %w", scanErr)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ingest/sqlite: iterate job rows: %w", err)
	}
	return details, nil
}

// CountJobs returns the number of jobs matching opts, with the same
// join semantics as ListJobs.
func (s *Store) CountJobs(ctx context.Context, opts queue.CountOpts) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM ingest_jobs j
		LEFT JOIN ingest_files f ON f.id = j.file_id
		WHERE 1=1`
	args := []any{}

	if opts.Status != "" {
		query += " AND j.status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.AppID != "" {
		query += " AND f.app_id = ?"
		args = append(args, opts.AppID)
	}
	if opts.OrgID != "" {
		query += " AND f.org_id = ?"
		args = append(args, opts.OrgID)
	}

	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ingest/sqlite: count jobs: %w", err)
	}
	return count, nil
}

// JobStats aggregates per-status counts for the given tenant scope in a
// single pass over the matching rows.
func (s *Store) JobStats(ctx context.Context, f queue.StatsFilter) (*queue.Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE j.status = 'queued'),
			COUNT(*) FILTER (WHERE j.status = 'sent'),
			COUNT(*) FILTER (WHERE j.status = 'completed'),
			COUNT(*) FILTER (WHERE j.status = 'failed'),
			COUNT(*)
		FROM ingest_jobs j
		LEFT JOIN ingest_files f ON f.id = j.file_id
		WHERE 1=1`
	args := []any{}

	if f.AppID != "" {
		query += " AND f.app_id = ?"
		args = append(args, f.AppID)
	}
	if f.OrgID != "" {
		query += " AND f.org_id = ?"
		args = append(args, f.OrgID)
	}

	stats := &queue.Stats{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Queued, &stats.Sent, &stats.Completed, &stats.Failed, &stats.Total,
	)
	if err != nil {
		return nil, fmt.Errorf("ingest/sqlite: job stats: %w", err)
	}
	return stats, nil
}

// scanJob scans a single job row.
func scanJob(row scanner) (*queue.Job, error) {
	var (
		j         queue.Job
		idStr     string
		fileIDStr string
		statusStr string

		lastAttempt, nextRetry, completedAt sql.NullTime
		workerResponse                      sql.NullString
	)
	err := row.Scan(
		&idStr, &fileIDStr, &statusStr, &j.Attempts, &j.MaxAttempts,
		&lastAttempt, &nextRetry, &j.ErrorMessage, &workerResponse,
		&completedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = queue.Status(statusStr)
	j.LastAttemptAt = timePtr(lastAttempt)
	j.NextRetryAt = timePtr(nextRetry)
	j.CompletedAt = timePtr(completedAt)
	if workerResponse.Valid {
		j.WorkerResponse = json.RawMessage(workerResponse.String)
	}

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/sqlite: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	parsedFile, parseErr := id.ParseFileID(fileIDStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/sqlite: parse file id %q: %w", fileIDStr, parseErr)
	}
	j.FileID = parsedFile

	return &j, nil
}

// scanJobDetail scans one joined row: the job columns followed by the
// nullable file and uploader columns from the LEFT JOINs.
func scanJobDetail(rows scanner) (*queue.JobDetail, error) {
	var (
		d         queue.JobDetail
		idStr     string
		fileIDStr string
		statusStr string

		lastAttempt, nextRetry, completedAt sql.NullTime
		workerResponse                      sql.NullString

		fID, fFilename, fBucket, fPath, fMime    sql.NullString
		fSize                                    sql.NullInt64
		fLayer, fOrg, fProject, fApp, fCreatedBy sql.NullString
		fProcStatus, fProcError                  sql.NullString
		fMetadata                                sql.NullString
		fCreatedAt, fUpdatedAt                   sql.NullTime

		uID, uEmail, uName sql.NullString
	)
	err := rows.Scan(
		&idStr, &fileIDStr, &statusStr, &d.Attempts, &d.MaxAttempts,
		&lastAttempt, &nextRetry, &d.ErrorMessage, &workerResponse,
		&completedAt, &d.CreatedAt, &d.UpdatedAt,
		&fID, &fFilename, &fBucket, &fPath, &fMime, &fSize,
		&fLayer, &fOrg, &fProject, &fApp, &fCreatedBy,
		&fProcStatus, &fProcError, &fMetadata, &fCreatedAt, &fUpdatedAt,
		&uID, &uEmail, &uName,
	)
	if err != nil {
		return nil, err
	}

	d.Status = queue.Status(statusStr)
	d.LastAttemptAt = timePtr(lastAttempt)
	d.NextRetryAt = timePtr(nextRetry)
	d.CompletedAt = timePtr(completedAt)
	if workerResponse.Valid {
		d.WorkerResponse = json.RawMessage(workerResponse.String)
	}

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/sqlite: parse job id %q: %w", idStr, parseErr)
	}
	d.ID = parsedID

	parsedFile, parseErr := id.ParseFileID(fileIDStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/sqlite: parse file id %q: %w", fileIDStr, parseErr)
	}
	d.FileID = parsedFile

	if !fID.Valid {
		return &d, nil
	}

	f := &file.File{
		Entity: ingest.Entity{
			CreatedAt: fCreatedAt.Time,
			UpdatedAt: fUpdatedAt.Time,
		},
		ID:               parsedFile,
		Filename:         fFilename.String,
		Bucket:           fBucket.String,
		StoragePath:      fPath.String,
		MimeType:         fMime.String,
		SizeBytes:        fSize.Int64,
		Layer:            fLayer.String,
		OrgID:            fOrg.String,
		ProjectID:        fProject.String,
		AppID:            fApp.String,
		ProcessingStatus: file.ProcessingStatus(fProcStatus.String),
		ProcessingError:  fProcError.String,
	}
	if fCreatedBy.String != "" {
		parsedUser, userErr := id.ParseUserID(fCreatedBy.String)
		if userErr == nil {
			f.CreatedBy = parsedUser
		}
	}
	if fMetadata.String != "" {
		if mErr := json.Unmarshal([]byte(fMetadata.String), &f.Metadata); mErr != nil {
			return nil, fmt.Errorf("ingest/sqlite: decode file metadata: %w", mErr)
		}
	}
	d.File = f

	if uID.Valid {
		u := &file.Uploader{
			Email:       uEmail.String,
			DisplayName: uName.String,
		}
		parsedUser, userErr := id.ParseUserID(uID.String)
		if userErr == nil {
			u.ID = parsedUser
		}
		d.Uploader = u
	}

	return &d, nil
}
