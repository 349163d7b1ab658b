package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

const jobColumns = `
	id, file_id, status, attempts, max_attempts,
	last_attempt_at, next_retry_at, error_message, worker_response,
	completed_at, created_at, updated_at`

// CreateJob persists a new job. The unique index on file_id enforces
// one live job per file.
func (s *Store) CreateJob(ctx context.Context, j *queue.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_jobs (
			id, file_id, status, attempts, max_attempts,
			last_attempt_at, next_retry_at, error_message, worker_response,
			completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12
		)`,
		j.ID.String(), j.FileID.String(), string(j.Status),
		j.Attempts, j.MaxAttempts,
		j.LastAttemptAt, j.NextRetryAt, j.ErrorMessage, []byte(j.WorkerResponse),
		j.CompletedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ingest.ErrJobAlreadyExists
		}
		return fmt.Errorf("ingest/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves the job tracking the given file.
func (s *Store) GetJob(ctx context.Context, fileID id.FileID) (*queue.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+jobColumns+`
		FROM ingest_jobs
		WHERE file_id = $1`,
		fileID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrJobNotFound
		}
		return nil, fmt.Errorf("ingest/postgres: get job: %w", err)
	}
	return j, nil
}

// UpsertStatus applies a status transition to the job tracking fileID,
// creating the row when no live entry exists. Last writer wins and the
// CASE arms mirror the StatusUpdate field semantics: reset beats
// increment, a non-empty error message beats clearing, nil pointers
// leave the stored value alone. CompletedAt is set exactly when the new
// status is completed.
func (s *Store) UpsertStatus(ctx context.Context, fileID id.FileID, status queue.Status, upd queue.StatusUpdate) (*queue.Job, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ingest_jobs (
			id, file_id, status, attempts, max_attempts,
			last_attempt_at, next_retry_at, error_message, worker_response,
			completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3,
			CASE WHEN $4 THEN 0 WHEN $5 THEN 1 ELSE 0 END,
			$6,
			$7, $8, $9, $10,
			CASE WHEN $3 = 'completed' THEN NOW() ELSE NULL END,
			NOW(), NOW()
		)
		ON CONFLICT (file_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = CASE
				WHEN $4 THEN 0
				WHEN $5 THEN ingest_jobs.attempts + 1
				ELSE ingest_jobs.attempts
			END,
			last_attempt_at = COALESCE($7, ingest_jobs.last_attempt_at),
			next_retry_at = COALESCE($8, ingest_jobs.next_retry_at),
			error_message = CASE
				WHEN $9 <> '' THEN $9
				WHEN $11 THEN ''
				ELSE ingest_jobs.error_message
			END,
			worker_response = COALESCE($10, ingest_jobs.worker_response),
			completed_at = CASE WHEN EXCLUDED.status = 'completed' THEN NOW() ELSE NULL END,
			updated_at = NOW()
		RETURNING`+jobColumns,
		id.NewJobID().String(), fileID.String(), string(status),
		upd.ResetAttempts, upd.IncrementAttempts,
		queue.DefaultMaxAttempts,
		upd.LastAttemptAt, upd.NextRetryAt, upd.ErrorMessage, []byte(upd.WorkerResponse),
		upd.ClearError,
	)

	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("ingest/postgres: upsert status: %w", err)
	}
	return j, nil
}

// DeleteJob removes a job row by job ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ingest_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("ingest/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	args := []interface{}{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND j.status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.AppID != "" {
		query += fmt.Sprintf(" AND f.app_id = $%d", argIdx)
		args = append(args, opts.AppID)
		argIdx++
	}
	if opts.OrgID != "" {
		query += fmt.Sprintf(" AND f.org_id = $%d", argIdx)
		args = append(args, opts.OrgID)
		argIdx++
	}

	query += " ORDER BY j.created_at DESC, j.id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ingest/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobDetails(rows)
}

// CountJobs returns the number of jobs matching opts, with the same
// join semantics as ListJobs.
func (s *Store) CountJobs(ctx context.Context, opts queue.CountOpts) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM ingest_jobs j
		LEFT JOIN ingest_files f ON f.id = j.file_id
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND j.status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.AppID != "" {
		query += fmt.Sprintf(" AND f.app_id = $%d", argIdx)
		args = append(args, opts.AppID)
		argIdx++
	}
	if opts.OrgID != "" {
		query += fmt.Sprintf(" AND f.org_id = $%d", argIdx)
		args = append(args, opts.OrgID)
	}

	var count int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ingest/postgres: count jobs: %w", err)
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
	args := []interface{}{}
	argIdx := 1

	if f.AppID != "" {
		query += fmt.Sprintf(" AND f.app_id = $%d", argIdx)
		args = append(args, f.AppID)
		argIdx++
	}
	if f.OrgID != "" {
		query += fmt.Sprintf(" AND f.org_id = $%d", argIdx)
		args = append(args, f.OrgID)
	}

	stats := &queue.Stats{}
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Queued, &stats.Sent, &stats.Completed, &stats.Failed, &stats.Total,
	)
	if err != nil {
		return nil, fmt.Errorf("ingest/postgres: job stats: %w", err)
	}
	return stats, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*queue.Job, error) {
	var (
		j              queue.Job
		idStr          string
		fileIDStr      string
		statusStr      string
		workerResponse []byte
	)
	err := row.Scan(
		&idStr, &fileIDStr, &statusStr, &j.Attempts, &j.MaxAttempts,
		&j.LastAttemptAt, &j.NextRetryAt, &j.ErrorMessage, &workerResponse,
		&j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = queue.Status(statusStr)
	j.WorkerResponse = json.RawMessage(workerResponse)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	parsedFile, parseErr := id.ParseFileID(fileIDStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/postgres: parse file id %q: %w", fileIDStr, parseErr)
	}
	j.FileID = parsedFile

	return &j, nil
}

// scanJobDetail scans one joined row: the job columns followed by the
// nullable file and uploader columns from the LEFT JOINs.
func scanJobDetail(rows pgx.Rows) (*queue.JobDetail, error) {
	var (
		d              queue.JobDetail
		idStr          string
		fileIDStr      string
		statusStr      string
		workerResponse []byte

		fID, fFilename, fBucket, fPath, fMime    *string
		fSize                                    *int64
		fLayer, fOrg, fProject, fApp, fCreatedBy *string
		fProcStatus, fProcError                  *string
		fMetadata                                []byte
		fCreatedAt, fUpdatedAt                   *time.Time

		uID, uEmail, uName *string
	)
	err := rows.Scan(
		&idStr, &fileIDStr, &statusStr, &d.Attempts, &d.MaxAttempts,
		&d.LastAttemptAt, &d.NextRetryAt, &d.ErrorMessage, &workerResponse,
		&d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
		&fID, &fFilename, &fBucket, &fPath, &fMime, &fSize,
		&fLayer, &fOrg, &fProject, &fApp, &fCreatedBy,
		&fProcStatus, &fProcError, &fMetadata, &fCreatedAt, &fUpdatedAt,
		&uID, &uEmail, &uName,
	)
	if err != nil {
		return nil, err
	}

	d.Status = queue.Status(statusStr)
	d.WorkerResponse = json.RawMessage(workerResponse)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/postgres: parse job id %q: %w", idStr, parseErr)
	}
	d.ID = parsedID

	parsedFile, parseErr := id.ParseFileID(fileIDStr)
	if parseErr != nil {
		return nil, fmt.Errorf("ingest/postgres: parse file id %q: %w", fileIDStr, parseErr)
	}
	d.FileID = parsedFile

	if fID == nil {
		return &d, nil
	}

	f := &file.File{
		Entity: ingest.Entity{
			CreatedAt: *fCreatedAt,
			UpdatedAt: *fUpdatedAt,
		},
		ID:               parsedFile,
		Filename:         *fFilename,
		Bucket:           *fBucket,
		StoragePath:      *fPath,
		MimeType:         *fMime,
		SizeBytes:        *fSize,
		Layer:            *fLayer,
		OrgID:            *fOrg,
		ProjectID:        *fProject,
		AppID:            *fApp,
		ProcessingStatus: file.ProcessingStatus(*fProcStatus),
		ProcessingError:  *fProcError,
	}
	if *fCreatedBy != "" {
		parsedUser, userErr := id.ParseUserID(*fCreatedBy)
		if userErr == nil {
			f.CreatedBy = parsedUser
		}
	}
	if len(fMetadata) > 0 {
		if mErr := json.Unmarshal(fMetadata, &f.Metadata); mErr != nil {
			return nil, fmt.Errorf("ingest/postgres: decode file metadata: %w", mErr)
		}
	}
	d.File = f

	if uID != nil {
		u := &file.Uploader{
			Email:       *uEmail,
			DisplayName: *uName,
		}
		parsedUser, userErr := id.ParseUserID(*uID)
		if userErr == nil {
			u.ID = parsedUser
		}
		d.Uploader = u
	}

	return &d, nil
}

// collectJobDetails collects all joined rows from a list query.
func collectJobDetails(rows pgx.Rows) ([]*queue.JobDetail, error) {
	var details []*queue.JobDetail
	for rows.Next() {
		d, err := scanJobDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("ingest/postgres: scan job row: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ingest/postgres: iterate job rows: %w", err)
	}
	return details, nil
}
