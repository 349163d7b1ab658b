package bunstore

import (
	"context"
	"fmt"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// CreateJob persists a new job. The unique constraint on file_id
// enforces one live job per file.
func (s *Store) CreateJob(ctx context.Context, j *queue.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return ingest.ErrJobAlreadyExists
		}
		return fmt.Errorf("ingest/bun: create job: %w", err)
	}
	return nil
}

// GetJob retrieves the job tracking the given file.
func (s *Store) GetJob(ctx context.Context, fileID id.FileID) (*queue.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("file_id = ?", fileID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrJobNotFound
		}
		return nil, fmt.Errorf("ingest/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// UpsertStatus applies a status transition to the job tracking fileID,
// creating the row when no live entry exists. The conditional update
// arms live in raw SQL: reset beats increment, a non-empty error
// message beats clearing, nil pointers leave the stored value alone,
// and CompletedAt is set exactly when the new status is completed.
func (s *Store) UpsertStatus(ctx context.Context, fileID id.FileID, status queue.Status, upd queue.StatusUpdate) (*queue.Job, error) {
	m := new(jobModel)
	err := s.db.NewRaw(`
		INSERT INTO ingest_jobs (
			id, file_id, status, attempts, max_attempts,
			last_attempt_at, next_retry_at, error_message, worker_response,
			completed_at, created_at, updated_at
		) VALUES (
			?0, ?1, ?2,
			CASE WHEN ?3 THEN 0 WHEN ?4 THEN 1 ELSE 0 END,
			?5,
			?6, ?7, ?8, ?9,
			CASE WHEN ?2 = 'completed' THEN NOW() ELSE NULL END,
			NOW(), NOW()
		)
		ON CONFLICT (file_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = CASE
				WHEN ?3 THEN 0
				WHEN ?4 THEN ingest_jobs.attempts + 1
				ELSE ingest_jobs.attempts
			END,
			last_attempt_at = COALESCE(?6, ingest_jobs.last_attempt_at),
			next_retry_at = COALESCE(?7, ingest_jobs.next_retry_at),
			error_message = CASE
				WHEN ?8 <> '' THEN ?8
				WHEN ?10 THEN ''
				ELSE ingest_jobs.error_message
			END,
			worker_response = COALESCE(?9, ingest_jobs.worker_response),
			completed_at = CASE WHEN EXCLUDED.status = 'completed' THEN NOW() ELSE NULL END,
			updated_at = NOW()
		RETURNING *`,
		id.NewJobID().String(), fileID.String(), string(status),
		upd.ResetAttempts, upd.IncrementAttempts,
		queue.DefaultMaxAttempts,
		upd.LastAttemptAt, upd.NextRetryAt, upd.ErrorMessage, upd.WorkerResponse,
		upd.ClearError,
	).Scan(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("ingest/bun: upsert status: %w", err)
	}
	return fromJobModel(m)
}

// DeleteJob removes a job row by job ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.NewDelete().
		TableExpr("ingest_jobs").
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ingest/bun: delete job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return ingest.ErrJobNotFound
	}
	return nil
}

// ListJobs returns jobs joined against the file registry, newest first.
// The File and File.Uploader relations are loaded through LEFT JOINs; a
// tenant condition on the joined file columns turns the join
// restrictive, so jobs whose file is gone drop out exactly when a
// tenant filter is applied.
func (s *Store) ListJobs(ctx context.Context, opts queue.ListOpts) ([]*queue.JobDetail, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Relation("File").
		Relation("File.Uploader")

	if opts.Status != "" {
		q = q.Where("j.status = ?", string(opts.Status))
	}
	if opts.AppID != "" {
		q = q.Where("file.app_id = ?", opts.AppID)
	}
	if opts.OrgID != "" {
		q = q.Where("file.org_id = ?", opts.OrgID)
	}

	q = q.OrderExpr("j.created_at DESC, j.id DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest/bun: list jobs: %w", err)
	}

	details := make([]*queue.JobDetail, 0, len(models))
	for i := range models {
		d, convErr := fromDetailModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("ingest/bun: list jobs convert: %w", convErr)
		}
		details = append(details, d)
	}
	return details, nil
}

// CountJobs returns the number of jobs matching opts, with the same
// join semantics as ListJobs.
func (s *Store) CountJobs(ctx context.Context, opts queue.CountOpts) (int64, error) {
	q := s.db.NewSelect().
		TableExpr("ingest_jobs AS j").
		Join("LEFT JOIN ingest_files AS f ON f.id = j.file_id")

	if opts.Status != "" {
		q = q.Where("j.status = ?", string(opts.Status))
	}
	if opts.AppID != "" {
		q = q.Where("f.app_id = ?", opts.AppID)
	}
	if opts.OrgID != "" {
		q = q.Where("f.org_id = ?", opts.OrgID)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest/bun: count jobs: %w", err)
	}
	return int64(count), nil
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
	err := s.db.NewRaw(query, args...).Scan(ctx,
		&stats.Queued, &stats.Sent, &stats.Completed, &stats.Failed, &stats.Total,
	)
	if err != nil {
		return nil, fmt.Errorf("ingest/bun: job stats: %w", err)
	}
	return stats, nil
}
