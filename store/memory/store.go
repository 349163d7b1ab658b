package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// Ensure Store implements store.Store at compile time.
// Verified per subsystem to keep this package free of the composite import.
var (
	_ queue.Store   = (*Store)(nil)
	_ file.Registry = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	// jobs is keyed by FileID: the file is the business key and at most
	// one live job exists per file.
	jobs      map[string]*queue.Job
	files     map[string]*file.File
	uploaders map[string]*file.Uploader
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:      make(map[string]*queue.Job),
		files:     make(map[string]*file.File),
		uploaders: make(map[string]*file.Uploader),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Queue Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job.
func (m *Store) CreateJob(_ context.Context, j *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.FileID.String()
	if _, exists := m.jobs[key]; exists {
		return ingest.ErrJobAlreadyExists
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob retrieves the job tracking the given file.
func (m *Store) GetJob(_ context.Context, fileID id.FileID) (*queue.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[fileID.String()]
	if !ok {
		return nil, ingest.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpsertStatus applies a status transition to the job tracking fileID,
// creating the row when no live entry exists. Last writer wins.
func (m *Store) UpsertStatus(_ context.Context, fileID id.FileID, status queue.Status, upd queue.StatusUpdate) (*queue.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fileID.String()
	j, ok := m.jobs[key]
	if !ok {
		j = queue.NewJob(fileID, 0)
		m.jobs[key] = j
	}

	now := time.Now().UTC()
	j.Status = status
	switch {
	case upd.ResetAttempts:
		j.Attempts = 0
	case upd.IncrementAttempts:
		j.Attempts++
	}
	if upd.ClearError {
		j.ErrorMessage = ""
	}
	if upd.ErrorMessage != "" {
		j.ErrorMessage = upd.ErrorMessage
	}
	if upd.WorkerResponse != nil {
		j.WorkerResponse = upd.WorkerResponse
	}
	if upd.NextRetryAt != nil {
		j.NextRetryAt = upd.NextRetryAt
	}
	if upd.LastAttemptAt != nil {
		j.LastAttemptAt = upd.LastAttemptAt
	}

	// Completion invariant: CompletedAt is set iff status is completed.
	if status == queue.StatusCompleted {
		c := now
		j.CompletedAt = &c
	} else {
		j.CompletedAt = nil
	}
	j.UpdatedAt = now

	cp := *j
	return &cp, nil
}

// DeleteJob removes a job row by job ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, j := range m.jobs {
		if j.ID == jobID {
			delete(m.jobs, key)
			return nil
		}
	}
	return ingest.ErrJobNotFound
}

// ListJobs returns jobs joined against the file registry, newest first.
func (m *Store) ListJobs(_ context.Context, opts queue.ListOpts) ([]*queue.JobDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*queue.JobDetail, 0, len(m.jobs))
	for _, j := range m.jobs {
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}

		f, ok := m.matchFile(j.FileID, opts.AppID, opts.OrgID, opts.TenantFiltered())
		if !ok {
			continue
		}

		d := &queue.JobDetail{Job: *j}
		if f != nil {
			fcp := *f
			d.File = &fcp
			if u := m.uploaders[f.CreatedBy.String()]; u != nil {
				ucp := *u
				d.Uploader = &ucp
			}
		}
		result = append(result, d)
	}

	// Newest first; tie-break on ID (K-sortable) for determinism.
	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.After(result[k].CreatedAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// CountJobs returns the number of jobs matching opts.
func (m *Store) CountJobs(_ context.Context, opts queue.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		if _, ok := m.matchFile(j.FileID, opts.AppID, opts.OrgID, opts.TenantFiltered()); !ok {
			continue
		}
		n++
	}
	return n, nil
}

// JobStats aggregates per-status counts for the given tenant scope.
func (m *Store) JobStats(_ context.Context, f queue.StatsFilter) (*queue.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &queue.Stats{}
	for _, j := range m.jobs {
		if _, ok := m.matchFile(j.FileID, f.AppID, f.OrgID, f.TenantFiltered()); !ok {
			continue
		}
		switch j.Status {
		case queue.StatusQueued:
			stats.Queued++
		case queue.StatusSent:
			stats.Sent++
		case queue.StatusCompleted:
			stats.Completed++
		case queue.StatusFailed:
			stats.Failed++
		}
		stats.Total++
	}
	return stats, nil
}

// matchFile resolves the file join for one job. When a tenant filter is
// active, a missing or non-matching file drops the job; otherwise the
// job passes with whatever file exists (possibly none).
func (m *Store) matchFile(fileID id.FileID, appID, orgID string, filtered bool) (*file.File, bool) {
	f := m.files[fileID.String()]
	if !filtered {
		return f, true
	}
	if f == nil {
		return nil, false
	}
	if appID != "" && f.AppID != appID {
		return nil, false
	}
	if orgID != "" && f.OrgID != orgID {
		return nil, false
	}
	return f, true
}

// ──────────────────────────────────────────────────
// File Registry
// ──────────────────────────────────────────────────

// CreateFile registers an uploaded file.
func (m *Store) CreateFile(_ context.Context, f *file.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *f
	m.files[f.ID.String()] = &cp
	return nil
}

// GetFile retrieves a registered file.
func (m *Store) GetFile(_ context.Context, fileID id.FileID) (*file.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[fileID.String()]
	if !ok {
		return nil, ingest.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

// ResetProcessing rewinds the processing mirror for a retried file.
func (m *Store) ResetProcessing(_ context.Context, fileID id.FileID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[fileID.String()]
	if !ok {
		return ingest.ErrFileNotFound
	}
	f.ProcessingStatus = file.ProcessingPending
	f.ProcessingError = ""
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteFile removes a registered file.
func (m *Store) DeleteFile(_ context.Context, fileID id.FileID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fileID.String()
	if _, ok := m.files[key]; !ok {
		return ingest.ErrFileNotFound
	}
	delete(m.files, key)
	return nil
}

// GetUploader looks up the account that uploaded a file.
func (m *Store) GetUploader(_ context.Context, userID id.UserID) (*file.Uploader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.uploaders[userID.String()]
	if !ok {
		return nil, ingest.ErrUploaderNotFound
	}
	cp := *u
	return &cp, nil
}

// PutUploader seeds an uploader account. The directory is read-only in
// the Registry contract; this is for tests and development wiring.
func (m *Store) PutUploader(u *file.Uploader) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *u
	m.uploaders[u.ID.String()] = &cp
}
