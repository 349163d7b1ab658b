package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/backoff"
	"github.com/Ricou-IA/baikal-ingest/ext"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

// Trigger invokes the external processing worker. *trigger.Client
// satisfies this.
type Trigger interface {
	Trigger(ctx context.Context, p *trigger.Payload) error
}

// Service bundles the operator console operations over a job store and
// file registry.
type Service struct {
	jobs        queue.Store
	files       file.Registry
	trigger     Trigger
	logger      *slog.Logger
	ext         *ext.Registry
	maxAttempts int
	backoff     backoff.Strategy
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRegistry sets the extension registry notified on queue events.
func WithRegistry(r *ext.Registry) Option {
	return func(s *Service) { s.ext = r }
}

// WithMaxAttempts sets the attempt ceiling stamped on newly enqueued
// jobs. n <= 0 keeps queue.DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the strategy used to derive the next_retry_at hint
// when a worker failure report omits one.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Service) {
		if b != nil {
			s.backoff = b
		}
	}
}

// NewService creates a console service.
func NewService(jobs queue.Store, files file.Registry, trig Trigger, opts ...Option) *Service {
	s := &Service{
		jobs:        jobs,
		files:       files,
		trigger:     trig,
		logger:      slog.Default(),
		ext:         ext.NewRegistry(slog.Default()),
		maxAttempts: queue.DefaultMaxAttempts,
		backoff:     backoff.DefaultStrategy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns per-status counts for the given tenant scope,
// recomputed from the source rows. An empty match set yields all zeros.
func (s *Service) Stats(ctx context.Context, f queue.StatsFilter) (*queue.Stats, error) {
	return s.jobs.JobStats(ctx, f)
}

// ListParams controls the joined job listing.
type ListParams struct {
	// Status filters by job status. Empty means all statuses.
	Status queue.Status
	// AppID and OrgID scope the listing to a tenant.
	AppID string
	OrgID string
	// Search is a case-insensitive free-text match on the file's name
	// and the uploader's email, applied after the join as a refinement
	// of the fetched page.
	Search string
	// Limit caps the page fetched from the store, before search
	// refinement. Zero means no limit.
	Limit int
	// Offset is the number of rows to skip.
	Offset int
}

// ListJobs returns jobs joined with file and uploader, newest first.
// When Search is set the fetched page is refined in-process, so the
// result may hold fewer rows than Limit even when more matches exist
// beyond the page.
func (s *Service) ListJobs(ctx context.Context, p ListParams) ([]*queue.JobDetail, error) {
	if p.Status != "" && !p.Status.Valid() {
		return nil, fmt.Errorf("console: list status %q: %w", p.Status, ingest.ErrInvalidStatus)
	}

	details, err := s.jobs.ListJobs(ctx, queue.ListOpts{
		Status: p.Status,
		AppID:  p.AppID,
		OrgID:  p.OrgID,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(p.Search))
	if needle == "" {
		return details, nil
	}

	matched := make([]*queue.JobDetail, 0, len(details))
	for _, d := range details {
		if matchesSearch(d, needle) {
			matched = append(matched, d)
		}
	}
	return matched, nil
}

// matchesSearch reports whether the detail row matches the lowercased
// needle on filename or uploader email.
func matchesSearch(d *queue.JobDetail, needle string) bool {
	if d.File != nil && strings.Contains(strings.ToLower(d.File.Filename), needle) {
		return true
	}
	if d.Uploader != nil && strings.Contains(strings.ToLower(d.Uploader.Email), needle) {
		return true
	}
	return false
}
