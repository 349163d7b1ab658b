package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Ricou-IA/baikal-ingest/ext"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// meterName is the instrumentation scope name for ingest metrics.
const meterName = "github.com/Ricou-IA/baikal-ingest"

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.JobEnqueued       = (*MetricsExtension)(nil)
	_ ext.JobReported       = (*MetricsExtension)(nil)
	_ ext.JobRetried        = (*MetricsExtension)(nil)
	_ ext.TriggerFailed     = (*MetricsExtension)(nil)
	_ ext.BulkRetryFinished = (*MetricsExtension)(nil)
	_ ext.JobDeleted        = (*MetricsExtension)(nil)
	_ ext.FileDeleteFailed  = (*MetricsExtension)(nil)
)

// MetricsExtension records queue lifecycle counters via OTel. Register
// it on the extension registry shared by the console and retry services
// to track enqueue rates, worker report outcomes, retry activity,
// trigger failures, and deletions.
type MetricsExtension struct {
	enqueued       metric.Int64Counter
	reported       metric.Int64Counter
	retried        metric.Int64Counter
	triggerFailed  metric.Int64Counter
	sweptJobs      metric.Int64Counter
	sweepErrors    metric.Int64Counter
	deleted        metric.Int64Counter
	fileDeleteFail metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. Without a configured provider every instrument is a
// noop and the extension is a pass-through.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// Instruments are created once here; OTel instruments are safe for
	// concurrent use. On error the API returns noop instruments, so the
	// extension degrades gracefully.
	m := &MetricsExtension{}

	m.enqueued, _ = meter.Int64Counter(
		"ingest.jobs.enqueued",
		metric.WithDescription("Jobs created through the submission path"),
		metric.WithUnit("{job}"),
	)
	m.reported, _ = meter.Int64Counter(
		"ingest.jobs.reported",
		metric.WithDescription("Worker status reports applied, by resulting status"),
		metric.WithUnit("{report}"),
	)
	m.retried, _ = meter.Int64Counter(
		"ingest.jobs.retried",
		metric.WithDescription("Jobs reset and re-triggered successfully"),
		metric.WithUnit("{job}"),
	)
	m.triggerFailed, _ = meter.Int64Counter(
		"ingest.trigger.failures",
		metric.WithDescription("Worker trigger calls that failed"),
		metric.WithUnit("{call}"),
	)
	m.sweptJobs, _ = meter.Int64Counter(
		"ingest.retry.swept_jobs",
		metric.WithDescription("Jobs reset by bulk retry sweeps"),
		metric.WithUnit("{job}"),
	)
	m.sweepErrors, _ = meter.Int64Counter(
		"ingest.retry.sweep_errors",
		metric.WithDescription("Per-job errors collected by bulk retry sweeps"),
		metric.WithUnit("{error}"),
	)
	m.deleted, _ = meter.Int64Counter(
		"ingest.jobs.deleted",
		metric.WithDescription("Jobs removed through the guarded delete"),
		metric.WithUnit("{job}"),
	)
	m.fileDeleteFail, _ = meter.Int64Counter(
		"ingest.files.delete_failures",
		metric.WithDescription("File cascade deletions that failed after a job delete"),
		metric.WithUnit("{file}"),
	)

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Queue lifecycle hooks ───────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, _ *queue.Job) error {
	m.enqueued.Add(ctx, 1)
	return nil
}

// OnJobReported implements ext.JobReported. The resulting status rides
// along as an attribute so report outcomes can be split downstream.
func (m *MetricsExtension) OnJobReported(ctx context.Context, j *queue.Job) error {
	m.reported.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(j.Status)),
	))
	return nil
}

// OnJobRetried implements ext.JobRetried.
func (m *MetricsExtension) OnJobRetried(ctx context.Context, _ *queue.Job) error {
	m.retried.Add(ctx, 1)
	return nil
}

// OnTriggerFailed implements ext.TriggerFailed.
func (m *MetricsExtension) OnTriggerFailed(ctx context.Context, _ *queue.Job, _ error) error {
	m.triggerFailed.Add(ctx, 1)
	return nil
}

// OnBulkRetryFinished implements ext.BulkRetryFinished.
func (m *MetricsExtension) OnBulkRetryFinished(ctx context.Context, total, failed int) error {
	m.sweptJobs.Add(ctx, int64(total))
	m.sweepErrors.Add(ctx, int64(failed))
	return nil
}

// ── Deletion hooks ──────────────────────────────────

// OnJobDeleted implements ext.JobDeleted.
func (m *MetricsExtension) OnJobDeleted(ctx context.Context, _ id.JobID) error {
	m.deleted.Add(ctx, 1)
	return nil
}

// OnFileDeleteFailed implements ext.FileDeleteFailed.
func (m *MetricsExtension) OnFileDeleteFailed(ctx context.Context, _ id.FileID, _ error) error {
	m.fileDeleteFail.Add(ctx, 1)
	return nil
}
