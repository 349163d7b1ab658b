// Package observability provides an OpenTelemetry metrics extension for
// the ingestion queue. MetricsExtension implements the lifecycle hooks
// to record counters for enqueues, worker reports, retries, trigger
// failures, bulk sweeps, and deletions.
//
// Instruments register against the global MeterProvider by default and
// degrade to no-ops when none is installed. For per-request tracing and
// metrics on the HTTP surface, see the api package middleware.
package observability
