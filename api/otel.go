package api

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// scopeName is the instrumentation scope for API tracing and metrics.
const scopeName = "github.com/Ricou-IA/baikal-ingest/api"

// Tracing wraps each request in an OpenTelemetry span using the global
// TracerProvider. Without a configured provider the noop tracer makes
// this a pass-through.
//
// Span attributes: http.method, http.route, http.status_code. A 5xx
// response marks the span status as error.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(scopeName))
}

// TracingWithTracer is Tracing with an injected tracer, for tests or
// multi-provider setups.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "ingest.api.request",
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", r.URL.Path),
				),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", sr.status))
			if sr.status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(sr.status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// Metrics records per-request duration and counts using the global
// OTel MeterProvider. With no provider configured the instruments are
// noops and this middleware is a pass-through.
//
// Instruments:
//   - ingest.api.duration (Float64Histogram): request time in seconds,
//     with attributes: method, route, status
//   - ingest.api.requests (Int64Counter): total requests, same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(scopeName))
}

// MetricsWithMeter is Metrics with an injected meter, for tests.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once here; on error the OTel API returns
	// noop instruments, so the middleware degrades gracefully.
	duration, _ := meter.Float64Histogram(
		"ingest.api.duration",
		metric.WithDescription("Duration of API requests in seconds"),
		metric.WithUnit("s"),
	)
	requests, _ := meter.Int64Counter(
		"ingest.api.requests",
		metric.WithDescription("Total number of API requests"),
		metric.WithUnit("{request}"),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			elapsed := time.Since(start).Seconds()

			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", r.URL.Path),
				attribute.Int("status", sr.status),
			)
			duration.Record(r.Context(), elapsed, attrs)
			requests.Add(r.Context(), 1, attrs)
		})
	}
}
