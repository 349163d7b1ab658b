package ingest

import "context"

type contextKey int

const requestIDKey contextKey = iota

// WithRequestID returns a context carrying the given request ID.
// The API middleware stamps one per inbound request; the trigger client
// forwards it to the worker as X-Request-ID when present.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom extracts the request ID from ctx, if any.
func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok && v != ""
}
