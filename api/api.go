// Package api provides the operator HTTP surface of the ingest core.
//
// Routes are mounted under /v1 on a gorilla/mux router. Every mutating
// route maps one-to-one onto a console or retry service operation; the
// handlers do request decoding, error-to-status mapping, and nothing
// else. Authentication is a static operator API key checked by
// middleware; /v1/healthz is exempt.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/console"
	"github.com/Ricou-IA/baikal-ingest/retry"
)

// healthPath is exempt from API key authentication.
const healthPath = "/v1/healthz"

// maxBodyBytes bounds request bodies on mutating routes.
const maxBodyBytes = 1 << 20

// API wires the operator HTTP handlers over the console and retry
// services.
type API struct {
	console *console.Service
	retry   *retry.Service
	store   ingest.Storer
	logger  *slog.Logger
	keys    []string
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the structured logger used by handlers and
// middleware.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithAPIKeys sets the operator keys accepted by the auth middleware.
// Without keys the auth middleware refuses every request except health.
func WithAPIKeys(keys []string) Option {
	return func(a *API) { a.keys = keys }
}

// New creates an API over the given services. store is only used for
// the health check ping.
func New(consoleSvc *console.Service, retrySvc *retry.Service, store ingest.Storer, opts ...Option) *API {
	a := &API{
		console: consoleSvc,
		retry:   retrySvc,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler: all routes plus
// the standard middleware stack (recover, request ID, access log,
// auth, tracing, metrics).
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	a.RegisterRoutes(r)

	return Chain(r,
		Recover(a.logger),
		RequestID,
		AccessLog(a.logger),
		Auth(a.keys),
		Tracing(),
		Metrics(),
	)
}

// RegisterRoutes registers all queue routes on the given router
// without any middleware. Useful for embedding the API under an
// existing router.
func (a *API) RegisterRoutes(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/queue/stats", a.stats).Methods(http.MethodGet)
	v1.HandleFunc("/queue/jobs", a.listJobs).Methods(http.MethodGet)
	v1.HandleFunc("/queue/files", a.enqueueFile).Methods(http.MethodPost)
	v1.HandleFunc("/queue/jobs/{fileId}/retry", a.retryJob).Methods(http.MethodPost)
	v1.HandleFunc("/queue/jobs/{fileId}/report", a.reportJob).Methods(http.MethodPost)
	v1.HandleFunc("/queue/retry-all", a.retryAll).Methods(http.MethodPost)
	v1.HandleFunc("/queue/jobs/{jobId}", a.deleteJob).Methods(http.MethodDelete)
	v1.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
}
