// Package trigger provides the client for the external processing
// worker and the canonical payload it receives.
//
// The worker contract is a single one-way HTTP POST: the core tells the
// worker "process this file" and moves on. Outcomes come back through
// the queue store write contract, never through this call. A trigger is
// fire-once: there is no automatic retry here, duplicate triggers are
// tolerated because the worker is idempotent per file.
//
// Usage:
//
//	tr := trigger.New("https://worker.internal/ingest",
//	    trigger.WithBearerToken("wk_..."),
//	    trigger.WithRateLimit(25, 50),
//	)
//	err := tr.Trigger(ctx, trigger.BuildPayload(job, file))
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	ingest "github.com/Ricou-IA/baikal-ingest"
)

const defaultTimeout = 30 * time.Second

// maxErrBody bounds how much of a worker error response is captured
// into the returned error.
const maxErrBody = 512

// Client invokes the external processing worker over HTTP.
type Client struct {
	url     string
	token   string
	http    *http.Client
	logger  *slog.Logger
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBearerToken sets the bearer token sent on every trigger call.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimit caps sustained trigger calls per second with a
// token-bucket limiter. rps <= 0 disables the limiter; burst defaults
// to 1.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a worker client for the given endpoint.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger posts the payload to the worker. Any transport failure or
// non-2xx response is reported as an error wrapping
// ingest.ErrTriggerFailed; the call itself mutates nothing.
func (c *Client) Trigger(ctx context.Context, p *Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("trigger: encode payload: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("trigger: rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("trigger: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	reqID, ok := ingest.RequestIDFrom(ctx)
	if !ok {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post: %v", ingest.ErrTriggerFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return fmt.Errorf("%w: status %d: %s", ingest.ErrTriggerFailed, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	c.logger.Debug("worker triggered",
		slog.String("queue_id", p.QueueID),
		slog.String("file_id", p.FileID),
		slog.String("request_id", reqID),
	)
	return nil
}
