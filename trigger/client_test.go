package trigger_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

func TestTriggerPostsCanonicalPayload(t *testing.T) {
	var (
		gotAuth  string
		gotReqID string
		gotBody  trigger.Payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := trigger.New(srv.URL, trigger.WithBearerToken("wk_secret"))

	f := baseFile()
	j := queue.NewJob(f.ID, 3)
	if err := tr.Trigger(context.Background(), trigger.BuildPayload(j, f)); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	if gotAuth != "Bearer wk_secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Error("expected an X-Request-ID header")
	}
	if gotBody.FileID != f.ID.String() {
		t.Errorf("payload file_id = %q, want %q", gotBody.FileID, f.ID.String())
	}
}

func TestTriggerForwardsContextRequestID(t *testing.T) {
	var gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
	}))
	defer srv.Close()

	tr := trigger.New(srv.URL)
	ctx := ingest.WithRequestID(context.Background(), "req-42")

	f := baseFile()
	j := queue.NewJob(f.ID, 3)
	if err := tr.Trigger(ctx, trigger.BuildPayload(j, f)); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if gotReqID != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", gotReqID)
	}
}

func TestTriggerNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "worker overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := trigger.New(srv.URL)

	f := baseFile()
	j := queue.NewJob(f.ID, 3)
	err := tr.Trigger(context.Background(), trigger.BuildPayload(j, f))
	if !errors.Is(err, ingest.ErrTriggerFailed) {
		t.Fatalf("error = %v, want ErrTriggerFailed", err)
	}
}

func TestTriggerTransportErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	tr := trigger.New(srv.URL)

	f := baseFile()
	j := queue.NewJob(f.ID, 3)
	err := tr.Trigger(context.Background(), trigger.BuildPayload(j, f))
	if !errors.Is(err, ingest.ErrTriggerFailed) {
		t.Fatalf("error = %v, want ErrTriggerFailed", err)
	}
}

func TestTriggerRateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	// One token total: the second call must wait ~forever and give up
	// when the context is cancelled.
	tr := trigger.New(srv.URL, trigger.WithRateLimit(0.0001, 1))

	f := baseFile()
	j := queue.NewJob(f.ID, 3)
	p := trigger.BuildPayload(j, f)

	if err := tr.Trigger(context.Background(), p); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Trigger(ctx, p); err == nil {
		t.Fatal("expected rate limit wait to fail on cancelled context")
	}
}

func TestTriggerKeepsErrorBodySnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unknown layer"}`))
	}))
	defer srv.Close()

	tr := trigger.New(srv.URL)

	f := baseFile()
	j := queue.NewJob(f.ID, 3)
	err := tr.Trigger(context.Background(), trigger.BuildPayload(j, f))
	if err == nil || !errors.Is(err, ingest.ErrTriggerFailed) {
		t.Fatalf("error = %v, want ErrTriggerFailed", err)
	}
	if want := "unknown layer"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should carry the body snippet %q", err.Error(), want)
	}
}
