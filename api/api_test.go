package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/api"
	"github.com/Ricou-IA/baikal-ingest/console"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/retry"
	"github.com/Ricou-IA/baikal-ingest/store/memory"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

const testKey = "op_test_key"

// fakeTrigger records payloads and fails on demand per file ID.
type fakeTrigger struct {
	calls []*trigger.Payload
	fail  map[string]error
}

func (t *fakeTrigger) Trigger(_ context.Context, p *trigger.Payload) error {
	t.calls = append(t.calls, p)
	if err, ok := t.fail[p.FileID]; ok {
		return err
	}
	return nil
}

// newTestAPI assembles the full handler stack over a memory store.
func newTestAPI(t *testing.T) (*memory.Store, *fakeTrigger, http.Handler) {
	t.Helper()

	s := memory.New()
	ft := &fakeTrigger{fail: map[string]error{}}
	consoleSvc := console.NewService(s, s, ft)
	retrySvc := retry.NewService(s, s, ft)

	a := api.New(consoleSvc, retrySvc, s, api.WithAPIKeys([]string{testKey}))
	return s, ft, a.Handler()
}

// do issues an authenticated request and returns the recorder.
func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// seedJob drives a file and its job into the given status through the
// store, the same way the worker would.
func seedJob(t *testing.T, s *memory.Store, status queue.Status) (*file.File, *queue.Job) {
	t.Helper()
	ctx := context.Background()

	f := &file.File{
		Entity:           ingest.NewEntity(),
		ID:               id.NewFileID(),
		Filename:         "report.pdf",
		Bucket:           "uploads",
		StoragePath:      "org_1/report.pdf",
		MimeType:         "application/pdf",
		SizeBytes:        2048,
		OrgID:            "org_1",
		ProjectID:        "proj_1",
		AppID:            "app_1",
		ProcessingStatus: file.ProcessingPending,
	}
	if err := s.CreateFile(ctx, f); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	j := queue.NewJob(f.ID, 0)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if status == queue.StatusQueued {
		return f, j
	}

	upd := queue.StatusUpdate{IncrementAttempts: true}
	if status == queue.StatusFailed {
		upd.ErrorMessage = "worker timeout"
	}
	j, err := s.UpsertStatus(ctx, f.ID, status, upd)
	if err != nil {
		t.Fatalf("UpsertStatus: %v", err)
	}
	return f, j
}

// ──────────────────────────────────────────────────
// Auth and health
// ──────────────────────────────────────────────────

func TestAuthRequired(t *testing.T) {
	_, _, h := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/queue/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/queue/stats", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHealthExemptFromAuth(t *testing.T) {
	_, _, h := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

// ──────────────────────────────────────────────────
// Stats and listing
// ──────────────────────────────────────────────────

func TestStatsEmptyQueueAllZeros(t *testing.T) {
	_, _, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/v1/queue/stats?app_id=app_none", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var st queue.Stats
	decodeInto(t, rec, &st)
	if st != (queue.Stats{}) {
		t.Errorf("stats = %+v, want all zeros", st)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	s, _, h := newTestAPI(t)
	seedJob(t, s, queue.StatusQueued)
	seedJob(t, s, queue.StatusFailed)
	seedJob(t, s, queue.StatusCompleted)

	rec := do(t, h, http.MethodGet, "/v1/queue/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var st queue.Stats
	decodeInto(t, rec, &st)
	want := queue.Stats{Queued: 1, Failed: 1, Completed: 1, Total: 3}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
}

func TestListJobsFiltersAndEmptyArray(t *testing.T) {
	s, _, h := newTestAPI(t)
	seedJob(t, s, queue.StatusFailed)
	seedJob(t, s, queue.StatusQueued)

	rec := do(t, h, http.MethodGet, "/v1/queue/jobs?status=failed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var details []*queue.JobDetail
	decodeInto(t, rec, &details)
	if len(details) != 1 {
		t.Fatalf("len(details) = %d, want 1", len(details))
	}
	if details[0].Status != queue.StatusFailed {
		t.Errorf("status = %s, want failed", details[0].Status)
	}
	if details[0].File == nil {
		t.Error("File join missing")
	}

	// No matches must encode as [], not null.
	rec = do(t, h, http.MethodGet, "/v1/queue/jobs?status=sent", nil)
	if got := bytes.TrimSpace(rec.Body.Bytes()); string(got) != "[]" {
		t.Errorf("empty listing = %s, want []", got)
	}
}

func TestListJobsInvalidStatus(t *testing.T) {
	_, _, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/v1/queue/jobs?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// ──────────────────────────────────────────────────
// Submission path
// ──────────────────────────────────────────────────

func TestEnqueueFile(t *testing.T) {
	s, ft, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/queue/files", map[string]any{
		"filename":     "report.pdf",
		"bucket":       "uploads",
		"storage_path": "org_1/report.pdf",
		"mime_type":    "application/pdf",
		"size_bytes":   2048,
		"org_id":       "org_1",
		"project_id":   "proj_1",
		"app_id":       "app_1",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body)
	}

	var resp struct {
		Job          *queue.Job `json:"job"`
		TriggerError string     `json:"trigger_error"`
	}
	decodeInto(t, rec, &resp)
	if resp.Job == nil || resp.Job.Status != queue.StatusQueued {
		t.Fatalf("job = %+v, want queued", resp.Job)
	}
	if resp.TriggerError != "" {
		t.Errorf("trigger_error = %q, want empty", resp.TriggerError)
	}
	if len(ft.calls) != 1 {
		t.Fatalf("trigger calls = %d, want 1", len(ft.calls))
	}

	if _, err := s.GetJob(context.Background(), resp.Job.FileID); err != nil {
		t.Errorf("GetJob after enqueue: %v", err)
	}
}

func TestEnqueueRequiresFilename(t *testing.T) {
	_, _, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/queue/files", map[string]any{"bucket": "uploads"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestEnqueueTriggerFailureStillAccepted(t *testing.T) {
	// The file ID is minted server-side, so this test wires a trigger
	// that fails unconditionally instead of keying failures by ID.
	s := memory.New()
	failAll := &failAllTrigger{err: fmt.Errorf("%w: status 502", ingest.ErrTriggerFailed)}
	consoleSvc := console.NewService(s, s, failAll)
	retrySvc := retry.NewService(s, s, failAll)
	h := api.New(consoleSvc, retrySvc, s, api.WithAPIKeys([]string{testKey})).Handler()

	rec := do(t, h, http.MethodPost, "/v1/queue/files", map[string]any{
		"filename": "late.pdf",
		"bucket":   "uploads",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body)
	}

	var resp struct {
		Job          *queue.Job `json:"job"`
		TriggerError string     `json:"trigger_error"`
	}
	decodeInto(t, rec, &resp)
	if resp.Job == nil || resp.Job.Status != queue.StatusQueued {
		t.Fatalf("job = %+v, want queued", resp.Job)
	}
	if resp.TriggerError == "" {
		t.Error("trigger_error missing")
	}
}

// failAllTrigger fails every call with a fixed error.
type failAllTrigger struct{ err error }

func (t *failAllTrigger) Trigger(context.Context, *trigger.Payload) error { return t.err }

// ──────────────────────────────────────────────────
// Retry
// ──────────────────────────────────────────────────

func TestRetryResetsFailedJob(t *testing.T) {
	s, ft, h := newTestAPI(t)
	f, _ := seedJob(t, s, queue.StatusFailed)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/"+f.ID.String()+"/retry", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Job *queue.Job `json:"job"`
	}
	decodeInto(t, rec, &resp)
	if resp.Job.Status != queue.StatusQueued {
		t.Errorf("status = %s, want queued", resp.Job.Status)
	}
	if resp.Job.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", resp.Job.Attempts)
	}
	if resp.Job.ErrorMessage != "" {
		t.Errorf("error_message = %q, want empty", resp.Job.ErrorMessage)
	}
	if len(ft.calls) != 1 {
		t.Errorf("trigger calls = %d, want 1", len(ft.calls))
	}
}

func TestRetryUnknownFile(t *testing.T) {
	_, _, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/"+id.NewFileID().String()+"/retry", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRetryCompletedConflict(t *testing.T) {
	s, _, h := newTestAPI(t)
	f, _ := seedJob(t, s, queue.StatusCompleted)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/"+f.ID.String()+"/retry", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRetryBadID(t *testing.T) {
	_, _, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/not-an-id/retry", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRetryTriggerFailureReportsResetJob(t *testing.T) {
	s, ft, h := newTestAPI(t)
	f, _ := seedJob(t, s, queue.StatusFailed)
	ft.fail[f.ID.String()] = fmt.Errorf("%w: status 502: bad gateway", ingest.ErrTriggerFailed)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/"+f.ID.String()+"/retry", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Job          *queue.Job `json:"job"`
		TriggerError string     `json:"trigger_error"`
	}
	decodeInto(t, rec, &resp)
	if resp.Job.Status != queue.StatusQueued {
		t.Errorf("status = %s, want queued", resp.Job.Status)
	}
	if resp.TriggerError == "" {
		t.Error("trigger_error missing")
	}

	got, err := s.GetJob(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Errorf("stored status = %s, want queued", got.Status)
	}
}

func TestRetryAllReportsSweep(t *testing.T) {
	s, ft, h := newTestAPI(t)
	seedJob(t, s, queue.StatusFailed)
	f2, _ := seedJob(t, s, queue.StatusFailed)
	seedJob(t, s, queue.StatusQueued)
	seedJob(t, s, queue.StatusCompleted)
	ft.fail[f2.ID.String()] = fmt.Errorf("%w: status 502", ingest.ErrTriggerFailed)

	rec := do(t, h, http.MethodPost, "/v1/queue/retry-all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var res retry.BulkResult
	decodeInto(t, rec, &res)
	if res.Count != 3 {
		t.Errorf("count = %d, want 3", res.Count)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(res.Errors))
	}
	if res.Errors[0].FileID != f2.ID {
		t.Errorf("error file = %s, want %s", res.Errors[0].FileID, f2.ID)
	}
}

// ──────────────────────────────────────────────────
// Worker report
// ──────────────────────────────────────────────────

func TestReportCompletesJob(t *testing.T) {
	s, _, h := newTestAPI(t)
	f, _ := seedJob(t, s, queue.StatusSent)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/"+f.ID.String()+"/report", map[string]any{
		"status": "completed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var j queue.Job
	decodeInto(t, rec, &j)
	if j.Status != queue.StatusCompleted {
		t.Errorf("status = %s, want completed", j.Status)
	}
	if j.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestReportFailureRecordsError(t *testing.T) {
	s, _, h := newTestAPI(t)
	f, _ := seedJob(t, s, queue.StatusSent)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/"+f.ID.String()+"/report", map[string]any{
		"status":        "failed",
		"error_message": "ocr crashed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var j queue.Job
	decodeInto(t, rec, &j)
	if j.Status != queue.StatusFailed {
		t.Errorf("status = %s, want failed", j.Status)
	}
	if j.ErrorMessage != "ocr crashed" {
		t.Errorf("error_message = %q", j.ErrorMessage)
	}
	if j.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", j.Attempts)
	}
}

func TestReportRejectsQueuedStatus(t *testing.T) {
	s, _, h := newTestAPI(t)
	f, _ := seedJob(t, s, queue.StatusSent)

	rec := do(t, h, http.MethodPost, "/v1/queue/jobs/"+f.ID.String()+"/report", map[string]any{
		"status": "queued",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// ──────────────────────────────────────────────────
// Deletion guard
// ──────────────────────────────────────────────────

func TestDeleteJob(t *testing.T) {
	s, _, h := newTestAPI(t)
	f, j := seedJob(t, s, queue.StatusFailed)

	target := "/v1/queue/jobs/" + j.ID.String() + "?file_id=" + f.ID.String()
	rec := do(t, h, http.MethodDelete, target, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body)
	}

	if _, err := s.GetJob(context.Background(), f.ID); err == nil {
		t.Error("job still present after delete")
	}
}

func TestDeleteCompletedJobConflict(t *testing.T) {
	s, _, h := newTestAPI(t)
	f, j := seedJob(t, s, queue.StatusCompleted)

	target := "/v1/queue/jobs/" + j.ID.String() + "?file_id=" + f.ID.String()
	rec := do(t, h, http.MethodDelete, target, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	// Fail closed: both rows untouched.
	if _, err := s.GetJob(context.Background(), f.ID); err != nil {
		t.Errorf("job gone after rejected delete: %v", err)
	}
	if _, err := s.GetFile(context.Background(), f.ID); err != nil {
		t.Errorf("file gone after rejected delete: %v", err)
	}
}

func TestDeleteUnknownJob(t *testing.T) {
	_, _, h := newTestAPI(t)

	target := "/v1/queue/jobs/" + id.NewJobID().String() + "?file_id=" + id.NewFileID().String()
	rec := do(t, h, http.MethodDelete, target, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteMissingFileID(t *testing.T) {
	s, _, h := newTestAPI(t)
	_, j := seedJob(t, s, queue.StatusFailed)

	rec := do(t, h, http.MethodDelete, "/v1/queue/jobs/"+j.ID.String(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
