package console_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/backoff"
	"github.com/Ricou-IA/baikal-ingest/console"
	"github.com/Ricou-IA/baikal-ingest/ext"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/store/memory"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

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

func newUpload(filename string) *file.File {
	return &file.File{
		Filename:    filename,
		Bucket:      "uploads",
		StoragePath: "org/" + filename,
		MimeType:    "application/pdf",
		SizeBytes:   1024,
		Layer:       "documents",
		OrgID:       "org_1",
		ProjectID:   "proj_1",
		AppID:       "app_1",
	}
}

// seedListing enqueues one file per name and wires an uploader email.
func seedListing(t *testing.T, s *memory.Store, svc *console.Service, filename, email string) *queue.Job {
	t.Helper()
	ctx := context.Background()

	f := newUpload(filename)
	f.CreatedBy = id.NewUserID()
	s.PutUploader(&file.Uploader{ID: f.CreatedBy, Email: email})

	j, err := svc.Enqueue(ctx, f)
	if err != nil {
		t.Fatalf("Enqueue(%s): %v", filename, err)
	}
	return j
}

// ──────────────────────────────────────────────────
// Stats
// ──────────────────────────────────────────────────

func TestStats_RecomputesFromSource(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	seedListing(t, s, svc, "a.pdf", "a@example.com")
	j := seedListing(t, s, svc, "b.pdf", "b@example.com")
	if _, err := svc.Report(ctx, j.FileID, console.Report{Status: queue.StatusFailed, ErrorMessage: "boom"}); err != nil {
		t.Fatalf("Report: %v", err)
	}

	stats, err := svc.Stats(ctx, queue.StatsFilter{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Queued != 1 || stats.Failed != 1 || stats.Total != 2 {
		t.Errorf("stats = %+v, want 1 queued / 1 failed / 2 total", stats)
	}

	empty, err := svc.Stats(ctx, queue.StatsFilter{AppID: "app_none"})
	if err != nil {
		t.Fatalf("Stats scoped: %v", err)
	}
	if *empty != (queue.Stats{}) {
		t.Errorf("scoped stats = %+v, want all zeros", empty)
	}
}

// ──────────────────────────────────────────────────
// ListJobs + search
// ──────────────────────────────────────────────────

func TestListJobs_SearchRefinesPage(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	alpha := seedListing(t, s, svc, "alpha-report.pdf", "alice@example.com")
	beta := seedListing(t, s, svc, "beta-notes.txt", "bob@corp.io")

	tests := []struct {
		name   string
		search string
		want   []id.JobID
	}{
		{"by filename", "alpha", []id.JobID{alpha.ID}},
		{"by email case-insensitive", "BOB@", []id.JobID{beta.ID}},
		{"no match", "gamma", nil},
		{"blank search returns page", "   ", []id.JobID{beta.ID, alpha.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListJobs(ctx, console.ListParams{Search: tt.search})
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i, d := range got {
				if d.ID != tt.want[i] {
					t.Errorf("row %d = %v, want %v", i, d.ID, tt.want[i])
				}
			}
		})
	}
}

func TestListJobs_DanglingFileNeverMatchesSearch(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	j := seedListing(t, s, svc, "orphan.pdf", "gone@example.com")
	if err := s.DeleteFile(ctx, j.FileID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	// Unfiltered, unsearched: the dangling row is present with nil File.
	all, err := svc.ListJobs(ctx, console.ListParams{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 1 || all[0].File != nil {
		t.Fatalf("expected one dangling row with nil File, got %+v", all)
	}

	// Search has nothing to match against on a dangling row.
	got, err := svc.ListJobs(ctx, console.ListParams{Search: "orphan"})
	if err != nil {
		t.Fatalf("ListJobs search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestListJobs_InvalidStatusRejected(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})

	_, err := svc.ListJobs(context.Background(), console.ListParams{Status: "bogus"})
	if !errors.Is(err, ingest.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

// ──────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────

func TestEnqueue_CreatesFileJobAndTriggers(t *testing.T) {
	s := memory.New()
	ft := &fakeTrigger{}
	svc := console.NewService(s, s, ft, console.WithMaxAttempts(5))
	ctx := context.Background()

	f := newUpload("fresh.pdf")
	j, err := svc.Enqueue(ctx, f)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if j.Status != queue.StatusQueued {
		t.Errorf("Status = %q, want queued", j.Status)
	}
	if j.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", j.MaxAttempts)
	}
	if f.ID.IsNil() {
		t.Error("expected a minted file ID")
	}
	if j.FileID != f.ID {
		t.Errorf("FileID = %v, want %v", j.FileID, f.ID)
	}

	gf, err := s.GetFile(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if gf.ProcessingStatus != file.ProcessingPending {
		t.Errorf("ProcessingStatus = %q, want pending", gf.ProcessingStatus)
	}

	if len(ft.calls) != 1 {
		t.Fatalf("expected 1 trigger call, got %d", len(ft.calls))
	}
	if ft.calls[0].QueueID != j.ID.String() {
		t.Errorf("payload QueueID = %q, want %q", ft.calls[0].QueueID, j.ID)
	}
}

func TestEnqueue_DuplicateFileRejected(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	f := newUpload("dup.pdf")
	if _, err := svc.Enqueue(ctx, f); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}

	again := newUpload("dup.pdf")
	again.ID = f.ID
	_, err := svc.Enqueue(ctx, again)
	if !errors.Is(err, ingest.ErrJobAlreadyExists) {
		t.Fatalf("err = %v, want ErrJobAlreadyExists", err)
	}
}

func TestEnqueue_TriggerFailureKeepsJob(t *testing.T) {
	s := memory.New()
	ft := &fakeTrigger{fail: map[string]error{}}
	svc := console.NewService(s, s, ft)
	ctx := context.Background()

	f := newUpload("flaky.pdf")
	f.ID = id.NewFileID()
	ft.fail[f.ID.String()] = fmt.Errorf("%w: status 503", ingest.ErrTriggerFailed)

	j, err := svc.Enqueue(ctx, f)
	if !errors.Is(err, ingest.ErrTriggerFailed) {
		t.Fatalf("err = %v, want ErrTriggerFailed", err)
	}
	if j == nil {
		t.Fatal("expected the created job back alongside the error")
	}

	got, err := s.GetJob(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Errorf("Status = %q, want queued", got.Status)
	}
}

func TestEnqueue_RequiresFilename(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})

	if _, err := svc.Enqueue(context.Background(), newUpload("")); err == nil {
		t.Fatal("expected an error for a missing filename")
	}
}

// ──────────────────────────────────────────────────
// Report
// ──────────────────────────────────────────────────

func TestReport_WorkerWriteContract(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	j := seedListing(t, s, svc, "flow.pdf", "w@example.com")

	// Worker acknowledged pickup.
	sent, err := svc.Report(ctx, j.FileID, console.Report{Status: queue.StatusSent})
	if err != nil {
		t.Fatalf("Report sent: %v", err)
	}
	if sent.Status != queue.StatusSent || sent.LastAttemptAt == nil {
		t.Errorf("sent report: %+v, want sent with LastAttemptAt", sent)
	}

	// Failure with the worker's own schedule.
	workerRetry := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	failed, err := svc.Report(ctx, j.FileID, console.Report{
		Status:         queue.StatusFailed,
		ErrorMessage:   "ocr crashed",
		WorkerResponse: []byte(`{"page":7}`),
		NextRetryAt:    &workerRetry,
	})
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if failed.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", failed.Attempts)
	}
	if failed.ErrorMessage != "ocr crashed" {
		t.Errorf("ErrorMessage = %q", failed.ErrorMessage)
	}
	if failed.NextRetryAt == nil || !failed.NextRetryAt.Equal(workerRetry) {
		t.Errorf("NextRetryAt = %v, want %v", failed.NextRetryAt, workerRetry)
	}
	if string(failed.WorkerResponse) != `{"page":7}` {
		t.Errorf("WorkerResponse = %s", failed.WorkerResponse)
	}

	// Success clears the error and completes.
	done, err := svc.Report(ctx, j.FileID, console.Report{Status: queue.StatusCompleted})
	if err != nil {
		t.Fatalf("Report completed: %v", err)
	}
	if done.Status != queue.StatusCompleted || done.CompletedAt == nil {
		t.Errorf("completed report: %+v, want completed with CompletedAt", done)
	}
	if done.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared", done.ErrorMessage)
	}
}

func TestReport_FailureWithoutScheduleGetsBackoffHint(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{},
		console.WithBackoff(backoff.NewConstant(5*time.Minute)),
	)
	ctx := context.Background()

	j := seedListing(t, s, svc, "hint.pdf", "w@example.com")

	before := time.Now().UTC()
	failed, err := svc.Report(ctx, j.FileID, console.Report{
		Status:       queue.StatusFailed,
		ErrorMessage: "timeout",
	})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	after := time.Now().UTC()

	if failed.NextRetryAt == nil {
		t.Fatal("expected a backoff hint in NextRetryAt")
	}
	lo, hi := before.Add(5*time.Minute), after.Add(5*time.Minute)
	if failed.NextRetryAt.Before(lo) || failed.NextRetryAt.After(hi) {
		t.Errorf("NextRetryAt = %v, want within [%v, %v]", failed.NextRetryAt, lo, hi)
	}
}

func TestReport_CreatesRowWhenJobVanished(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	orphan := id.NewFileID()
	j, err := svc.Report(ctx, orphan, console.Report{Status: queue.StatusFailed, ErrorMessage: "late report"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if j.FileID != orphan || j.Status != queue.StatusFailed || j.Attempts != 1 {
		t.Errorf("recreated row = %+v", j)
	}
}

func TestReport_RejectsNonWorkerStatuses(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	for _, status := range []queue.Status{queue.StatusQueued, "bogus", ""} {
		if _, err := svc.Report(ctx, id.NewFileID(), console.Report{Status: status}); !errors.Is(err, ingest.ErrInvalidStatus) {
			t.Errorf("Report(%q) err = %v, want ErrInvalidStatus", status, err)
		}
	}
}

// ──────────────────────────────────────────────────
// DeleteJob
// ──────────────────────────────────────────────────

func TestDeleteJob_RemovesJobAndFile(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	j := seedListing(t, s, svc, "gone.pdf", "w@example.com")

	if err := svc.DeleteJob(ctx, j.ID, j.FileID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetJob(ctx, j.FileID); !errors.Is(err, ingest.ErrJobNotFound) {
		t.Errorf("job still present: %v", err)
	}
	if _, err := s.GetFile(ctx, j.FileID); !errors.Is(err, ingest.ErrFileNotFound) {
		t.Errorf("file still present: %v", err)
	}
}

func TestDeleteJob_CompletedFailsClosed(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	j := seedListing(t, s, svc, "done.pdf", "w@example.com")
	if _, err := svc.Report(ctx, j.FileID, console.Report{Status: queue.StatusCompleted}); err != nil {
		t.Fatalf("Report: %v", err)
	}

	err := svc.DeleteJob(ctx, j.ID, j.FileID)
	if !errors.Is(err, ingest.ErrJobCompleted) {
		t.Fatalf("err = %v, want ErrJobCompleted", err)
	}

	// Fail closed: both rows intact.
	if _, err := s.GetJob(ctx, j.FileID); err != nil {
		t.Errorf("job row mutated: %v", err)
	}
	if _, err := s.GetFile(ctx, j.FileID); err != nil {
		t.Errorf("file row mutated: %v", err)
	}
}

func TestDeleteJob_MismatchedPairNotFound(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	j := seedListing(t, s, svc, "pair.pdf", "w@example.com")

	err := svc.DeleteJob(ctx, id.NewJobID(), j.FileID)
	if !errors.Is(err, ingest.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
	if _, err := s.GetJob(ctx, j.FileID); err != nil {
		t.Errorf("job deleted despite mismatch: %v", err)
	}
}

func TestDeleteJob_FileFailureDoesNotResurrectJob(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})
	ctx := context.Background()

	j := seedListing(t, s, svc, "half.pdf", "w@example.com")
	// Make the cascade fail: the file is already gone. The job row is
	// read before the file, so delete proceeds on the dangling entry.
	if err := s.DeleteFile(ctx, j.FileID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	if err := svc.DeleteJob(ctx, j.ID, j.FileID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetJob(ctx, j.FileID); !errors.Is(err, ingest.ErrJobNotFound) {
		t.Errorf("job row survived: %v", err)
	}
}

func TestDeleteJob_UnknownFileNotFound(t *testing.T) {
	s := memory.New()
	svc := console.NewService(s, s, &fakeTrigger{})

	err := svc.DeleteJob(context.Background(), id.NewJobID(), id.NewFileID())
	if !errors.Is(err, ingest.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// consoleRecorder captures console lifecycle events.
type consoleRecorder struct {
	enqueued     int
	reported     int
	deleted      []id.JobID
	fileFailures []id.FileID
}

func (e *consoleRecorder) Name() string { return "console-recorder" }

func (e *consoleRecorder) OnJobEnqueued(_ context.Context, _ *queue.Job) error {
	e.enqueued++
	return nil
}

func (e *consoleRecorder) OnJobReported(_ context.Context, _ *queue.Job) error {
	e.reported++
	return nil
}

func (e *consoleRecorder) OnJobDeleted(_ context.Context, jobID id.JobID) error {
	e.deleted = append(e.deleted, jobID)
	return nil
}

func (e *consoleRecorder) OnFileDeleteFailed(_ context.Context, fileID id.FileID, _ error) error {
	e.fileFailures = append(e.fileFailures, fileID)
	return nil
}

func TestConsole_EmitsLifecycleHooks(t *testing.T) {
	s := memory.New()
	rec := &consoleRecorder{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(rec)
	svc := console.NewService(s, s, &fakeTrigger{}, console.WithRegistry(reg))
	ctx := context.Background()

	j, err := svc.Enqueue(ctx, newUpload("hooked.pdf"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.Report(ctx, j.FileID, console.Report{Status: queue.StatusSent}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := s.DeleteFile(ctx, j.FileID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := svc.DeleteJob(ctx, j.ID, j.FileID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	if rec.enqueued != 1 {
		t.Errorf("OnJobEnqueued fired %d times, want 1", rec.enqueued)
	}
	if rec.reported != 1 {
		t.Errorf("OnJobReported fired %d times, want 1", rec.reported)
	}
	if len(rec.deleted) != 1 || rec.deleted[0] != j.ID {
		t.Errorf("OnJobDeleted fired for %v, want [%v]", rec.deleted, j.ID)
	}
	if len(rec.fileFailures) != 1 || rec.fileFailures[0] != j.FileID {
		t.Errorf("OnFileDeleteFailed fired for %v, want [%v]", rec.fileFailures, j.FileID)
	}
}
