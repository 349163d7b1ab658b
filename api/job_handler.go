package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/console"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// defaultListLimit caps unbounded job listings.
const defaultListLimit = 50

// listJobs handles GET /v1/queue/jobs.
// Query: status, app_id, org_id, search, limit, offset.
func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	details, err := a.console.ListJobs(r.Context(), console.ListParams{
		Status: queue.Status(q.Get("status")),
		AppID:  q.Get("app_id"),
		OrgID:  q.Get("org_id"),
		Search: q.Get("search"),
		Limit:  parseIntParam(q.Get("limit"), defaultListLimit),
		Offset: parseIntParam(q.Get("offset"), 0),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	// Empty pages marshal as [], never null.
	if details == nil {
		details = []*queue.JobDetail{}
	}
	writeJSON(w, http.StatusOK, details)
}

// enqueueRequest is the submission body of POST /v1/queue/files.
type enqueueRequest struct {
	Filename    string         `json:"filename"`
	Bucket      string         `json:"bucket"`
	StoragePath string         `json:"storage_path"`
	MimeType    string         `json:"mime_type"`
	SizeBytes   int64          `json:"size_bytes"`
	Layer       string         `json:"layer"`
	OrgID       string         `json:"org_id"`
	ProjectID   string         `json:"project_id"`
	AppID       string         `json:"app_id"`
	CreatedBy   string         `json:"created_by"`
	Metadata    map[string]any `json:"metadata"`
}

// jobResponse reports a job whose persistence succeeded, plus the
// trigger error when the worker hand-off failed. The state reset or
// creation always stands; TriggerError tells the operator the worker
// has not heard about it yet.
type jobResponse struct {
	Job          *queue.Job `json:"job"`
	TriggerError string     `json:"trigger_error,omitempty"`
}

// enqueueFile handles POST /v1/queue/files: registers the uploaded
// file, creates its job, and issues the initial trigger call. Responds
// 202 even when the trigger call failed; the job is queued either way.
func (a *API) enqueueFile(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	f := &file.File{
		Filename:    req.Filename,
		Bucket:      req.Bucket,
		StoragePath: req.StoragePath,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
		Layer:       req.Layer,
		OrgID:       req.OrgID,
		ProjectID:   req.ProjectID,
		AppID:       req.AppID,
		Metadata:    req.Metadata,
	}
	if req.CreatedBy != "" {
		uid, err := id.ParseUserID(req.CreatedBy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid created_by: "+err.Error())
			return
		}
		f.CreatedBy = uid
	}

	j, err := a.console.Enqueue(r.Context(), f)
	if err != nil && !errors.Is(err, ingest.ErrTriggerFailed) {
		a.writeServiceError(w, r, err)
		return
	}

	resp := jobResponse{Job: j}
	if err != nil {
		resp.TriggerError = err.Error()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// retryJob handles POST /v1/queue/jobs/{fileId}/retry. The optimistic
// reset contract shows through the status code: a trigger failure
// still responds 200 with the reset job and the error attached.
func (a *API) retryJob(w http.ResponseWriter, r *http.Request) {
	fileID, err := id.ParseFileID(mux.Vars(r)["fileId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id: "+err.Error())
		return
	}

	j, err := a.retry.Retry(r.Context(), fileID)
	if err != nil && !errors.Is(err, ingest.ErrTriggerFailed) {
		a.writeServiceError(w, r, err)
		return
	}

	resp := jobResponse{Job: j}
	if err != nil {
		resp.TriggerError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// reportJob handles POST /v1/queue/jobs/{fileId}/report, the worker's
// out-of-band status write.
func (a *API) reportJob(w http.ResponseWriter, r *http.Request) {
	fileID, err := id.ParseFileID(mux.Vars(r)["fileId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id: "+err.Error())
		return
	}

	var report console.Report
	if !decodeBody(w, r, &report) {
		return
	}

	j, err := a.console.Report(r.Context(), fileID, report)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// retryAll handles POST /v1/queue/retry-all. Query: app_id, org_id.
// Always responds 200 with the full sweep report; partial failure
// never collapses to an error status.
func (a *API) retryAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := a.retry.RetryAll(r.Context(), queue.StatsFilter{
		AppID: q.Get("app_id"),
		OrgID: q.Get("org_id"),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// deleteJob handles DELETE /v1/queue/jobs/{jobId}?file_id=. Responds
// 204 on success, 409 when the job is completed, 404 when either ID
// names nothing.
func (a *API) deleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(mux.Vars(r)["jobId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id: "+err.Error())
		return
	}
	fileID, err := id.ParseFileID(r.URL.Query().Get("file_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file_id: "+err.Error())
		return
	}

	if err := a.console.DeleteJob(r.Context(), jobID, fileID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseIntParam parses a query integer, falling back on empty or
// invalid input.
func parseIntParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
