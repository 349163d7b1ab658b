package api

import (
	"net/http"

	"github.com/Ricou-IA/baikal-ingest/queue"
)

// stats handles GET /v1/queue/stats. Query: app_id, org_id. Counts are
// recomputed from the source rows on every call; a tenant filter that
// matches nothing yields all zeros.
func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	st, err := a.console.Stats(r.Context(), queue.StatsFilter{
		AppID: q.Get("app_id"),
		OrgID: q.Get("org_id"),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// health handles GET /v1/healthz with a store ping.
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
