package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/festtally/festtally/server/internal/alerts"
	"github.com/festtally/festtally/server/internal/metrics"
	"github.com/festtally/festtally/server/internal/pipeline"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	runner  *pipeline.Runner
	alerts  *alerts.Engine
	metrics *metrics.Metrics
	mux     *http.ServeMux
	now     func() time.Time
}

// New creates a Handler and registers all routes. eng may be nil when
// alerting is not configured.
func New(r *pipeline.Runner, eng *alerts.Engine, m *metrics.Metrics) http.Handler {
	h := &Handler{runner: r, alerts: eng, metrics: m, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/standings", h.standings)
	h.mux.HandleFunc("/api/v1/chart", h.chart)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// standings returns GET /api/v1/standings: the ranked table.
func (h *Handler) standings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, ok := h.run(w, r)
	if !ok {
		return
	}

	out := make([]StandingResponse, 0, len(res.Ranked))
	for i, s := range res.Ranked {
		out = append(out, StandingResponse{
			Rank:         i + 1,
			Organization: s.Organization,
			Score:        s.Score,
			ScoreText:    s.ScoreText,
		})
	}
	jsonResp(w, http.StatusOK, StandingsResponse{
		RunID:          res.RunID,
		IdentityColumn: res.Table.IdentityColumn,
		ScoreColumn:    res.Table.ScoreColumn,
		FetchedAt:      res.FetchedAt.UTC().Format(time.RFC3339),
		Stale:          res.Stale,
		Standings:      out,
	})
}

// chart returns GET /api/v1/chart: the renderer-independent chart spec.
func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, ok := h.run(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, ChartResponse{
		RunID:     res.RunID,
		FetchedAt: res.FetchedAt.UTC().Format(time.RFC3339),
		Stale:     res.Stale,
		Chart:     res.Spec,
	})
}

// health returns GET /api/v1/health: feed status without running the pipeline.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st := h.runner.Status()
	resp := HealthResponse{
		State:               st.State,
		FeedURL:             st.FeedURL,
		IdentityColumn:      st.IdentityColumn,
		ScoreColumn:         st.ScoreColumn,
		ExtraColumns:        st.ExtraColumns,
		Standings:           st.Standings,
		ConsecutiveFailures: st.ConsecutiveFailures,
		LastAttempt:         rfc3339(st.LastAttempt),
		LastSuccess:         rfc3339(st.LastSuccess),
		StaleSeconds:        st.StaleFor(h.now()).Seconds(),
		ServingStale:        st.ServingStale,
		LastError:           st.LastError,
		LastErrorKind:       st.LastErrorKind,
		Diagnostics:         computeDiagnostics(st),
	}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == "firing" {
				resp.AlertCount++
			}
		}
	}
	if h.metrics != nil {
		snap, err := h.metrics.Snapshot()
		if err != nil {
			slog.Warn("api: gather metrics failed", "err", err)
		}
		resp.Metrics = snap
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/v1/alerts: firing plus recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []struct{}{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// --- helpers ----------------------------------------------------------------

// run executes the pipeline for a request. On failure it writes the JSON
// error and returns false.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	id := uuid.NewString()
	w.Header().Set("X-Request-Id", id)

	res, err := h.runner.Run(pipeline.WithRunID(r.Context(), id))
	if err != nil {
		jsonResp(w, pipeline.HTTPStatus(err), errorResponse{
			Error: err.Error(),
			Kind:  pipeline.ErrorKind(err),
			RunID: id,
		})
		return nil, false
	}
	return res, true
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
