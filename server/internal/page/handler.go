package page

import (
	"bytes"
	"embed"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/pipeline"
)

//go:embed assets/logo.svg
var assets embed.FS

// RequestIDHeader carries the run ID of the pipeline run behind a response.
const RequestIDHeader = "X-Request-Id"

// Handler serves the dashboard page and chart exports.
type Handler struct {
	runner *pipeline.Runner
	pres   *Presenter
	mux    *http.ServeMux
}

// NewHandler creates a Handler that runs r on every request and registers
// its routes.
func NewHandler(r *pipeline.Runner, p *Presenter) *Handler {
	h := &Handler{runner: r, pres: p, mux: http.NewServeMux()}

	h.mux.HandleFunc("/", h.dashboard)
	h.mux.HandleFunc("/chart.png", h.png)
	h.mux.HandleFunc("/chart.svg", h.svg)
	h.mux.Handle("/assets/", http.FileServerFS(assets))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// run executes one pipeline run tagged with a fresh request ID, echoed in the
// response header.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*pipeline.Result, string, error) {
	id := uuid.NewString()
	w.Header().Set(RequestIDHeader, id)
	res, err := h.runner.Run(pipeline.WithRunID(r.Context(), id))
	return res, id, err
}

// dashboard serves GET /: the full page, built from a fresh pipeline run.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.runner.Config()
	opts, err := OptionsFrom(cfg)
	if err != nil {
		h.fail(w, cfg.Page.Title, "", &chart.RenderError{Op: "page", Err: err})
		return
	}

	res, id, err := h.run(w, r)
	if err != nil {
		h.fail(w, opts.Title, id, err)
		return
	}
	opts = opts.ForResult(res)

	// Render to a buffer so a template failure can still produce an error page.
	var buf bytes.Buffer
	if err := h.pres.Render(&buf, res.Spec, opts); err != nil {
		h.fail(w, opts.Title, id, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// png serves GET /chart.png.
func (h *Handler) png(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "image/png", chart.RenderPNG)
}

// svg serves GET /chart.svg.
func (h *Handler) svg(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "image/svg+xml", chart.RenderSVG)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, contentType string,
	render func(io.Writer, *chart.Spec, chart.Size) error) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, id, err := h.run(w, r)
	if err != nil {
		http.Error(w, err.Error(), pipeline.HTTPStatus(err))
		return
	}

	cfg := h.runner.Config()
	var buf bytes.Buffer
	if err := render(&buf, res.Spec, chart.Size{Width: cfg.Chart.Width, Height: cfg.Chart.Height}); err != nil {
		slog.Error("page: chart export failed", "run_id", id, "err", err)
		http.Error(w, err.Error(), pipeline.HTTPStatus(err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) fail(w http.ResponseWriter, title, id string, err error) {
	status := pipeline.HTTPStatus(err)
	heading := "The scoreboard feed could not be loaded"
	if status == http.StatusInternalServerError {
		heading = "The chart could not be drawn"
	}

	var buf bytes.Buffer
	if rerr := h.pres.RenderError(&buf, title, status, heading, err.Error(), id); rerr != nil {
		slog.Error("page: error page failed", "run_id", id, "err", rerr)
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
