package api

import (
	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/metrics"
)

// StandingResponse is one ranked row in GET /api/v1/standings.
type StandingResponse struct {
	Rank         int     `json:"rank"`
	Organization string  `json:"organization"`
	Score        float64 `json:"score"`
	ScoreText    string  `json:"score_text"`
}

// StandingsResponse is the payload for GET /api/v1/standings.
type StandingsResponse struct {
	RunID          string             `json:"run_id"`
	IdentityColumn string             `json:"identity_column"`
	ScoreColumn    string             `json:"score_column"`
	FetchedAt      string             `json:"fetched_at"` // RFC3339
	Stale          bool               `json:"stale"`
	Standings      []StandingResponse `json:"standings"`
}

// ChartResponse is the payload for GET /api/v1/chart.
type ChartResponse struct {
	RunID     string      `json:"run_id"`
	FetchedAt string      `json:"fetched_at"` // RFC3339
	Stale     bool        `json:"stale"`
	Chart     *chart.Spec `json:"chart"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State   string `json:"state"`
	FeedURL string `json:"feed_url"`

	IdentityColumn string   `json:"identity_column,omitempty"`
	ScoreColumn    string   `json:"score_column,omitempty"`
	ExtraColumns   []string `json:"extra_columns,omitempty"`
	Standings      int      `json:"standings"`

	ConsecutiveFailures int     `json:"consecutive_failures"`
	LastAttempt         string  `json:"last_attempt,omitempty"` // RFC3339
	LastSuccess         string  `json:"last_success,omitempty"` // RFC3339
	StaleSeconds        float64 `json:"stale_seconds"`
	ServingStale        bool    `json:"serving_stale"`
	LastError           string  `json:"last_error,omitempty"`
	LastErrorKind       string  `json:"last_error_kind,omitempty"`

	AlertCount  int              `json:"alert_count"`
	Metrics     metrics.Snapshot `json:"metrics"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	RunID string `json:"run_id,omitempty"`
}
