package pipeline

import "time"

// Feed states.
const (
	StateUnknown = "unknown"
	StateOK      = "ok"
	StateFailing = "failing"
)

// Status is the Runner's view of feed health after the most recent run.
type Status struct {
	FeedURL string `json:"feed_url"`
	State   string `json:"state"`

	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	LastErrorKind       string    `json:"last_error_kind,omitempty"`

	// Shape of the last successful table.
	IdentityColumn string   `json:"identity_column,omitempty"`
	ScoreColumn    string   `json:"score_column,omitempty"`
	ExtraColumns   []string `json:"extra_columns,omitempty"`
	Standings      int      `json:"standings"`
	Duplicates     []string `json:"duplicates,omitempty"`

	// ServingStale is set when the last run fell back to a stored result.
	ServingStale bool `json:"serving_stale"`
}

// StaleFor returns how long it has been since the last success, or since the
// last attempt when the feed has never loaded.
func (s Status) StaleFor(now time.Time) time.Duration {
	switch {
	case !s.LastSuccess.IsZero():
		return now.Sub(s.LastSuccess)
	case !s.LastAttempt.IsZero():
		return now.Sub(s.LastAttempt)
	default:
		return 0
	}
}
