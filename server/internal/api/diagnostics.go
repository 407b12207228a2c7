package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/festtally/festtally/server/internal/pipeline"
)

// conventionalIdentityColumn is the header the scoreboard sheet normally uses
// for its first column.
const conventionalIdentityColumn = "ORGANIZATION"

// DiagnosticHint is one human-readable insight about the feed's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
}

var levelOrder = map[string]int{"critical": 0, "warning": 1, "info": 2}

// computeDiagnostics derives hints from the feed status, critical first, then
// warnings, then info.
func computeDiagnostics(st pipeline.Status) []DiagnosticHint {
	hints := []DiagnosticHint{}

	if st.State == pipeline.StateUnknown {
		hints = append(hints, DiagnosticHint{
			Key:   "warming_up",
			Level: "info",
			Title: "No load yet",
			Detail: "The feed has not been loaded since the server started or the feed URL changed. " +
				"Open the dashboard or wait for the next refresh.",
		})
		return hints
	}

	if st.State == pipeline.StateFailing {
		hints = append(hints, failureHint(st))
	}
	if st.ServingStale {
		hints = append(hints, DiagnosticHint{
			Key:   "serving_stale",
			Level: "warning",
			Title: "Serving stale data",
			Detail: "The latest load failed, so the dashboard is showing the last good standings " +
				"with a staleness banner. It recovers on the next successful load.",
		})
	}

	// The remaining hints describe the last successful table.
	if st.LastSuccess.IsZero() {
		return sortHints(hints)
	}

	if st.Standings == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "empty_feed",
			Level:  "info",
			Title:  "Feed has no rows",
			Detail: "The sheet has a header row but no data rows, so the chart is empty.",
		})
	}
	if len(st.Duplicates) > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "duplicate_orgs",
			Level: "warning",
			Title: fmt.Sprintf("%d duplicated names", len(st.Duplicates)),
			Detail: fmt.Sprintf("These organizations appear on more than one row and are charted as separate bars: %s.",
				strings.Join(st.Duplicates, ", ")),
		})
	}
	if len(st.ExtraColumns) > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "extra_columns",
			Level: "info",
			Title: "Extra columns ignored",
			Detail: fmt.Sprintf("Only the first two columns are read. Ignored: %s.",
				strings.Join(st.ExtraColumns, ", ")),
		})
	}
	if !strings.EqualFold(st.IdentityColumn, conventionalIdentityColumn) {
		hints = append(hints, DiagnosticHint{
			Key:   "column_order",
			Level: "info",
			Title: "Check column order",
			Detail: fmt.Sprintf("Columns are read by position: %q is used as the organization and %q as the score. "+
				"If the sheet's columns were reordered, the chart will be wrong.", st.IdentityColumn, st.ScoreColumn),
		})
	}
	return sortHints(hints)
}

func failureHint(st pipeline.Status) DiagnosticHint {
	switch st.LastErrorKind {
	case pipeline.KindParse:
		return DiagnosticHint{
			Key:   "parse_failed",
			Level: "critical",
			Title: "Feed is not valid",
			Detail: fmt.Sprintf("The feed was downloaded but could not be read as a two-column tally: %s. "+
				"Check that the first column holds names and the second holds numbers.", st.LastError),
		}
	case pipeline.KindRender:
		return DiagnosticHint{
			Key:    "render_failed",
			Level:  "critical",
			Title:  "Chart failed",
			Detail: fmt.Sprintf("The standings loaded but the chart could not be built: %s.", st.LastError),
		}
	default:
		return DiagnosticHint{
			Key:   "feed_unreachable",
			Level: "critical",
			Title: "Can't reach feed",
			Detail: fmt.Sprintf("The feed could not be fetched (%d failures in a row): %s. "+
				"Check that the sheet is still published and the URL is correct.", st.ConsecutiveFailures, st.LastError),
		}
	}
}

func sortHints(h []DiagnosticHint) []DiagnosticHint {
	sort.SliceStable(h, func(i, j int) bool { return levelOrder[h[i].Level] < levelOrder[h[j].Level] })
	return h
}
