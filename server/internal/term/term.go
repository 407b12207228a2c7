// Package term renders ranked standings as a styled terminal table.
package term

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/festtally/festtally/server/internal/chart"
)

// barWidth is the cell width of the longest bar.
const barWidth = 30

// Options controls terminal output.
type Options struct {
	Title       string
	LastUpdated string
	Stale       bool
}

// Render writes spec as a table: rank, organization, score text, and a bar
// drawn in the bar's gradient color. Color is dropped when w is not a
// terminal.
func Render(w io.Writer, spec *chart.Spec, opts Options) error {
	r := lipgloss.NewRenderer(w)
	titleStyle := r.NewStyle().Bold(true)
	mutedStyle := r.NewStyle().Faint(true)
	warnStyle := r.NewStyle().Foreground(lipgloss.Color("#b45309")).Bold(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render(opts.Title))
	b.WriteString("\n")
	if opts.LastUpdated != "" {
		b.WriteString(mutedStyle.Render("Last updated: " + opts.LastUpdated))
		b.WriteString("\n")
	}
	if opts.Stale {
		b.WriteString(warnStyle.Render("Showing stale data: the latest load failed."))
		b.WriteString("\n")
	}

	if len(spec.Bars) == 0 {
		b.WriteString(mutedStyle.Render("No standings yet."))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("#", spec.CategoryLabel, spec.ValueLabel, "")

	for i, bar := range spec.Bars {
		fill := r.NewStyle().Foreground(lipgloss.Color(bar.Color))
		t.Row(
			strconv.Itoa(i+1),
			bar.Category,
			bar.Text,
			fill.Render(strings.Repeat("█", barCells(bar.Value, spec))),
		)
	}
	b.WriteString(t.Render())
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// barCells scales v against the largest absolute value in spec. Non-zero
// values always get at least one cell.
func barCells(v float64, spec *chart.Spec) int {
	peak := math.Max(math.Abs(spec.Min), math.Abs(spec.Max))
	if peak == 0 {
		return 0
	}
	n := int(math.Round(math.Abs(v) / peak * barWidth))
	if n == 0 && v != 0 {
		n = 1
	}
	return n
}

// Summary is a one-line description of spec, used in logs.
func Summary(spec *chart.Spec) string {
	if len(spec.Bars) == 0 {
		return "0 standings"
	}
	return fmt.Sprintf("%d standings, leader %s (%s)", len(spec.Bars), spec.Bars[0].Category, spec.Bars[0].Text)
}
