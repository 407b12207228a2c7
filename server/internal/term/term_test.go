package term

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festtally/festtally/pkg/types"
	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/config"
)

func buildSpec(t *testing.T, ss []types.Standing) *chart.Spec {
	t.Helper()
	b, err := chart.NewBuilder(config.Default().Chart)
	require.NoError(t, err)
	spec, err := b.Build(ss, chart.Labels{Category: "ORGANIZATION", Value: "SCORE"})
	require.NoError(t, err)
	return spec
}

func TestRender(t *testing.T) {
	spec := buildSpec(t, []types.Standing{
		{Organization: "Hawks", Score: 80, ScoreText: "80"},
		{Organization: "Wrens", Score: 80, ScoreText: "80.0"},
		{Organization: "Owls", Score: 40, ScoreText: "40"},
	})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, spec, Options{Title: "Fest Tally Dashboard", LastUpdated: "March 14, 2026 | 6:45 PM"}))
	out := buf.String()

	assert.Contains(t, out, "Fest Tally Dashboard")
	assert.Contains(t, out, "Last updated: March 14, 2026 | 6:45 PM")
	assert.Contains(t, out, "ORGANIZATION")
	assert.Contains(t, out, "80.0")
	assert.NotContains(t, out, "stale")

	hawks := strings.Index(out, "Hawks")
	wrens := strings.Index(out, "Wrens")
	owls := strings.Index(out, "Owls")
	assert.True(t, hawks < wrens && wrens < owls, "rows out of ranked order:\n%s", out)

	assert.Contains(t, out, strings.Repeat("█", barWidth))
	assert.Contains(t, out, strings.Repeat("█", barWidth/2))
}

func TestRender_EmptyAndStale(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, buildSpec(t, nil), Options{Title: "t", Stale: true}))
	assert.Contains(t, buf.String(), "No standings yet.")
	assert.Contains(t, buf.String(), "stale data")
}

func TestBarCells(t *testing.T) {
	spec := &chart.Spec{Min: -10, Max: 100}
	assert.Equal(t, barWidth, barCells(100, spec))
	assert.Equal(t, 3, barCells(-10, spec))
	assert.Equal(t, 1, barCells(0.1, spec))
	assert.Equal(t, 0, barCells(0, spec))
	assert.Equal(t, 0, barCells(0, &chart.Spec{}))
}

func TestSummary(t *testing.T) {
	spec := buildSpec(t, []types.Standing{{Organization: "Hawks", Score: 80, ScoreText: "80"}})
	assert.Equal(t, "1 standings, leader Hawks (80)", Summary(spec))
	assert.Equal(t, "0 standings", Summary(buildSpec(t, nil)))
}
