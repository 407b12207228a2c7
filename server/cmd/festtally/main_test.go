package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festtally/festtally/server/internal/config"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunOnceFromCSV(t *testing.T) {
	path := writeCSV(t, "ORGANIZATION,SCORE\nOwls,10\nHawks,30\nWrens,20\n")

	res, err := runOnce(context.Background(), config.Default(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hawks", "Wrens", "Owls"}, res.Spec.Categories())
}

func TestRenderToFormats(t *testing.T) {
	cfg := config.Default()
	res, err := runOnce(context.Background(), cfg, writeCSV(t, "ORGANIZATION,SCORE\nA,1\nB,2\n"))
	require.NoError(t, err)

	var png bytes.Buffer
	require.NoError(t, renderTo(&png, cfg, res, "png"))
	assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))

	var svg bytes.Buffer
	require.NoError(t, renderTo(&svg, cfg, res, "svg"))
	assert.Contains(t, svg.String(), "<svg")

	var page bytes.Buffer
	require.NoError(t, renderTo(&page, cfg, res, "html"))
	assert.Contains(t, page.String(), cfg.Page.Title)
	assert.NotContains(t, page.String(), "/ws/stream")

	assert.Error(t, renderTo(&bytes.Buffer{}, cfg, res, "gif"))
}

func TestWriteOut(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, writeOut("-", []byte("x"), &stdout))
	assert.Equal(t, "x", stdout.String())

	path := filepath.Join(t.TempDir(), "chart.svg")
	require.NoError(t, writeOut(path, []byte("<svg/>"), &stdout))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(got))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "render", "show"}, names)
}

func TestShowCommand(t *testing.T) {
	path := writeCSV(t, "ORGANIZATION,SCORE\nOwls,10\nHawks,30\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"show", "--csv", path})
	require.NoError(t, root.Execute())

	got := out.String()
	assert.Contains(t, got, "Hawks")
	assert.Contains(t, got, "Last updated: ")
	assert.Less(t, strings.Index(got, "Hawks"), strings.Index(got, "Owls"))
}

func TestRenderCommandWritesFile(t *testing.T) {
	path := writeCSV(t, "ORGANIZATION,SCORE\nOwls,10\nHawks,30\n")
	out := filepath.Join(t.TempDir(), "chart.svg")

	root := newRootCmd()
	root.SetArgs([]string{"render", "--csv", path, "--format", "svg", "--out", out})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}
