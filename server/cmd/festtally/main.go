// Command festtally serves the live scoreboard dashboard and renders one-off
// charts from the same pipeline.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	// The page time zone must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/festtally/festtally/server/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "festtally",
		Short:        "Live bar-chart dashboard for a published scoreboard sheet",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to YAML config file (empty: compiled-in defaults)")

	root.AddCommand(
		newServeCmd(&configPath),
		newRenderCmd(&configPath),
		newShowCmd(&configPath),
	)
	return root
}

// setupLogging installs the default slog logger writing to w. The returned
// LevelVar lets a config reload change the level in place.
func setupLogging(w io.Writer, cfg config.LoggingConfig) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return level
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
