package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the config at path whenever the file changes and passes the
// result to onChange. It runs until ctx is cancelled.
//
// The parent directory is watched so atomic saves (write temp, rename over)
// are seen. Saves that leave the bytes unchanged are ignored. An invalid file
// is logged and the running config is kept.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	slog.Info("config: watching for changes", "path", abs)

	last, _ := os.ReadFile(abs)
	feedURL := ""
	if cfg, err := Load(abs); err == nil {
		feedURL = cfg.Feed.URL
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)

		case <-timer.C:
			raw, err := os.ReadFile(abs)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", abs, "err", err)
				continue
			}
			if bytes.Equal(raw, last) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", abs, "err", err)
				continue
			}
			last = raw

			if cfg.Feed.URL != feedURL {
				slog.Info("config: feed url changed", "from", feedURL, "to", cfg.Feed.URL)
				feedURL = cfg.Feed.URL
			}
			slog.Info("config: reloaded",
				"path", abs,
				"refresh_interval", cfg.Server.RefreshInterval,
				"fallback", cfg.Fallback.Enabled,
				"alert_rules", len(cfg.Alerts.Rules))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
