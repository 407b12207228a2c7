package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_EmptyPathDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Feed.URL != DefaultFeedURL {
		t.Errorf("feed.url: got %q, want default", cfg.Feed.URL)
	}
	if cfg.Page.Title != DefaultTitle {
		t.Errorf("page.title: got %q, want %q", cfg.Page.Title, DefaultTitle)
	}
	if cfg.Fallback.Enabled {
		t.Error("fallback.enabled: got true, want false by default")
	}
	if len(cfg.Chart.Gradient) != 3 {
		t.Errorf("chart.gradient: got %d colors, want 3", len(cfg.Chart.Gradient))
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := writeConfig(t, `page:
  title: "Intramurals 2026"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Page.Title != "Intramurals 2026" {
		t.Errorf("page.title: got %q", cfg.Page.Title)
	}
	if cfg.Feed.Timeout != DefaultFeedTimeout {
		t.Errorf("feed.timeout: got %v, want %v", cfg.Feed.Timeout, DefaultFeedTimeout)
	}
	if cfg.Chart.RotateAfter != DefaultRotateAfter {
		t.Errorf("chart.rotate_after: got %d, want %d", cfg.Chart.RotateAfter, DefaultRotateAfter)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  refresh_interval: 30s
feed:
  url: "http://sheets.local/pub?output=csv"
  timeout: 3s
  retries: 0
  backoff_initial: 100ms
  backoff_max: 1s
chart:
  gradient: ["#ffffff", "#888888", "#000000"]
  rotate_after: 5
  width: 800
  height: 400
page:
  title: Tally
  logo_url: "https://cdn.local/logo.png"
  timezone: Asia/Manila
fallback:
  enabled: true
  max_age: 10m
alerts:
  dashboard_url: "https://tally.local"
  rules:
    - name: feed-down
      condition: "consecutive_failures >= 3"
      severity: critical
  webhooks:
    - type: slack
      url_env: SLACK_URL
logging:
  level: debug
  format: text
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.RefreshInterval != 30*time.Second {
		t.Errorf("refresh_interval: got %v, want 30s", cfg.Server.RefreshInterval)
	}
	if cfg.Feed.Retries != 0 {
		t.Errorf("feed.retries: got %d, want 0", cfg.Feed.Retries)
	}
	if cfg.Chart.Gradient[1] != "#888888" {
		t.Errorf("chart.gradient[1]: got %q", cfg.Chart.Gradient[1])
	}
	loc, err := cfg.Page.Location()
	if err != nil || loc.String() != "Asia/Manila" {
		t.Errorf("Location: got %v, %v", loc, err)
	}
	if !cfg.Fallback.Enabled || cfg.Fallback.MaxAge != 10*time.Minute {
		t.Errorf("fallback: got %+v", cfg.Fallback)
	}
	if len(cfg.Alerts.Rules) != 1 || cfg.Alerts.Rules[0].Severity != "critical" {
		t.Errorf("alerts.rules: got %+v", cfg.Alerts.Rules)
	}
	if cfg.Alerts.DashboardURL != "https://tally.local" {
		t.Errorf("alerts.dashboard_url: got %q", cfg.Alerts.DashboardURL)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("logging.format: got %q, want text", cfg.Logging.Format)
	}
}

func TestWebhookURLFromEnv(t *testing.T) {
	t.Setenv("TEST_HOOK_URL", "https://hooks.local/x")
	w := WebhookConfig{Type: "http", URLEnv: "TEST_HOOK_URL"}
	if got := w.URL(); got != "https://hooks.local/x" {
		t.Errorf("URL(): got %q", got)
	}
	if got := (WebhookConfig{}).URL(); got != "" {
		t.Errorf("URL() without env: got %q, want empty", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"port":         "server:\n  http_port: 70000\n",
		"scheme":       "feed:\n  url: \"ftp://example.com/x.csv\"\n",
		"timeout":      "feed:\n  timeout: 0s\n",
		"retries":      "feed:\n  retries: -1\n",
		"backoff":      "feed:\n  backoff_initial: 10s\n  backoff_max: 1s\n",
		"gradient len": "chart:\n  gradient: [\"#ffffff\", \"#000000\"]\n",
		"gradient hex": "chart:\n  gradient: [\"#ffffff\", \"blue\", \"#000000\"]\n",
		"rotate":       "chart:\n  rotate_after: -1\n",
		"timezone":     "page:\n  timezone: Mars/Olympus\n",
		"rule":         "alerts:\n  rules:\n    - name: x\n      condition: \"broken\"\n",
		"log level":    "logging:\n  level: loud\n",
		"log format":   "logging:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "page:\n  title: before\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("page:\n  title: after\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// A truncate-then-write may surface as two events; wait for the final one.
	deadline := time.After(3 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case c := <-got:
			reloaded = c.Page.Title == "after"
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

// startWatch runs Watch on p and returns a channel of reloaded configs.
func startWatch(t *testing.T, p string) <-chan *Config {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch returned %v", err)
		}
	})
	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	return got
}

func TestWatch_AtomicRename(t *testing.T) {
	p := writeConfig(t, "page:\n  title: before\n")
	got := startWatch(t, p)

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, []byte("page:\n  title: renamed\n"), 0o600); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		t.Fatalf("rename: %v", err)
	}

	select {
	case c := <-got:
		if c.Page.Title != "renamed" {
			t.Errorf("title: got %q, want renamed", c.Page.Title)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload after rename")
	}
}

func TestWatch_InvalidAndUnchangedSkipped(t *testing.T) {
	p := writeConfig(t, "page:\n  title: before\n")
	got := startWatch(t, p)

	// Same bytes, then an invalid file: neither reaches onChange.
	if err := os.WriteFile(p, []byte("page:\n  title: before\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(p, []byte("logging:\n  level: loud\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		t.Fatalf("unexpected reload: %+v", c.Page)
	case <-time.After(500 * time.Millisecond):
	}

	if err := os.WriteFile(p, []byte("page:\n  title: fixed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-got:
		if c.Page.Title != "fixed" {
			t.Errorf("title: got %q, want fixed", c.Page.Title)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
