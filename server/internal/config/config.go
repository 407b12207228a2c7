package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the dashboard configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultRefreshInterval = 60 * time.Second

	DefaultFeedURL        = "https://docs.google.com/spreadsheets/d/e/2PACX-1vQ1k4Liz4HvtBM6s8OaPex9E_8zmGTb_DLtlyShFifZ1XLSQ2e06XI3XQLefwH1xSIu0b-NWBaH3pcf/pub?output=csv"
	DefaultFeedTimeout    = 10 * time.Second
	DefaultFeedRetries    = 2
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 5 * time.Second

	DefaultRotateAfter = 8
	DefaultChartWidth  = 960
	DefaultChartHeight = 540

	DefaultTitle    = "Fest Tally Dashboard"
	DefaultLogoURL  = "/assets/logo.svg"
	DefaultTimezone = "UTC"

	DefaultFallbackMaxAge = time.Hour
)

// DefaultGradient is the light→dark color scale applied to bars by score.
var DefaultGradient = []string{"#deebf7", "#6baed6", "#08306b"}

// Config is the complete dashboard configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Feed     FeedConfig     `yaml:"feed"`
	Chart    ChartConfig    `yaml:"chart"`
	Page     PageConfig     `yaml:"page"`
	Fallback FallbackConfig `yaml:"fallback"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the dashboard, API, and websocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// RefreshInterval is how often the websocket hub reruns the pipeline and
	// pushes a fresh chart to connected pages. Zero disables the push loop;
	// pages still refresh on every load.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// FeedConfig describes the remote published-sheet CSV feed.
type FeedConfig struct {
	// URL is the published CSV endpoint. No auth, no query parameters added.
	URL string `yaml:"url"`

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the number of extra attempts after a network failure.
	// Zero makes every network failure fatal for that load.
	Retries int `yaml:"retries"`

	// BackoffInitial and BackoffMax bound the exponential wait between attempts.
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
}

// ChartConfig controls the bar chart encoding.
type ChartConfig struct {
	// Gradient holds exactly three hex colors, lightest first.
	Gradient []string `yaml:"gradient"`

	// RotateAfter is the category count above which organization labels are
	// drawn rotated.
	RotateAfter int `yaml:"rotate_after"`

	// Width and Height size the PNG/SVG exports and the inline page chart.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// PageConfig holds presentation constants for the dashboard page.
type PageConfig struct {
	Title         string `yaml:"title"`
	LogoURL       string `yaml:"logo_url"`
	BackgroundURL string `yaml:"background_url"`

	// Timezone is the IANA zone used for the "last updated" line.
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone. Validation guarantees it loads for configs
// returned by Load.
func (p PageConfig) Location() (*time.Location, error) {
	return time.LoadLocation(p.Timezone)
}

// FallbackConfig controls stale-data serving when the feed fails.
type FallbackConfig struct {
	// Enabled serves the last good standings, marked stale, instead of an
	// error page when a load fails.
	Enabled bool `yaml:"enabled"`

	// MaxAge is how long the last good load stays eligible for fallback.
	MaxAge time.Duration `yaml:"max_age"`
}

// AlertsConfig holds feed-health rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`

	// DashboardURL is the public base URL of this server. When set, webhook
	// messages link to its /api/v1/health endpoint.
	DashboardURL string `yaml:"dashboard_url"`
}

// AlertRule defines one threshold-based feed-health condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "consecutive_failures >= 3",
	// "stale_seconds > 600", "standings == 0", "state == failing".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        DefaultHTTPPort,
			RefreshInterval: DefaultRefreshInterval,
		},
		Feed: FeedConfig{
			URL:            DefaultFeedURL,
			Timeout:        DefaultFeedTimeout,
			Retries:        DefaultFeedRetries,
			BackoffInitial: DefaultBackoffInitial,
			BackoffMax:     DefaultBackoffMax,
		},
		Chart: ChartConfig{
			Gradient:    append([]string(nil), DefaultGradient...),
			RotateAfter: DefaultRotateAfter,
			Width:       DefaultChartWidth,
			Height:      DefaultChartHeight,
		},
		Page: PageConfig{
			Title:    DefaultTitle,
			LogoURL:  DefaultLogoURL,
			Timezone: DefaultTimezone,
		},
		Fallback: FallbackConfig{
			MaxAge: DefaultFallbackMaxAge,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.RefreshInterval < 0 {
		return fmt.Errorf("server.refresh_interval must not be negative")
	}

	u, err := url.Parse(cfg.Feed.URL)
	if err != nil {
		return fmt.Errorf("feed.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("feed.url %q: scheme must be http or https", cfg.Feed.URL)
	}
	if cfg.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if cfg.Feed.Retries < 0 {
		return fmt.Errorf("feed.retries must not be negative")
	}
	if cfg.Feed.BackoffInitial <= 0 || cfg.Feed.BackoffMax < cfg.Feed.BackoffInitial {
		return fmt.Errorf("feed.backoff_initial must be positive and not exceed feed.backoff_max")
	}

	if len(cfg.Chart.Gradient) != 3 {
		return fmt.Errorf("chart.gradient must have exactly 3 colors, got %d", len(cfg.Chart.Gradient))
	}
	for i, c := range cfg.Chart.Gradient {
		if !isHexColor(c) {
			return fmt.Errorf("chart.gradient[%d] %q is not a #rrggbb color", i, c)
		}
	}
	if cfg.Chart.RotateAfter < 0 {
		return fmt.Errorf("chart.rotate_after must not be negative")
	}
	if cfg.Chart.Width <= 0 || cfg.Chart.Height <= 0 {
		return fmt.Errorf("chart.width and chart.height must be positive")
	}

	if _, err := cfg.Page.Location(); err != nil {
		return fmt.Errorf("page.timezone %q: %w", cfg.Page.Timezone, err)
	}

	if cfg.Fallback.MaxAge < 0 {
		return fmt.Errorf("fallback.max_age must not be negative")
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition must be \"field op value\"", i, r.Name)
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q unknown: want debug|info|warn|error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q unknown: want json|text", cfg.Logging.Format)
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
