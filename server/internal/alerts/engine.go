package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/festtally/festtally/server/internal/config"
	"github.com/festtally/festtally/server/internal/pipeline"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
	healthPath      = "/api/v1/health"
)

// FeedSnapshot is the feed health carried by an alert, taken when it fired or
// resolved.
type FeedSnapshot struct {
	State               string  `json:"state"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	ErrorKind           string  `json:"error_kind,omitempty"`
	LastError           string  `json:"last_error,omitempty"`
	StaleSeconds        float64 `json:"stale_seconds"`
	ServingStale        bool    `json:"serving_stale"`
}

func snapshot(st pipeline.Status, now time.Time) FeedSnapshot {
	return FeedSnapshot{
		State:               st.State,
		ConsecutiveFailures: st.ConsecutiveFailures,
		ErrorKind:           st.LastErrorKind,
		LastError:           st.LastError,
		StaleSeconds:        st.StaleFor(now).Seconds(),
		ServingStale:        st.ServingStale,
	}
}

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string       `json:"id"`
	RuleName   string       `json:"rule_name"`
	FeedURL    string       `json:"feed_url"`
	Severity   string       `json:"severity"`
	Message    string       `json:"message"`
	Value      float64      `json:"value"`
	Feed       FeedSnapshot `json:"feed"`
	FiredAt    time.Time    `json:"fired_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	State      string       `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against feed statuses and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	rules     []config.AlertRule
	webhooks  []config.WebhookConfig
	healthURL string
	active    map[string]*Alert    // key: "ruleName:feedURL"
	lastFire  map[string]time.Time // last fire time per key (for cooldown)
	history   []*Alert             // recently resolved alerts

	client *http.Client
	now    func() time.Time

	// send delivers one alert; replaced in tests.
	send func(a *Alert)
	wg   sync.WaitGroup
}

// New creates an Engine from the alert configuration.
// An Engine with empty rules is valid; Evaluate then only resolves leftovers.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:     cfg.Rules,
		webhooks:  cfg.Webhooks,
		healthURL: healthURL(cfg.DashboardURL),
		active:    make(map[string]*Alert),
		lastFire:  make(map[string]time.Time),
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
	e.send = e.deliver
	return e
}

func healthURL(base string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + healthPath
}

// SetConfig replaces rules and webhooks. Firing alerts whose rule was removed
// resolve immediately.
func (e *Engine) SetConfig(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks
	e.healthURL = healthURL(cfg.DashboardURL)

	now := e.now()
	names := ruleNames(cfg.Rules)
	for key, a := range e.active {
		if !names[a.RuleName] {
			e.resolve(key, a.Feed, now)
		}
	}
}

// Evaluate tests all configured rules against st.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved, as
// are alerts for rules that no longer exist or for a feed URL other than
// st.FeedURL.
func (e *Engine) Evaluate(st pipeline.Status) {
	now := e.now()
	snap := snapshot(st, now)

	e.mu.Lock()
	rules := e.rules
	names := ruleNames(rules)
	for key, a := range e.active {
		if a.FeedURL != st.FeedURL || !names[a.RuleName] {
			e.resolve(key, a.Feed, now)
		}
	}
	e.mu.Unlock()

	for _, rule := range rules {
		key := rule.Name + ":" + st.FeedURL
		fires, value := evalCondition(rule.Condition, st, now)

		e.mu.Lock()
		if fires {
			e.fire(rule, st.FeedURL, key, value, snap, now)
		} else {
			e.resolve(key, snap, now)
		}
		e.mu.Unlock()
	}
}

func ruleNames(rules []config.AlertRule) map[string]bool {
	m := make(map[string]bool, len(rules))
	for _, r := range rules {
		m[r.Name] = true
	}
	return m
}

// fire records a firing alert unless the rule is cooling down.
// Caller holds e.mu.
func (e *Engine) fire(rule config.AlertRule, feedURL, key string, value float64, snap FeedSnapshot, now time.Time) {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) <= cooldown {
		return
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:       fmt.Sprintf("%s:%d", rule.Name, now.UnixNano()),
		RuleName: rule.Name,
		FeedURL:  feedURL,
		Severity: sev,
		Value:    value,
		Feed:     snap,
		Message:  fmt.Sprintf("[%s] %s fired: %s (value %.2f)", sev, rule.Name, rule.Condition, value),
		FiredAt:  now,
		State:    "firing",
	}
	e.active[key] = a
	e.lastFire[key] = now

	slog.Warn("alerts: rule fired",
		"rule", rule.Name,
		"feed_url", feedURL,
		"value", value,
		"severity", sev,
		"error_kind", snap.ErrorKind,
	)
	e.dispatch(a)
}

// resolve closes a firing alert for key, if any, recording snap as the feed
// state at resolution. Caller holds e.mu.
func (e *Engine) resolve(key string, snap FeedSnapshot, now time.Time) {
	a, ok := e.active[key]
	if !ok {
		return
	}
	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	a.Feed = snap
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}

	slog.Info("alerts: rule resolved", "rule", a.RuleName, "feed_url", a.FeedURL)
	e.dispatch(a)
}

// dispatch delivers a copy of a in the background. Caller holds e.mu.
func (e *Engine) dispatch(a *Alert) {
	cp := *a
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.send(&cp)
	}()
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}
