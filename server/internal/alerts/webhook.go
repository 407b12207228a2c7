package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a *Alert) {
	e.mu.Lock()
	webhooks := e.webhooks
	health := e.healthURL
	e.mu.Unlock()

	for _, wh := range webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var body any
		switch wh.Type {
		case "slack":
			body = slackPayload(a, health)
		case "teams":
			body = teamsPayload(a, health)
		case "http":
			body = httpPayload{Alert: a, HealthURL: health}
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := e.postJSON(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type,
			"rule", a.RuleName,
			"state", a.State,
		)
	}
}

// httpPayload is the body posted to generic http webhooks.
type httpPayload struct {
	Alert     *Alert `json:"alert"`
	HealthURL string `json:"health_url,omitempty"`
}

// headline is the one-line summary shared by chat payloads, e.g.
// "feed-down firing: network error, 3 consecutive failures".
func headline(a *Alert) string {
	var b strings.Builder
	b.WriteString(a.RuleName)
	b.WriteString(" ")
	b.WriteString(a.State)
	b.WriteString(": ")
	if a.Feed.ErrorKind != "" && a.State == "firing" {
		fmt.Fprintf(&b, "%s error, ", a.Feed.ErrorKind)
	}
	fmt.Fprintf(&b, "%d consecutive failures", a.Feed.ConsecutiveFailures)
	if a.Feed.ServingStale {
		b.WriteString(", serving stale standings")
	}
	return b.String()
}

// facts lists the feed-health fields shown in chat messages.
func facts(a *Alert) [][2]string {
	out := [][2]string{
		{"Feed", a.FeedURL},
		{"State", a.Feed.State},
		{"Consecutive failures", strconv.Itoa(a.Feed.ConsecutiveFailures)},
		{"Since last success", fmt.Sprintf("%.0fs", a.Feed.StaleSeconds)},
	}
	if a.Feed.ErrorKind != "" {
		out = append(out, [2]string{"Error kind", a.Feed.ErrorKind})
	}
	if a.Feed.LastError != "" {
		out = append(out, [2]string{"Last error", a.Feed.LastError})
	}
	return out
}

func slackPayload(a *Alert, health string) map[string]any {
	text := fmt.Sprintf("*%s* %s", severityLabel(a.Severity), headline(a))
	if health != "" {
		text += fmt.Sprintf(" <%s|feed health>", health)
	}
	fields := make([]map[string]any, 0, 6)
	for _, f := range facts(a) {
		fields = append(fields, map[string]any{
			"title": f[0],
			"value": f[1],
			"short": len(f[1]) < 40,
		})
	}
	return map[string]any{
		"text": text,
		"attachments": []map[string]any{{
			"color":  "#" + severityColor(a.Severity),
			"fields": fields,
		}},
	}
}

func teamsPayload(a *Alert, health string) map[string]any {
	kv := make([]map[string]string, 0, 6)
	for _, f := range facts(a) {
		kv = append(kv, map[string]string{"name": f[0], "value": f[1]})
	}
	card := map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("Fest Tally feed alert: %s", a.RuleName),
		"text":       headline(a),
		"sections":   []map[string]any{{"facts": kv}},
	}
	if health != "" {
		card["potentialAction"] = []map[string]any{{
			"@type":   "OpenUri",
			"name":    "Feed health",
			"targets": []map[string]string{{"os": "default", "uri": health}},
		}}
	}
	return card
}

func (e *Engine) postJSON(url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor returns the hex color, without '#', for a severity.
func severityColor(s string) string {
	switch s {
	case "critical":
		return "B91C1C"
	case "warning":
		return "B45309"
	default:
		return "1D4ED8"
	}
}
