// Package config loads the dashboard configuration from a YAML file.
//
// Config sections:
//   - server   — HTTP port and the live-refresh interval for websocket clients
//   - feed     — published CSV URL, request timeout, retry/backoff policy
//   - chart    — 3-stop color gradient, label rotation threshold, export size
//   - page     — title, logo and background asset URLs, display time zone
//   - fallback — opt-in "serve last good standings" behaviour
//   - alerts   — feed-health rules and webhook targets
//   - logging  — slog level and format
//
// Load(path) applies defaults before unmarshalling, then validates. An empty
// path yields the compiled-in defaults. Watch(ctx, path, fn) reloads the file
// on change and keeps the previous config when a reload is invalid.
package config
