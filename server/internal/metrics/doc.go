// Package metrics exposes the dashboard's own Prometheus collectors: pipeline
// run outcomes and latency, the size of the last good table, and connected
// live-refresh clients. Collectors live on a private registry so tests and
// multiple servers in one process do not collide.
package metrics
