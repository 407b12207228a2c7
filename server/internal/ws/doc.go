// Package ws implements the live-refresh WebSocket hub.
//
// On every tick of server.refresh_interval the hub reruns the pipeline from
// scratch and pushes the re-rendered chart fragment to every open dashboard.
// A zero interval disables ticking; pages then only change on reload.
//
// Message format sent to clients:
//
//	{"event": "refresh", "data": {"chart_svg": "<svg ...>", "last_updated": "...", "stale": false, "run_id": "..."}}
//	{"event": "error",   "data": {"error": "...", "kind": "network", "run_id": "..."}}
//
// A newly connected client immediately receives the most recent message.
// The upgrader accepts all origins; apply restrictions at the reverse proxy.
// The hub is mounted at /ws/stream by the server.
package ws
