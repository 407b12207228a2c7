// Package api implements the dashboard's JSON API.
//
// New returns an http.Handler that serves:
//
//	GET /api/v1/standings  ranked standings from a fresh pipeline run
//	GET /api/v1/chart      chart spec from a fresh pipeline run
//	GET /api/v1/health     feed status, column names, metrics, diagnostics
//	GET /api/v1/alerts     firing and recently resolved feed alerts
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Echo the pipeline run ID in X-Request-Id when they run the pipeline
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
