// Package page presents a chart spec as the dashboard's HTML page.
//
// The chart is drawn as inline SVG straight from the spec, so every
// annotation (bold value text above each bar, organization labels at the
// bar base, rotated on crowded charts) is visible without client scripts.
// The "last updated" line is computed at render time in one configured zone.
//
// Handler serves:
//
//	GET /           dashboard page; runs the full pipeline per request
//	GET /chart.png  chart export via go-chart
//	GET /chart.svg  chart export via go-chart
//	GET /assets/    bundled default logo
//
// Failed loads produce an error page: 502 for feed failures, 500 when the
// chart cannot be built. A stale page is shown only when fallback is enabled.
package page
