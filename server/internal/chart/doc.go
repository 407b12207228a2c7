// Package chart turns ranked standings into a bar-chart specification and
// exports it as PNG or SVG.
//
// Builder.Build maps each standing to one Bar, in ranked order, on a
// categorical axis. Bar height is the score; bar color is the score pushed
// through a fixed three-stop gradient (light to dark). The value text is the
// score as the feed wrote it, drawn bold above the bar, and the organization
// name is overlaid near the bar's base, rotated once the category count
// exceeds the configured threshold.
//
// The Spec is pure data: the page presenter, the JSON API, and the go-chart
// exporters in render.go all consume it without changing values.
package chart
