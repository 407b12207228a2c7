// Package pipeline runs one complete dashboard load: fetch and parse the feed,
// rank the standings, and build the chart spec. Every Run starts from scratch
// and shares no data-model state with other runs; the Runner only keeps
// operational state (feed status, last good result for stale fallback).
package pipeline
