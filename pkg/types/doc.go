// Package types defines the Go types shared by every stage of the tally
// pipeline. A Standing is one organization's score for a single load; nothing
// here outlives the load that produced it.
package types
