// Package store keeps the last successful pipeline result per feed in memory.
// It provides a thread-safe keyed store with TTL eviction; nothing is written
// to disk and only the latest value per key is retained.
package store
