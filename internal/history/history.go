// Package history persists one record per completed build so watch sessions
// can be inspected after the fact.
package history

import (
	"context"
	"time"
)

// Record summarizes one build attempt.
type Record struct {
	BuildID   uint64
	Session   string
	Status    string // success | failed
	StartedAt time.Time
	Duration  time.Duration
	Changes   int
	Steps     int
	Error     string
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Store defines the interface for persisting and retrieving build records.
type Store interface {
	// Append adds a new build record.
	Append(ctx context.Context, rec Record) error

	// Recent retrieves the most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Close closes the store and releases resources.
	Close() error
}
