// Package runlog records harvest sessions in a durable log, independent of
// the corpus document: which collector ran, under which session id, and
// with what outcome. The engine treats it as best-effort — a run log
// failure never aborts a harvest.
package runlog

import (
	"context"
	"time"
)

// Statuses a session moves through.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Session is one recorded harvest session.
type Session struct {
	ID            int64      `json:"id"`
	Collector     string     `json:"collector"`
	SessionID     string     `json:"session_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Announcements int        `json:"announcements"`
	FullContent   int        `json:"full_content"`
	Skipped       int        `json:"skipped"`
	Error         string     `json:"error,omitempty"`
}

// Log provides read/write access to the session log.
type Log interface {
	// Start records the beginning of a session and returns its row id.
	Start(ctx context.Context, collector, sessionID string) (int64, error)

	// Complete marks a session as finished with the given counts.
	Complete(ctx context.Context, id int64, announcements, fullContent, skipped int) error

	// Fail marks a session as failed with an error message.
	Fail(ctx context.Context, id int64, errMsg string) error

	// LastSuccess returns the start time of the most recent completed
	// session for a collector, or nil if there is none.
	LastSuccess(ctx context.Context, collector string) (*time.Time, error)

	// List returns the most recent sessions, newest first.
	List(ctx context.Context, limit int) ([]Session, error)

	Close() error
}
