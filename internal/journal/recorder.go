// Package journal persists refresh outcomes so the dashboard can show a
// refresh history panel.
package journal

import (
	"context"
	"time"

	"tradedesk/internal/refresh"
)

// Event is one completed refresh.
type Event struct {
	ID         int64          `json:"id"`
	Source     refresh.Source `json:"source"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
}

// Recorder persists refresh events.
type Recorder interface {
	// Record appends one refresh event.
	Record(ctx context.Context, ev Event) error

	// Recent returns the most recent events, newest first, up to limit.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// Close releases any resources held by the recorder.
	Close() error
}
