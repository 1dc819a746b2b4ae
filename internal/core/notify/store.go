// Package notify defines user-facing notifications produced from domain events.
package notify

import (
	"context"
	"time"
)

// Level represents the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a persisted notification line.
type Notification struct {
	ID        int64
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Store persists notifications so `muster notifications` can show what the
// server did while nobody was watching.
type Store interface {
	Save(ctx context.Context, n Notification) (int64, error)
	List(ctx context.Context, limit int) ([]Notification, error)
	Clear(ctx context.Context) error
}
