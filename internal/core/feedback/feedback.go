// Package feedback holds anonymized debrief feedback.
package feedback

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadySubmitted is returned when a participant submits twice for the
// same operation.
var ErrAlreadySubmitted = errors.New("feedback already submitted")

// Entry is one anonymous feedback text. It carries no user reference.
type Entry struct {
	ID        int64     `json:"id"`
	Operation string    `json:"operation"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists feedback. Submit records that userID has submitted for
// operation without storing which entry they wrote.
type Store interface {
	Submit(ctx context.Context, operation, userID, body string) error
	List(ctx context.Context, operation string) ([]Entry, error)
}
