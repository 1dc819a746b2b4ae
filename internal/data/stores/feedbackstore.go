package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/colonyops/muster/internal/core/feedback"
	"github.com/colonyops/muster/internal/data/db"
)

// FeedbackStore implements feedback.Store using SQLite.
type FeedbackStore struct {
	db *db.DB
}

var _ feedback.Store = (*FeedbackStore)(nil)

// NewFeedbackStore creates a new SQLite-backed feedback store.
func NewFeedbackStore(db *db.DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// Submit stores body for operation. The submitter is recorded as a
// hash in a separate table so entries cannot be traced back to a user.
func (s *FeedbackStore) Submit(ctx context.Context, operation, userID, body string) error {
	return s.db.WithTx(ctx, func(q *db.Queries) error {
		n, err := q.MarkSubmitter(ctx, operation, submitterHash(operation, userID))
		if err != nil {
			return fmt.Errorf("mark submitter: %w", err)
		}
		if n == 0 {
			return feedback.ErrAlreadySubmitted
		}

		if _, err := q.InsertFeedback(ctx, db.InsertFeedbackParams{
			Operation: operation,
			Body:      body,
			CreatedAt: time.Now().UnixNano(),
		}); err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}
		return nil
	})
}

// List returns the feedback for an operation, oldest first.
func (s *FeedbackStore) List(ctx context.Context, operation string) ([]feedback.Entry, error) {
	rows, err := s.db.Queries().ListFeedback(ctx, operation)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	out := make([]feedback.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, feedback.Entry{
			ID:        row.ID,
			Operation: row.Operation,
			Body:      row.Body,
			CreatedAt: time.Unix(0, row.CreatedAt),
		})
	}
	return out, nil
}

func submitterHash(operation, userID string) string {
	sum := sha256.Sum256([]byte(operation + "\x00" + userID))
	return hex.EncodeToString(sum[:])
}
