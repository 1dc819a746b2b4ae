package console

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/core/chat"
	corekv "github.com/colonyops/muster/internal/core/kv"
)

// Feed is a chat.EventFeed that records subscriptions so the console can
// show which operations are receiving game events.
type Feed struct {
	subs   *corekv.TypedKV[time.Time]
	logger zerolog.Logger
}

var _ chat.EventFeed = (*Feed)(nil)

// NewFeed creates a feed in the "console-feeds" namespace.
func NewFeed(store corekv.KV, logger zerolog.Logger) *Feed {
	return &Feed{
		subs:   corekv.Scoped[time.Time](store, "console-feeds"),
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

func (f *Feed) Subscribe(ctx context.Context, operationID string, since time.Time) error {
	f.logger.Info().Str("operation_id", operationID).Time("since", since).Msg("event feed subscribed")
	return f.subs.Set(ctx, operationID, since)
}

func (f *Feed) Unsubscribe(ctx context.Context, operationID string) error {
	f.logger.Info().Str("operation_id", operationID).Msg("event feed unsubscribed")
	return f.subs.Delete(ctx, operationID)
}

// Active returns the subscribed operations and when each subscription
// started.
func (f *Feed) Active(ctx context.Context) (map[string]time.Time, error) {
	return f.subs.All(ctx)
}
