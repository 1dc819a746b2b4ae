package eventbus

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/core/operation"
)

// RegisterDebugLogger logs every published event at debug level. Dropped
// events and subscriber panics are logged at warn and error with a running
// drop count.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	logger = logger.With().Str("component", "eventbus").Logger()
	var dropped atomic.Int64

	bus.OnPublish(func(event Event, payload any) {
		e := logger.Debug().Str("event", string(event))
		if id := operationIDOf(payload); id != "" {
			e = e.Str("operation_id", id)
		}
		e.Msg("event published")
	})

	bus.OnDrop(func(event Event, _ any) {
		logger.Warn().
			Str("event", string(event)).
			Int64("dropped", dropped.Add(1)).
			Msg("event dropped, buffer full")
	})

	bus.OnPanic(func(event Event, _ any, recovered any) {
		logger.Error().
			Str("event", string(event)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

func operationIDOf(payload any) string {
	switch p := payload.(type) {
	case OperationPostedPayload:
		return recordID(p.Operation)
	case OperationSignupChangedPayload:
		return recordID(p.Operation)
	case OperationEvictedPayload:
		return recordID(p.Operation)
	case OperationStatusChangedPayload:
		return recordID(p.Operation)
	case OperationRemovedPayload:
		return p.ID
	case CommanderStateChangedPayload:
		return p.OperationID
	}
	return ""
}

func recordID(rec *operation.Record) string {
	if rec == nil {
		return ""
	}
	return rec.ID
}
