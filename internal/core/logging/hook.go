package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies operation_id and user_id from the event context onto the
// log line.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if id := GetOperationID(ctx); id != "" {
		e.Str("operation_id", id)
	}

	if id := GetUserID(ctx); id != "" {
		e.Str("user_id", id)
	}
}
