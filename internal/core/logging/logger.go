// Package logging holds the zerolog helpers shared by muster components.
package logging

import "github.com/rs/zerolog"

// Component scopes logger to a named component.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Operation scopes a component logger to a single operation.
func Operation(logger zerolog.Logger, id, name string) zerolog.Logger {
	return logger.With().Str("operation_id", id).Str("operation", name).Logger()
}
