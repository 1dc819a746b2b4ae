// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within muster.
package eventbus

import (
	"time"

	"github.com/colonyops/muster/internal/core/notify"
	"github.com/colonyops/muster/internal/core/operation"
)

// Events defines all event types and their payload structs.
var Events = map[string]any{
	// Keep list sorted A-Z
	"autostart.fired":          AutostartFiredPayload{},
	"commander.state-changed":  CommanderStateChangedPayload{},
	"notification.published":   NotificationPublishedPayload{},
	"operation.evicted":        OperationEvictedPayload{},
	"operation.posted":         OperationPostedPayload{},
	"operation.removed":        OperationRemovedPayload{},
	"operation.signup-changed": OperationSignupChangedPayload{},
	"operation.status-changed": OperationStatusChangedPayload{},
}

// OperationPostedPayload is emitted after an operation's announcement is sent
// and the record is registered.
type OperationPostedPayload struct {
	Operation *operation.Record
}

// OperationRemovedPayload is emitted when a live operation leaves the registry.
type OperationRemovedPayload struct {
	ID       string
	Name     string
	FileName string
}

// OperationSignupChangedPayload is emitted after a signup mutation is applied.
type OperationSignupChangedPayload struct {
	Operation *operation.Record
	UserID    string
	Target    string
}

// OperationEvictedPayload is emitted when a role edit pushes players out of
// their roles. Users with ToReserve false lost their signup entirely.
type OperationEvictedPayload struct {
	Operation *operation.Record
	Evictions []operation.Eviction
}

// OperationStatusChangedPayload is emitted when an operation's status moves.
type OperationStatusChangedPayload struct {
	Operation *operation.Record
	OldStatus operation.Status
	NewStatus operation.Status
}

// CommanderStateChangedPayload is emitted on every commander transition.
type CommanderStateChangedPayload struct {
	OperationID string
	Name        string
	OldState    string
	NewState    string
}

// AutostartFiredPayload is emitted when an autostart job fires.
type AutostartFiredPayload struct {
	JobID    string
	FileName string
	FiredAt  time.Time
}

// NotificationPublishedPayload is emitted when a user-facing notification is
// produced.
type NotificationPublishedPayload struct {
	Level   notify.Level
	Message string
}
