package eventbus

import (
	"fmt"

	"github.com/colonyops/muster/internal/core/notify"
)

// NotificationRouter maps domain events to user-facing notifications.
type NotificationRouter struct {
	bus *EventBus
}

// NewNotificationRouter constructs a router for event-to-notification mappings.
func NewNotificationRouter(bus *EventBus) *NotificationRouter {
	return &NotificationRouter{bus: bus}
}

// Register subscribes all supported event mappings.
func (r *NotificationRouter) Register() {
	if r == nil || r.bus == nil {
		return
	}

	r.bus.SubscribeOperationPosted(func(p OperationPostedPayload) {
		if p.Operation == nil {
			return
		}
		r.notifyf(notify.LevelInfo, "operation %q posted for %s",
			p.Operation.Name, p.Operation.Date.Format("Mon 02 Jan 15:04 MST"))
	})

	r.bus.SubscribeOperationRemoved(func(p OperationRemovedPayload) {
		r.notifyf(notify.LevelInfo, "operation %q removed", p.Name)
	})

	r.bus.SubscribeOperationEvicted(func(p OperationEvictedPayload) {
		if p.Operation == nil {
			return
		}
		for _, e := range p.Evictions {
			if e.ToReserve {
				r.notifyf(notify.LevelWarning, "<@%s> moved from %s to reserve in %q", e.UserID, e.Role, p.Operation.Name)
			} else {
				r.notifyf(notify.LevelWarning, "<@%s> removed from %s in %q", e.UserID, e.Role, p.Operation.Name)
			}
		}
	})

	r.bus.SubscribeCommanderStateChanged(func(p CommanderStateChangedPayload) {
		r.notifyf(notify.LevelInfo, "commander for %q: %s -> %s", p.Name, p.OldState, p.NewState)
	})

	r.bus.SubscribeAutostartFired(func(p AutostartFiredPayload) {
		r.notifyf(notify.LevelInfo, "autostart fired for %s", p.FileName)
	})
}

func (r *NotificationRouter) notifyf(level notify.Level, format string, args ...any) {
	r.bus.PublishNotificationPublished(NotificationPublishedPayload{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}
