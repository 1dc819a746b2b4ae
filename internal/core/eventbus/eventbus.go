package eventbus

import (
	"context"
	"sync"
)

// Event names a topic on the bus.
type Event string

const (
	EventAutostartFired         Event = "autostart.fired"
	EventCommanderStateChanged  Event = "commander.state-changed"
	EventNotificationPublished  Event = "notification.published"
	EventOperationEvicted       Event = "operation.evicted"
	EventOperationPosted        Event = "operation.posted"
	EventOperationRemoved       Event = "operation.removed"
	EventOperationSignupChanged Event = "operation.signup-changed"
	EventOperationStatusChanged Event = "operation.status-changed"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus delivers published events to subscribers on a single dispatch
// goroutine, in publish order. Publishing never blocks: when the buffer is
// full the event is dropped and the OnDrop hooks run.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is cancelled. Events already buffered
// when ctx is cancelled are still dispatched before Start returns.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			bus.drain()
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) drain() {
	for {
		select {
		case env := <-bus.ch:
			bus.dispatch(env)
		default:
			return
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

func subscribeTyped[T any](bus *EventBus, event Event, fn func(T)) {
	bus.subscribe(event, func(p any) {
		if v, ok := p.(T); ok {
			fn(v)
		}
	})
}

// PublishAutostartFired publishes an autostart.fired event.
func (bus *EventBus) PublishAutostartFired(p AutostartFiredPayload) {
	bus.send(EventAutostartFired, p)
}

// SubscribeAutostartFired subscribes to autostart.fired events.
func (bus *EventBus) SubscribeAutostartFired(fn func(AutostartFiredPayload)) {
	subscribeTyped(bus, EventAutostartFired, fn)
}

// PublishCommanderStateChanged publishes a commander.state-changed event.
func (bus *EventBus) PublishCommanderStateChanged(p CommanderStateChangedPayload) {
	bus.send(EventCommanderStateChanged, p)
}

// SubscribeCommanderStateChanged subscribes to commander.state-changed events.
func (bus *EventBus) SubscribeCommanderStateChanged(fn func(CommanderStateChangedPayload)) {
	subscribeTyped(bus, EventCommanderStateChanged, fn)
}

// PublishNotificationPublished publishes a notification.published event.
func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.send(EventNotificationPublished, p)
}

// SubscribeNotificationPublished subscribes to notification.published events.
func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	subscribeTyped(bus, EventNotificationPublished, fn)
}

// PublishOperationEvicted publishes an operation.evicted event.
func (bus *EventBus) PublishOperationEvicted(p OperationEvictedPayload) {
	bus.send(EventOperationEvicted, p)
}

// SubscribeOperationEvicted subscribes to operation.evicted events.
func (bus *EventBus) SubscribeOperationEvicted(fn func(OperationEvictedPayload)) {
	subscribeTyped(bus, EventOperationEvicted, fn)
}

// PublishOperationPosted publishes an operation.posted event.
func (bus *EventBus) PublishOperationPosted(p OperationPostedPayload) {
	bus.send(EventOperationPosted, p)
}

// SubscribeOperationPosted subscribes to operation.posted events.
func (bus *EventBus) SubscribeOperationPosted(fn func(OperationPostedPayload)) {
	subscribeTyped(bus, EventOperationPosted, fn)
}

// PublishOperationRemoved publishes an operation.removed event.
func (bus *EventBus) PublishOperationRemoved(p OperationRemovedPayload) {
	bus.send(EventOperationRemoved, p)
}

// SubscribeOperationRemoved subscribes to operation.removed events.
func (bus *EventBus) SubscribeOperationRemoved(fn func(OperationRemovedPayload)) {
	subscribeTyped(bus, EventOperationRemoved, fn)
}

// PublishOperationSignupChanged publishes an operation.signup-changed event.
func (bus *EventBus) PublishOperationSignupChanged(p OperationSignupChangedPayload) {
	bus.send(EventOperationSignupChanged, p)
}

// SubscribeOperationSignupChanged subscribes to operation.signup-changed events.
func (bus *EventBus) SubscribeOperationSignupChanged(fn func(OperationSignupChangedPayload)) {
	subscribeTyped(bus, EventOperationSignupChanged, fn)
}

// PublishOperationStatusChanged publishes an operation.status-changed event.
func (bus *EventBus) PublishOperationStatusChanged(p OperationStatusChangedPayload) {
	bus.send(EventOperationStatusChanged, p)
}

// SubscribeOperationStatusChanged subscribes to operation.status-changed events.
func (bus *EventBus) SubscribeOperationStatusChanged(fn func(OperationStatusChangedPayload)) {
	subscribeTyped(bus, EventOperationStatusChanged, fn)
}
