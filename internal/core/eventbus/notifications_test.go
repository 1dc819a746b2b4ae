package eventbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/muster/internal/core/eventbus"
	"github.com/colonyops/muster/internal/core/eventbus/testbus"
	"github.com/colonyops/muster/internal/core/notify"
	"github.com/colonyops/muster/internal/core/operation"
)

func notifications(tb *testbus.Bus, t *testing.T) []eventbus.NotificationPublishedPayload {
	t.Helper()
	tb.AssertPublished(t, eventbus.EventNotificationPublished)

	var out []eventbus.NotificationPublishedPayload
	for _, p := range tb.Of(eventbus.EventNotificationPublished) {
		n, ok := p.(eventbus.NotificationPublishedPayload)
		require.True(t, ok)
		out = append(out, n)
	}
	return out
}

func TestNotificationRouter_OperationRemoved(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishOperationRemoved(eventbus.OperationRemovedPayload{Name: "Sober Dogs"})
	got := notifications(tb, t)

	require.Len(t, got, 1)
	assert.Equal(t, notify.LevelInfo, got[0].Level)
	assert.Contains(t, got[0].Message, "Sober Dogs")
}

func TestNotificationRouter_Evicted(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishOperationEvicted(eventbus.OperationEvictedPayload{
		Operation: &operation.Record{Name: "Raid"},
		Evictions: []operation.Eviction{
			{UserID: "u1", Role: "Medic", ToReserve: true},
			{UserID: "u2", Role: "Medic"},
		},
	})

	assert.Eventually(t, func() bool {
		return len(tb.Of(eventbus.EventNotificationPublished)) == 2
	}, time.Second, 5*time.Millisecond)

	got := notifications(tb, t)
	assert.Equal(t, notify.LevelWarning, got[0].Level)
	assert.Contains(t, got[0].Message, "reserve")
	assert.Contains(t, got[1].Message, "removed")
}

func TestNotificationRouter_NilSafe(t *testing.T) {
	var r *eventbus.NotificationRouter
	assert.NotPanics(t, r.Register)
}
