package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/muster/internal/core/notify"
)

func TestNotifyStore_SaveListClear(t *testing.T) {
	ctx := context.Background()
	store := NewNotifyStore(openTestDB(t))

	base := time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)
	for i, msg := range []string{"first", "second", "third"} {
		_, err := store.Save(ctx, notify.Notification{
			Level:     notify.LevelInfo,
			Message:   msg,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Message, "newest first")
	assert.Equal(t, "second", got[1].Message)

	require.NoError(t, store.Clear(ctx))
	got, err = store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
