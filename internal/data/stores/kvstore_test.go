package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKVStore(t *testing.T) *KVStore {
	t.Helper()
	return NewKVStore(openTestDB(t))
}

func TestKVStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	type channel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	require.NoError(t, store.Set(ctx, "channel:c1", channel{ID: "c1", Name: "signups"}))

	var got channel
	require.NoError(t, store.Get(ctx, "channel:c1", &got))
	assert.Equal(t, channel{ID: "c1", Name: "signups"}, got)
}

func TestKVStore_GetNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	var v string
	err := store.Get(ctx, "nonexistent", &v)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestKVStore_SetOverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "key", "first"))
	require.NoError(t, store.Set(ctx, "key", "second"))

	var got string
	require.NoError(t, store.Get(ctx, "key", &got))
	assert.Equal(t, "second", got)

	require.NoError(t, store.Delete(ctx, "key"))
	has, err := store.Has(ctx, "key")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestKVStore_ListKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "b", 1))
	require.NoError(t, store.Set(ctx, "a", 2))
	require.NoError(t, store.Set(ctx, "c", 3))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestKVStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.SetTTL(ctx, "ephemeral", "gone", time.Millisecond))
	require.NoError(t, store.SetTTL(ctx, "alive", "here", time.Hour))
	time.Sleep(5 * time.Millisecond)

	var v string
	require.ErrorIs(t, store.Get(ctx, "ephemeral", &v), sql.ErrNoRows)

	has, err := store.Has(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.Get(ctx, "alive", &v))
	assert.Equal(t, "here", v)
}

func TestKVStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestKVStore(t)

	require.NoError(t, store.Set(ctx, "permanent", "stays"))
	require.NoError(t, store.SetTTL(ctx, "expired", "goes", time.Millisecond))

	time.Sleep(5 * time.Millisecond)

	require.NoError(t, store.SweepExpired(ctx))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"permanent"}, keys)
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(sql.ErrNoRows))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsCorruptionError(nil))
}
