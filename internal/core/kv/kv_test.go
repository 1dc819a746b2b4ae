package kv_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/muster/internal/core/kv"
	"github.com/colonyops/muster/internal/data/db"
	"github.com/colonyops/muster/internal/data/stores"
)

func newTestKV(t *testing.T) kv.KV {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return stores.NewKVStore(database)
}

func TestTypedKV_SetAndGet(t *testing.T) {
	ctx := context.Background()
	typed := kv.Scoped[string](newTestKV(t), "test")

	require.NoError(t, typed.Set(ctx, "greeting", "hello"))

	got, err := typed.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestTypedKV_ScopedPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	alpha := kv.Scoped[int](store, "alpha")
	beta := kv.Scoped[int](store, "beta")

	require.NoError(t, alpha.Set(ctx, "count", 10))
	require.NoError(t, beta.Set(ctx, "count", 20))

	a, err := alpha.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, 10, a)

	keys, err := beta.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, keys)

	all, err := alpha.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"count": 10}, all)
}

func TestTypedKV_Missing(t *testing.T) {
	ctx := context.Background()
	typed := kv.Scoped[string](newTestKV(t), "test")

	_, err := typed.Get(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	ok, err := typed.Has(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTypedKV_TTL(t *testing.T) {
	ctx := context.Background()
	typed := kv.Scoped[string](newTestKV(t), "test")

	require.NoError(t, typed.SetTTL(ctx, "short", "v", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, err := typed.Get(ctx, "short")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
