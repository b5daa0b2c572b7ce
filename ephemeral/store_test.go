package ephemeral_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-credentials/ephemeral"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory struct {
	name    string
	store   ephemeral.Store
	advance func(time.Duration)
}

func newStores(t *testing.T) []storeFactory {
	t.Helper()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mem := ephemeral.NewMemoryStore(ephemeral.WithMemoryClock(func() time.Time { return now }))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return []storeFactory{
		{name: "memory", store: mem, advance: func(d time.Duration) { now = now.Add(d) }},
		{name: "redis", store: ephemeral.NewRedisStore(client), advance: mr.FastForward},
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for _, f := range newStores(t) {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, f.store.Set(ctx, "a", []byte("one"), time.Minute))
			require.NoError(t, f.store.Set(ctx, "b", []byte("two"), 0))

			got, err := f.store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			ok, err := f.store.Exists(ctx, "b")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, f.store.Delete(ctx, "a", "b", "missing"))

			_, err = f.store.Get(ctx, "a")
			assert.ErrorIs(t, err, ephemeral.ErrNotFound)

			ok, err = f.store.Exists(ctx, "b")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	for _, f := range newStores(t) {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, f.store.Set(ctx, "short", []byte("x"), time.Minute))
			require.NoError(t, f.store.Set(ctx, "forever", []byte("y"), 0))

			f.advance(2 * time.Minute)

			_, err := f.store.Get(ctx, "short")
			assert.ErrorIs(t, err, ephemeral.ErrNotFound)

			got, err := f.store.Get(ctx, "forever")
			require.NoError(t, err)
			assert.Equal(t, []byte("y"), got)
		})
	}
}

func TestStore_Sets(t *testing.T) {
	for _, f := range newStores(t) {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := f.store.SetContains(ctx, "revoked", "t1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, f.store.SetAdd(ctx, "revoked", "t1"))
			require.NoError(t, f.store.SetAdd(ctx, "revoked", "t1"))

			ok, err = f.store.SetContains(ctx, "revoked", "t1")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStore_ScanByPrefix(t *testing.T) {
	for _, f := range newStores(t) {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, f.store.Set(ctx, "pending_user:a", []byte("1"), time.Hour))
			require.NoError(t, f.store.Set(ctx, "pending_user:b", []byte("2"), time.Minute))
			require.NoError(t, f.store.Set(ctx, "pending_email:x", []byte("3"), time.Hour))
			require.NoError(t, f.store.Set(ctx, "pending_user*", []byte("4"), time.Hour))

			f.advance(2 * time.Minute)

			keys, err := f.store.ScanByPrefix(ctx, "pending_user:")
			require.NoError(t, err)
			sort.Strings(keys)
			assert.Equal(t, []string{"pending_user:a"}, keys)
		})
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := ephemeral.NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := ephemeral.NewMemoryStore()
	assert.ErrorIs(t, store.Set(ctx, "k", nil, 0), context.Canceled)
}
