package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cacheNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newRedisStore(t *testing.T, c clock.Clock) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, c), mr
}

func set(t *testing.T, store Store, key Key, field, value string, ttl time.Duration) {
	t.Helper()
	ctx := context.Background()
	gen, err := store.Generation(ctx, key)
	require.NoError(t, err)
	stored, err := store.Set(ctx, key, field, []byte(value), ttl, gen)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestKeyString(t *testing.T) {
	key := Key{Entity: "Campaign", ProfileType: "brand", ProfileID: "42"}
	assert.Equal(t, "collabhub:cache:campaign:brand:42", key.String())
	assert.True(t, Key{}.IsZero())
}

func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	brand := Key{Entity: "campaign", ProfileType: "brand", ProfileID: "1"}
	other := Key{Entity: "campaign", ProfileType: "brand", ProfileID: "2"}

	set(t, store, brand, "list:a", `"x"`, time.Minute)
	set(t, store, brand, "get:1", `"y"`, time.Minute)
	set(t, store, other, "list:a", `"z"`, time.Minute)

	got, ok, err := store.Get(ctx, brand, "get:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"y"`, string(got))

	require.NoError(t, store.Invalidate(ctx, brand))

	_, ok, err = store.Get(ctx, brand, "list:a")
	require.NoError(t, err)
	assert.False(t, ok, "every field of the key is dropped")

	got, ok, err = store.Get(ctx, other, "list:a")
	require.NoError(t, err)
	require.True(t, ok, "other profiles keep their views")
	assert.Equal(t, `"z"`, string(got))

	gen, err := store.Generation(ctx, brand)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)

	stored, err := store.Set(ctx, brand, "list:a", []byte(`"stale"`), time.Minute, 0)
	require.NoError(t, err)
	assert.False(t, stored, "a view loaded before the invalidation is refused")
	_, ok, err = store.Get(ctx, brand, "list:a")
	require.NoError(t, err)
	assert.False(t, ok)

	set(t, store, brand, "list:a", `"fresh"`, time.Minute)
	got, ok, err = store.Get(ctx, brand, "list:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"fresh"`, string(got))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(nil))
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t, nil)
	storeContract(t, store)
}

func TestMemoryStoreExpiry(t *testing.T) {
	fake := clock.NewFakeClock(cacheNow)
	store := NewMemoryStore(fake)
	key := Key{Entity: "delivery", ProfileType: "creator", ProfileID: "9"}
	ctx := context.Background()

	set(t, store, key, "f", "1", time.Second)
	fake.Advance(time.Second)

	_, ok, err := store.Get(ctx, key, "f")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreExpiry(t *testing.T) {
	fake := clock.NewFakeClock(cacheNow)
	store, mr := newRedisStore(t, fake)
	key := Key{Entity: "delivery", ProfileType: "creator", ProfileID: "9"}
	ctx := context.Background()

	set(t, store, key, "f", "1", time.Second)
	fake.Advance(2 * time.Second)
	mr.FastForward(2 * time.Second)

	_, ok, err := store.Get(ctx, key, "f")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreFieldsExpireIndependently(t *testing.T) {
	fake := clock.NewFakeClock(cacheNow)
	store, mr := newRedisStore(t, fake)
	key := Key{Entity: "campaign", ProfileType: "brand", ProfileID: "1"}
	ctx := context.Background()
	ttl := 30 * time.Second

	set(t, store, key, "get:1", `"slots_filled=0"`, ttl)
	for i := 0; i < 4; i++ {
		fake.Advance(20 * time.Second)
		mr.FastForward(20 * time.Second)
		set(t, store, key, "list:a", `"x"`, ttl)
	}

	_, ok, err := store.Get(ctx, key, "get:1")
	require.NoError(t, err)
	assert.False(t, ok, "writes to other fields do not extend an expired view")

	_, ok, err = store.Get(ctx, key, "list:a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrLoadDropsViewInvalidatedDuringLoad(t *testing.T) {
	redisStore, _ := newRedisStore(t, nil)
	stores := map[string]Store{
		"memory": NewMemoryStore(nil),
		"redis":  redisStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			key := Key{Entity: "campaign", ProfileType: "brand", ProfileID: "1"}
			ctx := context.Background()

			got, err := GetOrLoad(ctx, store, key, "get:1", time.Minute, func(ctx context.Context) (string, error) {
				require.NoError(t, store.Invalidate(ctx, key))
				return "slots_filled=0", nil
			})
			require.NoError(t, err)
			assert.Equal(t, "slots_filled=0", got)

			_, ok, err := store.Get(ctx, key, "get:1")
			require.NoError(t, err)
			assert.False(t, ok)

			got, err = GetOrLoad(ctx, store, key, "get:1", time.Minute, func(context.Context) (string, error) {
				return "slots_filled=1", nil
			})
			require.NoError(t, err)
			assert.Equal(t, "slots_filled=1", got)

			raw, ok, err := store.Get(ctx, key, "get:1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `"slots_filled=1"`, string(raw))
		})
	}
}

func TestGetOrLoad(t *testing.T) {
	store := NewMemoryStore(nil)
	key := Key{Entity: "dispute", ProfileType: "brand", ProfileID: "3"}
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]int, error) {
		calls++
		return []int{1, 2}, nil
	}

	first, err := GetOrLoad(ctx, store, key, "list", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, store, key, "list", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = GetOrLoad(ctx, store, key, "other", time.Minute, func(context.Context) ([]int, error) {
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")

	_, ok, _ := store.Get(ctx, key, "other")
	assert.False(t, ok, "failed loads are not cached")
}

func TestGetOrLoadWithoutKeyBypassesStore(t *testing.T) {
	store := NewMemoryStore(nil)
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := GetOrLoad(context.Background(), store, Key{}, "list", time.Minute, func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}
