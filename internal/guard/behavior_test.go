package guard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBehaviorStoreCounts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisBehaviorStore(client, time.Minute, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		count, err := store.Observe(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	// Independent session keeps its own counter.
	count, err := store.Observe(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisBehaviorStoreWindowExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisBehaviorStore(client, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := store.Observe(ctx, "sess-1")
		require.NoError(t, err)
	}

	mr.FastForward(61 * time.Second)

	count, err := store.Observe(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisBehaviorStoreReset(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisBehaviorStore(client, time.Minute, nil)
	ctx := context.Background()

	_, err := store.Observe(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "sess-1"))

	count, err := store.Observe(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisBehaviorStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisBehaviorStore(client, time.Minute, nil)

	mr.Close()

	_, err := store.Observe(context.Background(), "sess-1")
	assert.Error(t, err)
}
