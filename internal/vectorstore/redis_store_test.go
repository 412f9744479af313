package vectorstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestRedisSearchRanksByScore(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, CollectionSpecialties, "cardio", []float32{1, 0, 0}, map[string]string{"name": "Tim mạch"}))
	require.NoError(t, store.Upsert(ctx, CollectionSpecialties, "derm", []float32{0.7, 0.7, 0}, map[string]string{"name": "Da liễu"}))
	require.NoError(t, store.Upsert(ctx, CollectionSpecialties, "neuro", []float32{0, 0, 1}, map[string]string{"name": "Thần kinh"}))

	hits, err := store.Search(ctx, CollectionSpecialties, []float32{1, 0.1, 0}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "cardio", hits[0].ID)
	assert.Equal(t, "derm", hits[1].ID)
	assert.Equal(t, "Tim mạch", hits[0].Payload["name"])
}

func TestRedisSearchEmptyCollection(t *testing.T) {
	store := newRedisStore(t)

	hits, err := store.Search(context.Background(), "missing", []float32{1}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRedisUpsertReplacesExisting(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, CollectionDoctors, "d1", []float32{1, 0}, map[string]string{"name": "A"}))
	require.NoError(t, store.Upsert(ctx, CollectionDoctors, "d1", []float32{1, 0}, map[string]string{"name": "B"}))

	hits, err := store.Search(ctx, CollectionDoctors, []float32{1, 0}, 5, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "B", hits[0].Payload["name"])
}

func TestRedisDelete(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, CollectionAnswers, "a", []float32{1, 0}, nil))
	require.NoError(t, store.Delete(ctx, CollectionAnswers, "a"))
	require.NoError(t, store.Delete(ctx, CollectionAnswers, "a"))

	hits, err := store.Search(ctx, CollectionAnswers, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
