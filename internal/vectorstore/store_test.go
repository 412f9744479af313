package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRanksByScore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, CollectionSpecialties, "cardio", []float32{1, 0, 0}, map[string]string{"name": "Tim mạch"}))
	require.NoError(t, store.Upsert(ctx, CollectionSpecialties, "derm", []float32{0.7, 0.7, 0}, map[string]string{"name": "Da liễu"}))
	require.NoError(t, store.Upsert(ctx, CollectionSpecialties, "neuro", []float32{0, 0, 1}, map[string]string{"name": "Thần kinh"}))

	hits, err := store.Search(ctx, CollectionSpecialties, []float32{1, 0.1, 0}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "cardio", hits[0].ID)
	assert.Equal(t, "derm", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchThresholdFiltersLowScores(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, CollectionAnswers, "a", []float32{1, 0}, nil))

	hits, err := store.Search(ctx, CollectionAnswers, []float32{0, 1}, 5, 0.95)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchUnknownCollection(t *testing.T) {
	store := NewMemoryStore()

	hits, err := store.Search(context.Background(), "missing", []float32{1}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertReplacesExisting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, CollectionDoctors, "d1", []float32{1, 0}, map[string]string{"name": "A"}))
	require.NoError(t, store.Upsert(ctx, CollectionDoctors, "d1", []float32{1, 0}, map[string]string{"name": "B"}))

	hits, err := store.Search(ctx, CollectionDoctors, []float32{1, 0}, 5, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "B", hits[0].Payload["name"])
}

func TestCollectionsAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, CollectionIrrelevant, "x", []float32{1, 0}, nil))

	hits, err := store.Search(ctx, CollectionAnswers, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertCopiesInputs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	vec := []float32{1, 0}
	payload := map[string]string{"name": "A"}
	require.NoError(t, store.Upsert(ctx, CollectionDoctors, "d1", vec, payload))

	vec[0] = 0
	payload["name"] = "mutated"

	hits, err := store.Search(ctx, CollectionDoctors, []float32{1, 0}, 1, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A", hits[0].Payload["name"])
}
