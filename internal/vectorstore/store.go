package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Collection names used by the assistant. Each holds an independent set of
// vectors searched by cosine similarity.
const (
	CollectionIrrelevant  = "irrelevant"
	CollectionAnswers     = "answers"
	CollectionSpecialties = "specialties"
	CollectionServices    = "services"
	CollectionDoctors     = "doctors"
)

// Hit is a single search result ranked by cosine similarity.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]string
}

// Store exposes named nearest-neighbor collections.
type Store interface {
	Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]Hit, error)
}

type record struct {
	vector  []float32
	payload map[string]string
}

// MemoryStore keeps vectors in process memory. Collections are read-mostly so
// a single RWMutex is sufficient.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]record)}
}

// Upsert inserts or replaces a vector under the given id.
func (s *MemoryStore) Upsert(_ context.Context, collection, id string, vector []float32, payload map[string]string) error {
	cp := make(map[string]string, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]record)
		s.collections[collection] = coll
	}
	coll[id] = record{vector: vec, payload: cp}
	return nil
}

// Search returns up to limit hits scoring at or above threshold, ordered by
// score descending.
func (s *MemoryStore) Search(_ context.Context, collection string, vector []float32, limit int, threshold float64) ([]Hit, error) {
	if limit <= 0 {
		limit = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[collection]
	if len(coll) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(coll))
	for id, rec := range coll {
		score := cosineSimilarity(vector, rec.vector)
		if score < threshold {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Payload: rec.payload})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes an entry; missing ids are a no-op.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if coll, ok := s.collections[collection]; ok {
		delete(coll, id)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	var normA float64
	var normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
