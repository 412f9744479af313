package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps vectors in Redis hashes so collections survive process
// restarts and are shared between the API and the seeding binary. Scoring
// still happens in process; collections here are small (catalog mappings,
// canned irrelevant prompts, cached answers).
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("vectorstore: redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

type redisRecord struct {
	Vector  []float32         `json:"vector"`
	Payload map[string]string `json:"payload,omitempty"`
}

func collectionKey(collection string) string {
	return fmt.Sprintf("vectors:%s", collection)
}

// Upsert inserts or replaces a vector under the given id.
func (s *RedisStore) Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error {
	raw, err := json.Marshal(redisRecord{Vector: vector, Payload: payload})
	if err != nil {
		return fmt.Errorf("vectorstore: marshal record: %w", err)
	}
	if err := s.redis.HSet(ctx, collectionKey(collection), id, raw).Err(); err != nil {
		return fmt.Errorf("vectorstore: upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Search loads the whole collection and ranks it by cosine similarity.
func (s *RedisStore) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]Hit, error) {
	if limit <= 0 {
		limit = 3
	}

	entries, err := s.redis.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("vectorstore: load collection %s: %w", collection, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(entries))
	for id, raw := range entries {
		var rec redisRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("vectorstore: decode %s/%s: %w", collection, id, err)
		}
		score := cosineSimilarity(vector, rec.Vector)
		if score < threshold {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Payload: rec.Payload})
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
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.redis.HDel(ctx, collectionKey(collection), id).Err(); err != nil {
		return fmt.Errorf("vectorstore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}
