package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/carelink-health/carelink/internal/embedding"
	"github.com/carelink-health/carelink/internal/vectorstore"
	"github.com/carelink-health/carelink/pkg/logging"
)

// Kind selects which mapping collection a query resolves against.
type Kind string

const (
	KindSpecialty Kind = "specialty"
	KindService   Kind = "service"
	KindDoctor    Kind = "doctor"
)

// Specialty resolution is higher-stakes, so it requires tighter similarity.
const (
	DefaultSpecialtyMinSimilarity = 0.8
	DefaultServiceMinSimilarity   = 0.7
	DefaultDoctorMinSimilarity    = 0.7
)

// Scores within this gap count as near-equal; priority breaks the tie.
const tieGap = 0.02

// ErrUnknownKind is returned for a kind outside the three collections.
var ErrUnknownKind = errors.New("catalog: unknown mapping kind")

// Mapping links free text to a catalog entry. Administrators create these;
// the mapper consumes them read-only.
type Mapping struct {
	Text       string
	TargetID   string
	TargetName string
	ParentID   string
	Priority   int
}

// Match is one resolution result ordered by similarity.
type Match struct {
	TargetID   string
	TargetName string
	Score      float64
	Priority   int
}

// Mapper resolves free-text symptom/service/doctor queries to catalog ids.
type Mapper struct {
	embedder   embedding.Client
	store      vectorstore.Store
	logger     *logging.Logger
	thresholds map[Kind]float64

	mu    sync.RWMutex
	names map[Kind]map[string]Mapping // lowercased target name -> mapping
}

// MapperOption tunes resolution thresholds.
type MapperOption func(*Mapper)

// WithThreshold overrides the minimum similarity for one kind.
func WithThreshold(kind Kind, min float64) MapperOption {
	return func(m *Mapper) {
		if min > 0 {
			m.thresholds[kind] = min
		}
	}
}

// NewMapper builds a catalog mapper.
func NewMapper(embedder embedding.Client, store vectorstore.Store, logger *logging.Logger, opts ...MapperOption) *Mapper {
	if embedder == nil {
		panic("catalog: embedder cannot be nil")
	}
	if store == nil {
		panic("catalog: vector store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Mapper{
		embedder: embedder,
		store:    store,
		logger:   logger,
		thresholds: map[Kind]float64{
			KindSpecialty: DefaultSpecialtyMinSimilarity,
			KindService:   DefaultServiceMinSimilarity,
			KindDoctor:    DefaultDoctorMinSimilarity,
		},
		names: map[Kind]map[string]Mapping{
			KindSpecialty: {},
			KindService:   {},
			KindDoctor:    {},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func collectionFor(kind Kind) (string, error) {
	switch kind {
	case KindSpecialty:
		return vectorstore.CollectionSpecialties, nil
	case KindService:
		return vectorstore.CollectionServices, nil
	case KindDoctor:
		return vectorstore.CollectionDoctors, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Upsert embeds and stores one mapping. Admin-facing.
func (m *Mapper) Upsert(ctx context.Context, kind Kind, mapping Mapping) error {
	collection, err := collectionFor(kind)
	if err != nil {
		return err
	}
	if strings.TrimSpace(mapping.Text) == "" {
		return errors.New("catalog: mapping text is required")
	}
	if strings.TrimSpace(mapping.TargetID) == "" {
		return errors.New("catalog: mapping target id is required")
	}

	vec, err := m.embedder.Embed(ctx, mapping.Text)
	if err != nil {
		return fmt.Errorf("catalog: embed mapping text: %w", err)
	}

	payload := map[string]string{
		"text":        mapping.Text,
		"target_id":   mapping.TargetID,
		"target_name": mapping.TargetName,
		"parent_id":   mapping.ParentID,
		"priority":    strconv.Itoa(mapping.Priority),
	}
	if err := m.store.Upsert(ctx, collection, uuid.NewString(), vec, payload); err != nil {
		return fmt.Errorf("catalog: upsert mapping: %w", err)
	}

	m.mu.Lock()
	m.names[kind][strings.ToLower(mapping.TargetName)] = mapping
	m.mu.Unlock()
	return nil
}

// Resolve maps free text to catalog matches: exact case-insensitive name
// match first, then vector search at the kind's threshold. An optional
// parentID filters results (e.g. services within a specialty).
func (m *Mapper) Resolve(ctx context.Context, kind Kind, query, parentID string) ([]Match, error) {
	if _, err := collectionFor(kind); err != nil {
		return nil, err
	}

	if match, ok := m.exactMatch(kind, query, parentID); ok {
		return []Match{match}, nil
	}
	return m.vectorMatch(ctx, kind, query, parentID)
}

func (m *Mapper) exactMatch(kind Kind, query, parentID string) (Match, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mapping, ok := m.names[kind][strings.ToLower(strings.TrimSpace(query))]
	if !ok {
		return Match{}, false
	}
	if parentID != "" && mapping.ParentID != parentID {
		return Match{}, false
	}
	return Match{
		TargetID:   mapping.TargetID,
		TargetName: mapping.TargetName,
		Score:      1,
		Priority:   mapping.Priority,
	}, true
}

func (m *Mapper) vectorMatch(ctx context.Context, kind Kind, query, parentID string) ([]Match, error) {
	collection, _ := collectionFor(kind)

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: embed query: %w", err)
	}
	hits, err := m.store.Search(ctx, collection, vec, 5, m.thresholds[kind])
	if err != nil {
		return nil, fmt.Errorf("catalog: search %s: %w", collection, err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		if parentID != "" && hit.Payload["parent_id"] != parentID {
			continue
		}
		priority, _ := strconv.Atoi(hit.Payload["priority"])
		matches = append(matches, Match{
			TargetID:   hit.Payload["target_id"],
			TargetName: hit.Payload["target_name"],
			Score:      hit.Score,
			Priority:   priority,
		})
	}

	// Score descending, then priority reorders each near-equal cluster.
	// The cluster is anchored at its leading score so a strictly better
	// match can never be displaced by a high-priority one outside the gap.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	for start := 0; start < len(matches); {
		end := start + 1
		for end < len(matches) && matches[start].Score-matches[end].Score <= tieGap {
			end++
		}
		cluster := matches[start:end]
		sort.SliceStable(cluster, func(i, j int) bool {
			return cluster[i].Priority > cluster[j].Priority
		})
		start = end
	}
	return matches, nil
}
