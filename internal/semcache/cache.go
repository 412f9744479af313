package semcache

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/carelink-health/carelink/internal/embedding"
	"github.com/carelink-health/carelink/internal/vectorstore"
	"github.com/carelink-health/carelink/pkg/logging"
)

// DefaultMinSimilarity is the cosine score a stored question must reach to be
// considered the same question.
const DefaultMinSimilarity = 0.95

const (
	payloadQuery  = "query"
	payloadAnswer = "answer"
)

// Short confirmations carry no cacheable meaning of their own.
var confirmations = map[string]struct{}{
	"ok":       {},
	"oke":      {},
	"okay":     {},
	"yes":      {},
	"no":       {},
	"ừ":        {},
	"vâng":     {},
	"dạ":       {},
	"đúng":     {},
	"đúng rồi": {},
	"không":    {},
	"cảm ơn":   {},
}

// Turns about a user's own appointments, prescriptions, or bills are always
// personal; they never go through the cache in either direction.
var personalTopicPattern = regexp.MustCompile(`(?i)(lịch hẹn|lịch khám|đặt lịch|hủy lịch|đổi lịch|toa thuốc|đơn thuốc|hóa đơn|viện phí|thanh toán|của tôi|appointment|prescription|invoice|billing|my booking)`)

// Specificity heuristic: answers carrying one patient's transactional data
// must never be served to another. Pattern-based and necessarily incomplete;
// treat as a starting policy, not a complete leak barrier.
var (
	bookingCodePattern  = regexp.MustCompile(`APT-[A-Z0-9]{6,10}`)
	slotRefPattern      = regexp.MustCompile(`\bL\d{2}\b`)
	datePattern         = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	schedulingVocab     = regexp.MustCompile(`(?i)(lịch|hẹn|khám|slot|giờ|phòng|appointment|schedule|booking)`)
	recordNumberPattern = regexp.MustCompile(`(?i)\b(BN|HSBA|RX|INV|PAY)-?\d{4,}\b`)
	moneyPattern        = regexp.MustCompile(`\b\d{1,3}(?:[.,]\d{3})+\s*(?:đ|₫|VND|vnđ)\b|\b\d+\s*(?:đồng|VND)\b`)
)

// ContainsSpecificData reports whether text looks like one person's booking,
// medical, or financial data.
func ContainsSpecificData(text string) bool {
	if bookingCodePattern.MatchString(text) {
		return true
	}
	if recordNumberPattern.MatchString(text) {
		return true
	}
	if moneyPattern.MatchString(text) {
		return true
	}
	if schedulingVocab.MatchString(text) {
		if slotRefPattern.MatchString(text) || datePattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Cache is a semantic read/write layer over the answers collection. Both
// reads and writes are gated by the specificity heuristic so one patient's
// data never surfaces in another patient's session.
type Cache struct {
	embedder      embedding.Client
	store         vectorstore.Store
	logger        *logging.Logger
	minSimilarity float64
}

// New builds a semantic cache.
func New(embedder embedding.Client, store vectorstore.Store, logger *logging.Logger, minSimilarity float64) *Cache {
	if embedder == nil {
		panic("semcache: embedder cannot be nil")
	}
	if store == nil {
		panic("semcache: vector store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Cache{
		embedder:      embedder,
		store:         store,
		logger:        logger,
		minSimilarity: minSimilarity,
	}
}

// Cacheable reports whether a turn should consult the cache at all.
func Cacheable(prompt string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(prompt))
	if trimmed == "" {
		return false
	}
	if _, ok := confirmations[trimmed]; ok {
		return false
	}
	if personalTopicPattern.MatchString(prompt) {
		return false
	}
	return true
}

// Lookup returns a cached answer for a semantically equivalent question.
// Infrastructure errors read as a miss.
func (c *Cache) Lookup(ctx context.Context, prompt string) (string, bool) {
	if !Cacheable(prompt) {
		return "", false
	}
	if ContainsSpecificData(prompt) {
		return "", false
	}

	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		c.logger.Warn("cache lookup embed failed, treating as miss", "error", err)
		return "", false
	}
	hits, err := c.store.Search(ctx, vectorstore.CollectionAnswers, vec, 1, c.minSimilarity)
	if err != nil {
		c.logger.Warn("cache lookup search failed, treating as miss", "error", err)
		return "", false
	}
	if len(hits) == 0 {
		return "", false
	}

	answer := hits[0].Payload[payloadAnswer]
	if answer == "" {
		return "", false
	}
	// Entries stored before a heuristic change may still carry specific data;
	// re-check on the way out.
	if ContainsSpecificData(answer) {
		c.logger.Warn("cached answer failed specificity check, skipping", "entry_id", hits[0].ID)
		return "", false
	}
	return answer, true
}

// Store writes a model answer back to the cache when both sides pass the
// specificity gate.
func (c *Cache) Store(ctx context.Context, prompt, answer string) error {
	if !Cacheable(prompt) {
		return nil
	}
	if ContainsSpecificData(prompt) || ContainsSpecificData(answer) {
		return nil
	}
	if strings.TrimSpace(answer) == "" {
		return nil
	}

	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		return fmt.Errorf("semcache: embed for store: %w", err)
	}
	payload := map[string]string{
		payloadQuery:  prompt,
		payloadAnswer: answer,
	}
	if err := c.store.Upsert(ctx, vectorstore.CollectionAnswers, uuid.NewString(), vec, payload); err != nil {
		return fmt.Errorf("semcache: upsert answer: %w", err)
	}
	return nil
}
