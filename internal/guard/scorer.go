package guard

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/carelink-health/carelink/internal/embedding"
	"github.com/carelink-health/carelink/internal/vectorstore"
	"github.com/carelink-health/carelink/pkg/logging"
)

// Zone is the spam-risk bucket for a turn.
type Zone string

const (
	ZoneNormal     Zone = "normal"
	ZoneSuspicious Zone = "suspicious"
	ZoneSpam       Zone = "spam"
)

// Content signal weights. Behavior tiers are cumulative thresholds, not
// additive contributions.
const (
	irrelevantWeight     = 0.4
	contentPatternWeight = 0.3
	abnormalLengthWeight = 0.1

	contentShare  = 0.6
	behaviorShare = 0.4

	minPromptRunes = 3
	maxPromptRunes = 1000
)

// Default zone boundaries on the combined spam score.
const (
	DefaultSuspiciousMinScore = 0.3
	DefaultSpamMinScore       = 0.7
)

// Canned replies for turns that never reach the model.
const (
	SuspiciousReply = "Mình chưa hiểu rõ câu hỏi của bạn. Bạn đang cần tư vấn về đặt lịch khám, triệu chứng hay dịch vụ nào của bệnh viện?"
	SpamReply       = "Xin lỗi, mình chỉ hỗ trợ các câu hỏi về khám chữa bệnh và đặt lịch tại bệnh viện. Bạn cần mình giúp gì về sức khỏe không?"
)

// contentPattern is a compiled regex with a reason label.
type contentPattern struct {
	re     *regexp.Regexp
	reason string
}

// Links, profanity, and gambling/malware vocabulary. Any match contributes
// the pattern weight once.
var contentPatterns = []contentPattern{
	{regexp.MustCompile(`(?i)https?://|www\.[a-z0-9]`), "content:link"},
	{regexp.MustCompile(`(?i)\b(đm|đcm|vcl|vkl|clgt|địt|lồn|cặc|fuck|shit|bitch)\b`), "content:profanity"},
	{regexp.MustCompile(`(?i)(cá độ|cá cược|casino|lô đề|xổ số lậu|bet88|kèo bóng|gambling|jackpot)`), "content:gambling"},
	{regexp.MustCompile(`(?i)(hack|crack|keylogger|malware|trojan|phần mềm lậu|bẻ khóa)`), "content:malware"},
}

// Assessment is the transient spam verdict for one turn.
type Assessment struct {
	ContentScore  float64
	BehaviorScore float64
	SpamScore     float64
	Zone          Zone
	Reasons       []string
}

// Scorer combines content and behavior signals into a spam assessment. Any
// embedding or vector-store failure fails open: availability of the assistant
// outranks filtering precision.
type Scorer struct {
	embedder           embedding.Client
	store              vectorstore.Store
	behavior           BehaviorStore
	logger             *logging.Logger
	irrelevantMinScore float64
	suspiciousMin      float64
	spamMin            float64
}

// ScorerOption tunes the scorer thresholds.
type ScorerOption func(*Scorer)

// WithZoneBounds overrides the suspicious/spam score boundaries.
func WithZoneBounds(suspiciousMin, spamMin float64) ScorerOption {
	return func(s *Scorer) {
		if suspiciousMin > 0 {
			s.suspiciousMin = suspiciousMin
		}
		if spamMin > 0 {
			s.spamMin = spamMin
		}
	}
}

// WithIrrelevantMinScore overrides the similarity needed for an
// irrelevant-exemplar hit.
func WithIrrelevantMinScore(min float64) ScorerOption {
	return func(s *Scorer) {
		if min > 0 {
			s.irrelevantMinScore = min
		}
	}
}

// NewScorer wires the relevance gate and spam scorer.
func NewScorer(embedder embedding.Client, store vectorstore.Store, behavior BehaviorStore, logger *logging.Logger, opts ...ScorerOption) *Scorer {
	if embedder == nil {
		panic("guard: embedder cannot be nil")
	}
	if store == nil {
		panic("guard: vector store cannot be nil")
	}
	if behavior == nil {
		panic("guard: behavior store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scorer{
		embedder:           embedder,
		store:              store,
		behavior:           behavior,
		logger:             logger,
		irrelevantMinScore: 0.95,
		suspiciousMin:      DefaultSuspiciousMinScore,
		spamMin:            DefaultSpamMinScore,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess scores one inbound turn.
func (s *Scorer) Assess(ctx context.Context, sessionID, prompt string) Assessment {
	var a Assessment

	a.ContentScore, a.Reasons = s.contentScore(ctx, prompt)

	var flooding bool
	a.BehaviorScore, flooding = s.behaviorScore(ctx, sessionID)

	a.SpamScore = contentShare*a.ContentScore + behaviorShare*a.BehaviorScore
	if a.SpamScore > 1 {
		a.SpamScore = 1
	}
	if a.SpamScore < 0 {
		a.SpamScore = 0
	}

	switch {
	case flooding:
		// Past the top behavior tier the session is flooding; the blended
		// score alone cannot express that, so classify outright.
		a.Zone = ZoneSpam
		a.Reasons = append(a.Reasons, "behavior:flooding")
	case a.SpamScore >= s.spamMin:
		a.Zone = ZoneSpam
	case a.SpamScore >= s.suspiciousMin:
		a.Zone = ZoneSuspicious
	default:
		a.Zone = ZoneNormal
	}
	return a
}

// Reset clears the behavior window for a session.
func (s *Scorer) Reset(ctx context.Context, sessionID string) error {
	return s.behavior.Reset(ctx, sessionID)
}

func (s *Scorer) contentScore(ctx context.Context, prompt string) (float64, []string) {
	var score float64
	var reasons []string

	for _, p := range contentPatterns {
		if p.re.MatchString(prompt) {
			score += contentPatternWeight
			reasons = append(reasons, p.reason)
			break
		}
	}

	runes := utf8.RuneCountInString(strings.TrimSpace(prompt))
	if runes < minPromptRunes || runes > maxPromptRunes {
		score += abnormalLengthWeight
		reasons = append(reasons, "content:abnormal_length")
	}

	if s.matchesIrrelevant(ctx, prompt) {
		score += irrelevantWeight
		reasons = append(reasons, "content:irrelevant_topic")
	}

	return score, reasons
}

// matchesIrrelevant fails open: embedding or search errors read as relevant.
func (s *Scorer) matchesIrrelevant(ctx context.Context, prompt string) bool {
	vec, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		s.logger.Warn("relevance gate embed failed, failing open", "error", err)
		return false
	}
	hits, err := s.store.Search(ctx, vectorstore.CollectionIrrelevant, vec, 1, s.irrelevantMinScore)
	if err != nil {
		s.logger.Warn("relevance gate search failed, failing open", "error", err)
		return false
	}
	return len(hits) > 0
}

// behaviorScore maps the in-window request count onto cumulative tiers. The
// second return reports that the session crossed the top tier.
func (s *Scorer) behaviorScore(ctx context.Context, sessionID string) (float64, bool) {
	count, err := s.behavior.Observe(ctx, sessionID)
	if err != nil {
		s.logger.Warn("behavior store unavailable, failing open", "error", err, "session_id", sessionID)
		return 0, false
	}
	switch {
	case count > 30:
		return 0.5, true
	case count > 20:
		return 0.3, false
	case count > 10:
		return 0.1, false
	default:
		return 0, false
	}
}
