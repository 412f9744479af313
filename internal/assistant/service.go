package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carelink-health/carelink/internal/agent"
	"github.com/carelink-health/carelink/internal/convstate"
	"github.com/carelink-health/carelink/internal/guard"
	"github.com/carelink-health/carelink/internal/intent"
	"github.com/carelink-health/carelink/internal/observability/metrics"
	"github.com/carelink-health/carelink/pkg/logging"
)

// TurnRequest is one inbound user message.
type TurnRequest struct {
	SessionID string          `json:"sessionId"`
	Prompt    string          `json:"prompt"`
	History   []agent.Message `json:"history,omitempty"`
}

// TurnResponse is the assistant's reply.
type TurnResponse struct {
	Text     string `json:"text"`
	UsedTool bool   `json:"usedTool"`
}

type gate interface {
	Assess(ctx context.Context, sessionID, prompt string) guard.Assessment
}

type semanticCache interface {
	Lookup(ctx context.Context, prompt string) (string, bool)
	Store(ctx context.Context, prompt, answer string) error
}

type intentRouter interface {
	Classify(ctx context.Context, utterance string) intent.Label
}

type agentLoop interface {
	Run(ctx context.Context, sessionID string, label intent.Label, prompt string, history []agent.Message) agent.Result
}

type stateStore interface {
	Get(ctx context.Context, sessionID string) (convstate.State, error)
	Apply(ctx context.Context, sessionID string, patch convstate.Patch) (convstate.State, error)
}

// Service is the turn pipeline: gate, cache, intent, agent, writeback.
type Service struct {
	gate    gate
	cache   semanticCache
	router  intentRouter
	loop    agentLoop
	state   stateStore
	metrics *metrics.TurnMetrics
	logger  *logging.Logger
	clock   func() time.Time
}

// NewService wires the pipeline. Metrics may be nil.
func NewService(g gate, cache semanticCache, router intentRouter, loop agentLoop, state stateStore, m *metrics.TurnMetrics, logger *logging.Logger) *Service {
	if g == nil || cache == nil || router == nil || loop == nil || state == nil {
		panic("assistant: all pipeline stages are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		gate:    g,
		cache:   cache,
		router:  router,
		loop:    loop,
		state:   state,
		metrics: m,
		logger:  logger,
		clock:   time.Now,
	}
}

// HandleTurn runs one user message through the pipeline and produces the
// reply text. Filter-layer failures never block the turn; the stages
// themselves fail open.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	prompt := strings.TrimSpace(req.Prompt)
	if sessionID == "" {
		return TurnResponse{}, errors.New("assistant: session id is required")
	}
	if prompt == "" {
		return TurnResponse{}, errors.New("assistant: prompt is required")
	}
	start := s.clock()

	assessment := s.gate.Assess(ctx, sessionID, prompt)
	switch assessment.Zone {
	case guard.ZoneSuspicious:
		s.logger.Info("turn short-circuited by gate",
			"session_id", sessionID, "zone", assessment.Zone, "reasons", assessment.Reasons)
		s.metrics.ObserveTurn(string(assessment.Zone), "none")
		return TurnResponse{Text: guard.SuspiciousReply}, nil
	case guard.ZoneSpam:
		s.logger.Warn("turn rejected by gate",
			"session_id", sessionID, "zone", assessment.Zone, "reasons", assessment.Reasons)
		s.metrics.ObserveTurn(string(assessment.Zone), "none")
		return TurnResponse{Text: guard.SpamReply}, nil
	}

	if answer, ok := s.cache.Lookup(ctx, prompt); ok {
		s.metrics.ObserveCache("hit")
		s.metrics.ObserveTurn(string(assessment.Zone), "cached")
		s.metrics.ObserveTurnLatency("cached", s.clock().Sub(start).Seconds())
		s.logger.Info("semantic cache hit", "session_id", sessionID)
		return TurnResponse{Text: answer}, nil
	}
	s.metrics.ObserveCache("miss")

	label := s.router.Classify(ctx, prompt)
	s.metrics.ObserveTurn(string(assessment.Zone), string(label))

	s.advanceStage(ctx, sessionID, label)

	result := s.loop.Run(ctx, sessionID, label, prompt, req.History)
	for _, tool := range result.ToolsUsed {
		s.metrics.ObserveToolCall(tool)
	}
	s.metrics.ObserveTurnLatency(string(label), s.clock().Sub(start).Seconds())

	if result.Kind == agent.ResultAnswer {
		if err := s.cache.Store(ctx, prompt, result.Text); err != nil {
			s.logger.Warn("semantic cache store failed", "session_id", sessionID, "error", err)
		}
	}

	return TurnResponse{Text: result.Text, UsedTool: result.UsedTool()}, nil
}

// advanceStage moves a fresh booking conversation out of GREETING. Later
// transitions happen inside the booking tools.
func (s *Service) advanceStage(ctx context.Context, sessionID string, label intent.Label) {
	if label != intent.LabelAppointment {
		return
	}
	state, err := s.state.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("conversation state read failed", "session_id", sessionID, "error", err)
		return
	}
	if state.Current != convstate.StageGreeting {
		return
	}
	stage := convstate.StageCollectingInfo
	if _, err := s.state.Apply(ctx, sessionID, convstate.Patch{Current: &stage}); err != nil {
		s.logger.Warn("conversation state patch failed", "session_id", sessionID, "error", err)
	}
}
