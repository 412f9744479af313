package agent

import (
	"context"
	"errors"
	"time"

	"github.com/carelink-health/carelink/internal/intent"
	"github.com/carelink-health/carelink/pkg/logging"
)

// Canned replies for turns the loop cannot finish. The model never sees
// these; they go straight to the patient.
const (
	FailureReply      = "Xin lỗi, hệ thống đang gặp sự cố. Anh/chị vui lòng thử lại sau ít phút ạ."
	LoopExceededReply = "Xin lỗi, tôi chưa thể hoàn tất yêu cầu này ngay. Anh/chị vui lòng thử lại hoặc liên hệ tổng đài của bệnh viện ạ."
)

// ResultKind classifies how a turn through the loop ended.
type ResultKind string

const (
	ResultAnswer       ResultKind = "answer"
	ResultToolError    ResultKind = "tool_error"
	ResultLoopExceeded ResultKind = "loop_exceeded"
)

// Result is the loop's outcome for one user turn.
type Result struct {
	Kind      ResultKind
	Text      string
	ToolsUsed []string
}

// UsedTool reports whether any tool ran during the turn.
func (r Result) UsedTool() bool { return len(r.ToolsUsed) > 0 }

// Loop drives the model's tool-calling conversation for one turn, dispatching
// requested calls until the model answers in plain text or the call budget
// runs out.
type Loop struct {
	model        ModelClient
	registry     *Registry
	maxToolCalls int
	toolTimeout  time.Duration
	logger       *logging.Logger
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithMaxToolCalls overrides the per-turn tool call budget.
func WithMaxToolCalls(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxToolCalls = n
		}
	}
}

// WithToolTimeout overrides the per-call timeout.
func WithToolTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.toolTimeout = d
		}
	}
}

// NewLoop builds the agent loop.
func NewLoop(model ModelClient, registry *Registry, logger *logging.Logger, opts ...LoopOption) *Loop {
	if model == nil {
		panic("agent: model client cannot be nil")
	}
	if registry == nil {
		panic("agent: tool registry cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Loop{
		model:        model,
		registry:     registry,
		maxToolCalls: 10,
		toolTimeout:  10 * time.Second,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes one user turn. The intent label picks the persona and tool
// subset; sessionId is injected into every dispatched call so user-scoped
// tools can resolve the patient themselves.
func (l *Loop) Run(ctx context.Context, sessionID string, label intent.Label, prompt string, history []Message) Result {
	persona, toolNames := PersonaFor(label)
	session, err := l.model.StartChat(ctx, persona, l.registry.Definitions(toolNames), history)
	if err != nil {
		l.logger.Error("agent chat start failed", "session_id", sessionID, "error", err)
		return Result{Kind: ResultToolError, Text: FailureReply}
	}

	turn, err := session.Send(ctx, prompt)
	if err != nil {
		l.logger.Error("agent model turn failed", "session_id", sessionID, "error", err)
		return Result{Kind: ResultToolError, Text: FailureReply}
	}

	var toolsUsed []string
	callsDispatched := 0
	for len(turn.Calls) > 0 {
		if callsDispatched+len(turn.Calls) > l.maxToolCalls {
			l.logger.Warn("agent tool call budget exceeded",
				"session_id", sessionID, "dispatched", callsDispatched, "requested", len(turn.Calls))
			return Result{Kind: ResultLoopExceeded, Text: LoopExceededReply, ToolsUsed: toolsUsed}
		}

		responses := make([]FunctionResponse, 0, len(turn.Calls))
		for _, call := range turn.Calls {
			callsDispatched++
			toolsUsed = append(toolsUsed, call.Name)
			responses = append(responses, FunctionResponse{
				Name:     call.Name,
				Response: l.dispatch(ctx, call, sessionID),
			})
		}

		turn, err = session.Reply(ctx, responses)
		if err != nil {
			l.logger.Error("agent model turn failed", "session_id", sessionID, "error", err)
			return Result{Kind: ResultToolError, Text: FailureReply, ToolsUsed: toolsUsed}
		}
	}

	if turn.Text == "" {
		l.logger.Error("agent model returned empty final turn", "session_id", sessionID)
		return Result{Kind: ResultToolError, Text: FailureReply, ToolsUsed: toolsUsed}
	}
	return Result{Kind: ResultAnswer, Text: turn.Text, ToolsUsed: toolsUsed}
}

// dispatch runs one call under the per-call timeout. Tool failures become
// payloads for the model, never loop aborts: the model decides whether to
// retry, rephrase, or apologize.
func (l *Loop) dispatch(ctx context.Context, call FunctionCall, sessionID string) map[string]any {
	callCtx, cancel := context.WithTimeout(ctx, l.toolTimeout)
	defer cancel()

	payload, err := l.registry.Dispatch(callCtx, call, sessionID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			l.logger.Warn("tool call timed out", "tool", call.Name, "session_id", sessionID)
			return map[string]any{
				"error":     "timeout",
				"retryable": true,
				"message":   "the tool did not answer in time; you may retry once",
			}
		}
		l.logger.Error("tool call failed", "tool", call.Name, "session_id", sessionID, "error", err)
		return map[string]any{"error": err.Error()}
	}
	return payload
}
