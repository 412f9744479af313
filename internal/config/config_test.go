package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModelID)
	assert.Equal(t, 10, cfg.AgentMaxToolCalls)
	assert.Equal(t, 10*time.Second, cfg.ToolCallTimeout)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "memory", cfg.BehaviorStore)
	assert.InDelta(t, 0.95, cfg.CacheMinSimilarity, 1e-9)
	assert.InDelta(t, 0.8, cfg.SpecialtyMinSimilarity, 1e-9)
	assert.InDelta(t, 0.7, cfg.ServiceMinSimilarity, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_MAX_TOOL_CALLS", "5")
	t.Setenv("TOOL_CALL_TIMEOUT", "3s")
	t.Setenv("BEHAVIOR_STORE", "Redis")
	t.Setenv("SPAM_MIN_SCORE", "0.85")

	cfg := Load()

	assert.Equal(t, 5, cfg.AgentMaxToolCalls)
	assert.Equal(t, 3*time.Second, cfg.ToolCallTimeout)
	assert.Equal(t, "redis", cfg.BehaviorStore)
	assert.InDelta(t, 0.85, cfg.SpamMinScore, 1e-9)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("AGENT_MAX_TOOL_CALLS", "many")
	t.Setenv("SPAM_MIN_SCORE", "high")

	cfg := Load()

	assert.Equal(t, 10, cfg.AgentMaxToolCalls)
	assert.InDelta(t, 0.7, cfg.SpamMinScore, 1e-9)
}
