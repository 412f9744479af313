package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Language model
	GeminiAPIKey      string
	GeminiModelID     string
	IntentModelID     string
	AgentMaxToolCalls int
	ToolCallTimeout   time.Duration

	// Embeddings
	OpenAIAPIKey       string
	EmbeddingModelID   string
	EmbeddingDimension int

	// Session identity map
	SessionTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Spam scorer
	BehaviorStore      string // "memory" or "redis"
	BehaviorWindow     time.Duration
	SuspiciousMinScore float64
	SpamMinScore       float64

	// Semantic cache / catalog thresholds
	CacheMinSimilarity     float64
	IrrelevantMinScore     float64
	SpecialtyMinSimilarity float64
	ServiceMinSimilarity   float64
	DoctorMinSimilarity    float64

	// Persistence
	StorageBackend      string // "memory" or "dynamo"
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SchedulesTable      string
	AppointmentsTable   string
	ConversationsTable  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:     getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		IntentModelID:     getEnv("INTENT_MODEL_ID", "gemini-2.5-flash"),
		AgentMaxToolCalls: getEnvAsInt("AGENT_MAX_TOOL_CALLS", 10),
		ToolCallTimeout:   getEnvAsDuration("TOOL_CALL_TIMEOUT", 10*time.Second),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		EmbeddingModelID:   getEnv("EMBEDDING_MODEL_ID", "text-embedding-3-small"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),

		SessionTTL:    getEnvAsDuration("SESSION_TTL", 10*time.Minute),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BehaviorStore:      strings.ToLower(strings.TrimSpace(getEnv("BEHAVIOR_STORE", "memory"))),
		BehaviorWindow:     getEnvAsDuration("BEHAVIOR_WINDOW", time.Minute),
		SuspiciousMinScore: getEnvAsFloat("SUSPICIOUS_MIN_SCORE", 0.3),
		SpamMinScore:       getEnvAsFloat("SPAM_MIN_SCORE", 0.7),

		CacheMinSimilarity:     getEnvAsFloat("CACHE_MIN_SIMILARITY", 0.95),
		IrrelevantMinScore:     getEnvAsFloat("IRRELEVANT_MIN_SIMILARITY", 0.95),
		SpecialtyMinSimilarity: getEnvAsFloat("SPECIALTY_MIN_SIMILARITY", 0.8),
		ServiceMinSimilarity:   getEnvAsFloat("SERVICE_MIN_SIMILARITY", 0.7),
		DoctorMinSimilarity:    getEnvAsFloat("DOCTOR_MIN_SIMILARITY", 0.7),

		StorageBackend:      strings.ToLower(strings.TrimSpace(getEnv("STORAGE_BACKEND", "dynamo"))),
		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SchedulesTable:      getEnv("SCHEDULES_TABLE", "schedules"),
		AppointmentsTable:   getEnv("APPOINTMENTS_TABLE", "appointments"),
		ConversationsTable:  getEnv("CONVERSATIONS_TABLE", "conversation_states"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
