package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carelink-health/carelink/cmd/mainconfig"
	"github.com/carelink-health/carelink/internal/agent"
	"github.com/carelink-health/carelink/internal/api/router"
	"github.com/carelink-health/carelink/internal/assistant"
	"github.com/carelink-health/carelink/internal/catalog"
	appconfig "github.com/carelink-health/carelink/internal/config"
	"github.com/carelink-health/carelink/internal/convstate"
	"github.com/carelink-health/carelink/internal/embedding"
	"github.com/carelink-health/carelink/internal/guard"
	"github.com/carelink-health/carelink/internal/intent"
	"github.com/carelink-health/carelink/internal/observability/metrics"
	"github.com/carelink-health/carelink/internal/scheduling"
	"github.com/carelink-health/carelink/internal/semcache"
	"github.com/carelink-health/carelink/internal/session"
	"github.com/carelink-health/carelink/internal/vectorstore"
	"github.com/carelink-health/carelink/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting carelink API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"storage", cfg.StorageBackend,
	)

	ctx := context.Background()

	embedder, err := embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModelID, cfg.EmbeddingDimension, logger)
	if err != nil {
		logger.Error("failed to create embedding client", "error", err)
		os.Exit(1)
	}
	model, err := agent.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer model.Close()

	// The memory backend is the single-process local profile; everything else
	// shares session state through Redis.
	var redisClient *redis.Client
	if cfg.StorageBackend != "memory" || cfg.BehaviorStore == "redis" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
	}

	var vectors vectorstore.Store
	if redisClient != nil {
		vectors = vectorstore.NewRedisStore(redisClient)
	} else {
		vectors = vectorstore.NewMemoryStore()
	}

	var behavior guard.BehaviorStore
	if cfg.BehaviorStore == "redis" && redisClient != nil {
		behavior = guard.NewRedisBehaviorStore(redisClient, cfg.BehaviorWindow, logger)
	} else {
		behavior = guard.NewMemoryBehaviorStore(cfg.BehaviorWindow, nil)
	}
	scorer := guard.NewScorer(embedder, vectors, behavior, logger,
		guard.WithZoneBounds(cfg.SuspiciousMinScore, cfg.SpamMinScore),
		guard.WithIrrelevantMinScore(cfg.IrrelevantMinScore),
	)

	cache := semcache.New(embedder, vectors, logger, cfg.CacheMinSimilarity)

	mapper := catalog.NewMapper(embedder, vectors, logger,
		catalog.WithThreshold(catalog.KindSpecialty, cfg.SpecialtyMinSimilarity),
		catalog.WithThreshold(catalog.KindService, cfg.ServiceMinSimilarity),
		catalog.WithThreshold(catalog.KindDoctor, cfg.DoctorMinSimilarity),
	)

	var identities session.IdentityMap
	if redisClient != nil {
		identities = session.NewRedisIdentityMap(redisClient, cfg.SessionTTL, logger)
	} else {
		identities = session.NewMemoryIdentityMap(cfg.SessionTTL, nil)
	}

	var booker scheduling.Booker
	var states convstate.Store
	if cfg.StorageBackend == "dynamo" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		dynamoClient := dynamodb.NewFromConfig(awsCfg)
		booker = scheduling.NewDynamoBooker(dynamoClient, cfg.SchedulesTable, cfg.AppointmentsTable, logger)
		states = convstate.NewDynamoStore(dynamoClient, cfg.ConversationsTable, logger)
	} else {
		booker = scheduling.NewMemoryBooker(nil)
		states = convstate.NewMemoryStore(nil)
	}

	medications := catalog.NewMemoryMedicationDirectory()
	turnMetrics := metrics.NewTurnMetrics(prometheus.DefaultRegisterer)

	registry := agent.NewRegistry(agent.ToolDeps{
		Catalog:     mapper,
		Booker:      booker,
		Slots:       scheduling.NewSlotListCache(),
		Identity:    identities,
		State:       states,
		Medications: medications,
		Metrics:     turnMetrics,
		Logger:      logger,
	})
	loop := agent.NewLoop(model, registry, logger,
		agent.WithMaxToolCalls(cfg.AgentMaxToolCalls),
		agent.WithToolTimeout(cfg.ToolCallTimeout),
	)

	classifier, err := agent.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.IntentModelID)
	if err != nil {
		logger.Error("failed to create intent classifier client", "error", err)
		os.Exit(1)
	}
	defer classifier.Close()
	intentRouter := intent.NewRouter(classifier, logger)

	service := assistant.NewService(scorer, cache, intentRouter, loop, states, turnMetrics, logger)

	r := router.New(&router.Config{
		Logger:           logger,
		AssistantHandler: assistant.NewHandler(service, logger),
		SessionHandler:   session.NewHandler(identities, logger).Routes(),
		MetricsHandler:   promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
