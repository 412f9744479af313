package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/carelink-health/carelink/internal/catalog"
	appconfig "github.com/carelink-health/carelink/internal/config"
	"github.com/carelink-health/carelink/internal/embedding"
	"github.com/carelink-health/carelink/internal/vectorstore"
	"github.com/carelink-health/carelink/pkg/logging"
)

// seedFile is the JSON layout administrators maintain: free-text mappings per
// catalog kind plus sample off-topic prompts for the relevance gate.
type seedFile struct {
	Specialties []seedMapping `json:"specialties"`
	Services    []seedMapping `json:"services"`
	Doctors     []seedMapping `json:"doctors"`
	Irrelevant  []string      `json:"irrelevant"`
}

type seedMapping struct {
	Text       string `json:"text"`
	TargetID   string `json:"targetId"`
	TargetName string `json:"targetName"`
	ParentID   string `json:"parentId,omitempty"`
	Priority   int    `json:"priority,omitempty"`
}

func main() {
	var path string
	flag.StringVar(&path, "file", "seeds/catalog.json", "path to the JSON seed file")
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := run(context.Background(), cfg, logger, path); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	embedder, err := embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModelID, cfg.EmbeddingDimension, logger)
	if err != nil {
		return err
	}

	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	vectors := vectorstore.NewRedisStore(redis.NewClient(opts))

	mapper := catalog.NewMapper(embedder, vectors, logger)

	kinds := []struct {
		kind     catalog.Kind
		mappings []seedMapping
	}{
		{catalog.KindSpecialty, seed.Specialties},
		{catalog.KindService, seed.Services},
		{catalog.KindDoctor, seed.Doctors},
	}
	for _, group := range kinds {
		for _, m := range group.mappings {
			err := mapper.Upsert(ctx, group.kind, catalog.Mapping{
				Text:       m.Text,
				TargetID:   m.TargetID,
				TargetName: m.TargetName,
				ParentID:   m.ParentID,
				Priority:   m.Priority,
			})
			if err != nil {
				return fmt.Errorf("upsert %s %q: %w", group.kind, m.Text, err)
			}
		}
		logger.Info("seeded catalog mappings", "kind", string(group.kind), "count", len(group.mappings))
	}

	for _, prompt := range seed.Irrelevant {
		vec, err := embedder.Embed(ctx, prompt)
		if err != nil {
			return fmt.Errorf("embed irrelevant prompt %q: %w", prompt, err)
		}
		payload := map[string]string{"text": prompt}
		if err := vectors.Upsert(ctx, vectorstore.CollectionIrrelevant, uuid.NewString(), vec, payload); err != nil {
			return fmt.Errorf("upsert irrelevant prompt %q: %w", prompt, err)
		}
	}
	logger.Info("seeded irrelevant prompts", "count", len(seed.Irrelevant))

	return nil
}
