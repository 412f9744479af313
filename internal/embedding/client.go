package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carelink-health/carelink/pkg/logging"
)

// Client turns text into a fixed-length vector. Repeated calls on identical
// text must yield cosine-similar vectors.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to the Client interface.
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIClient embeds text through the OpenAI embeddings API.
type OpenAIClient struct {
	api       embeddingAPI
	model     string
	dimension int
	logger    *logging.Logger
}

// NewOpenAIClient builds a client for the given API key and model.
func NewOpenAIClient(apiKey, model string, dimension int, logger *logging.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("embedding: openai api key is required")
	}
	return newOpenAIClient(openai.NewClient(apiKey), model, dimension, logger), nil
}

// newOpenAIClient allows injecting a fake API in tests.
func newOpenAIClient(api embeddingAPI, model string, dimension int, logger *logging.Logger) *OpenAIClient {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 768
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClient{api: api, model: model, dimension: dimension, logger: logger}
}

// Embed returns the embedding vector for the supplied text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embedding: text is empty")
	}

	req := &openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.model),
		Input:      []string{text},
		Dimensions: c.dimension,
	}

	resp, err := c.api.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding: create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding: empty response")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != c.dimension {
		c.logger.Warn("unexpected embedding dimension", "want", c.dimension, "got", len(vec))
	}
	return vec, nil
}
