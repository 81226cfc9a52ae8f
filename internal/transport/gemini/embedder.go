// Package gemini provides embedding and text generation via the Google
// Gemini API. It is the default provider driver.
package gemini

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/metrics"
)

const providerName = "gemini"

// Embedder generates embeddings through the Gemini API.
type Embedder struct {
	client   *genai.Client
	model    string
	embedCfg *genai.EmbedContentConfig
	logger   *zap.Logger
}

// EmbedderConfig holds the embedding driver settings.
type EmbedderConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewEmbedder creates a Gemini embedding provider. Documents and queries
// share one task type so both live in the same vector space.
func NewEmbedder(ctx context.Context, cfg *EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}

	return &Embedder{
		client:   client,
		model:    model,
		embedCfg: embedContentConfig(cfg.Dimensions),
		logger:   cfg.Logger,
	}, nil
}

// embedContentConfig fixes the task type and output width for every call.
// Without OutputDimensionality the model answers at its native width, which
// does not match the index schema.
func embedContentConfig(dimensions int) *genai.EmbedContentConfig {
	cfg := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(dimensions))
	}
	return cfg
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	start := time.Now()

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.embedCfg)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("gemini embed: %v: %w", err, domain.ErrEmbeddingProvider)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.model).Observe(duration.Seconds())

	return domain.EmbeddingResult{Vector: result.Embeddings[0].Values}, nil
}
