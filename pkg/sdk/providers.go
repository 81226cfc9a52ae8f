package sdk

import (
	"context"
	"fmt"

	"github.com/exphub/searchcore/internal/domain"
)

// Embedder converts text to vector embeddings. Optional: without one, the
// engine runs lexical-only.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Vector      []float32
	TotalTokens int
}

// Generator produces free-form model text for a prompt. Optional: without
// one, query analysis and perspective generation use heuristic fallbacks.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// embedderAdapter bridges the public Embedder onto the internal contract.
type embedderAdapter struct {
	inner Embedder
}

func (a embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Vector: res.Vector, TotalTokens: res.TotalTokens}, nil
}

// noEmbedder stands in when no Embedder is configured. Every call fails with
// the provider sentinel, which the engine treats as a lexical degrade.
type noEmbedder struct{}

func (noEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("%w: no embedder configured", domain.ErrEmbeddingProvider)
}

// noGenerator stands in when no Generator is configured, forcing the
// heuristic fallbacks.
type noGenerator struct{}

func (noGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no generator configured", domain.ErrGenerationProvider)
}
