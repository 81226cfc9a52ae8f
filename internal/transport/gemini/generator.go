package gemini

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/metrics"
)

// Generator produces free-form text via a Gemini generative model. It backs
// query analysis and perspective generation; callers own the prompt and the
// parsing of the reply.
type Generator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// GeneratorConfig holds the generative driver settings.
type GeneratorConfig struct {
	APIKey string
	Model  string
	Logger *zap.Logger
}

// NewGenerator creates a Gemini text generation provider.
func NewGenerator(ctx context.Context, cfg *GeneratorConfig) (*Generator, error) {
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
		model = "gemini-2.0-flash"
	}

	return &Generator{client: client, model: model, logger: cfg.Logger}, nil
}

// Generate implements domain.Generator: one prompt in, raw model text out.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "generate", "error").Inc()
		return "", fmt.Errorf("gemini generate: %v: %w", err, domain.ErrGenerationProvider)
	}

	text := resp.Text()
	if text == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "generate", "error").Inc()
		return "", fmt.Errorf("empty generation response: %w", domain.ErrGenerationProvider)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "generate", "success").Inc()
	return text, nil
}
