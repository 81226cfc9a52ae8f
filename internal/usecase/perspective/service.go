// Package perspective derives the three retrieval texts (problem, tech,
// solution) for an experiment. Like query analysis, generation is
// best-effort with a deterministic fallback; Generate never errors.
package perspective

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/llmjson"
	"github.com/exphub/searchcore/internal/metrics"
)

// Generator produces free-form model text for perspective extraction.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const perspectivePrompt = `Summarize this AI prompt experiment from three angles, one short phrase each.

Title: %s
AI model: %s
Prompt: %s
Description: %s

Respond with JSON only:
{"problem": "what user problem it addresses", "tech": "techniques and models involved", "solution": "the approach that solved it"}`

// promptExcerptLimit keeps the generation prompt bounded for long prompt texts.
const promptExcerptLimit = 2000

// Service generates perspectives for indexing.
type Service struct {
	gen    Generator
	logger *zap.Logger
}

// New creates a perspective generator.
func New(gen Generator, logger *zap.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

// Generate returns the three perspective texts for an experiment. On any
// generation or parse failure it degrades to fields of the experiment
// itself, so indexing always has lexical perspective text to work with.
func (s *Service) Generate(ctx context.Context, exp *domain.Experiment) domain.Perspectives {
	prompt := fmt.Sprintf(perspectivePrompt,
		exp.Title, exp.AIModel, excerpt(exp.PromptText), exp.Description)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("Perspective generation failed, using fallback",
			zap.Int64("experiment_id", exp.ID), zap.Error(err))
		metrics.GenerationFallbacksTotal.WithLabelValues("perspectives").Inc()
		return fallbackPerspectives(exp)
	}

	var parsed struct {
		Problem  string `json:"problem"`
		Tech     string `json:"tech"`
		Solution string `json:"solution"`
	}
	if err := llmjson.Decode(raw, &parsed); err != nil || parsed.Problem == "" {
		s.logger.Warn("Perspective response unparseable, using fallback",
			zap.Int64("experiment_id", exp.ID), zap.Error(err))
		metrics.GenerationFallbacksTotal.WithLabelValues("perspectives").Inc()
		return fallbackPerspectives(exp)
	}

	if parsed.Solution == "" {
		parsed.Solution = exp.Title
	}

	return domain.Perspectives{
		Problem:  parsed.Problem,
		Tech:     parsed.Tech,
		Solution: parsed.Solution,
	}
}

func fallbackPerspectives(exp *domain.Experiment) domain.Perspectives {
	return domain.Perspectives{
		Problem:  exp.Title,
		Tech:     exp.AIModel,
		Solution: exp.Title,
	}
}

// excerpt truncates on a rune boundary so the provider never receives a
// split multibyte sequence.
func excerpt(s string) string {
	if len(s) <= promptExcerptLimit {
		return s
	}
	cut := promptExcerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
