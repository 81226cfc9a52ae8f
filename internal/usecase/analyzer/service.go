// Package analyzer classifies search queries and extracts keywords from
// natural-language ones. Analysis is best-effort: a generative call backs
// it, a deterministic extraction replaces it on any failure, and Analyze
// never returns an error.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/llmjson"
	"github.com/exphub/searchcore/internal/metrics"
)

const analysisPrompt = `Analyze this search query for an AI prompt experiment platform.
Query: %q

Respond with JSON only:
{"keywords": ["2-5 search terms"], "intent": "one short phrase", "expandedQuery": "reworded query for full-text search"}`

const maxKeywords = 5

// Service analyzes incoming search queries.
type Service struct {
	gen          Generator
	wordBoundary int
	logger       *zap.Logger
}

// New creates a query analyzer. wordBoundary is the minimum word count for
// a query to be treated as natural language (inclusive).
func New(gen Generator, wordBoundary int, logger *zap.Logger) *Service {
	if wordBoundary < 1 {
		wordBoundary = 3
	}
	return &Service{gen: gen, wordBoundary: wordBoundary, logger: logger}
}

// Natural reports whether a query reads as natural language rather than a
// bare keyword lookup.
func (s *Service) Natural(query string) bool {
	return len(strings.Fields(query)) >= s.wordBoundary
}

// Analyze extracts keywords, intent, and an expanded query. The generative
// path is advisory: on any call or parse failure the deterministic
// extraction takes over, so Analyze is total.
func (s *Service) Analyze(ctx context.Context, query string) domain.QueryAnalysis {
	raw, err := s.gen.Generate(ctx, fmt.Sprintf(analysisPrompt, query))
	if err != nil {
		s.logger.Warn("Query analysis generation failed, using fallback", zap.Error(err))
		metrics.GenerationFallbacksTotal.WithLabelValues("analyze").Inc()
		return fallbackAnalysis(query)
	}

	var parsed struct {
		Keywords      []string `json:"keywords"`
		Intent        string   `json:"intent"`
		ExpandedQuery string   `json:"expandedQuery"`
	}
	if err := llmjson.Decode(raw, &parsed); err != nil || len(parsed.Keywords) == 0 {
		s.logger.Warn("Query analysis response unparseable, using fallback",
			zap.Error(err), zap.String("raw", raw))
		metrics.GenerationFallbacksTotal.WithLabelValues("analyze").Inc()
		return fallbackAnalysis(query)
	}

	if len(parsed.Keywords) > maxKeywords {
		parsed.Keywords = parsed.Keywords[:maxKeywords]
	}
	if parsed.Intent == "" {
		parsed.Intent = "search"
	}
	if parsed.ExpandedQuery == "" {
		parsed.ExpandedQuery = query
	}

	return domain.QueryAnalysis{
		Keywords:      parsed.Keywords,
		Intent:        parsed.Intent,
		ExpandedQuery: parsed.ExpandedQuery,
	}
}

// stopWords are dropped by the deterministic keyword extraction.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"how": {}, "can": {}, "you": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "why": {}, "does": {}, "are": {}, "was": {}, "were": {},
	"has": {}, "have": {}, "had": {}, "not": {}, "but": {}, "from": {},
	"into": {}, "about": {}, "using": {}, "use": {}, "get": {}, "make": {},
}

// fallbackAnalysis is the deterministic replacement for a failed generative
// analysis: lower-cased significant tokens, capped at maxKeywords.
func fallbackAnalysis(query string) domain.QueryAnalysis {
	var keywords []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, ".,!?:;\"'()")
		if len(tok) < 3 {
			continue
		}
		if _, skip := stopWords[tok]; skip {
			continue
		}
		keywords = append(keywords, tok)
		if len(keywords) == maxKeywords {
			break
		}
	}

	return domain.QueryAnalysis{
		Keywords:      keywords,
		Intent:        "search",
		ExpandedQuery: query,
	}
}
