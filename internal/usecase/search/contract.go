package search

import (
	"context"

	"github.com/exphub/searchcore/internal/domain"
)

// Repository is the search-store contract for retrieval.
type Repository interface {
	SearchVector(
		ctx context.Context, slot domain.PerspectiveSlot, vector []float32,
		k, pool int, filter domain.SearchFilter,
	) ([]domain.SearchHit, error)

	SearchLexical(
		ctx context.Context, q domain.LexicalQuery, filter domain.SearchFilter, limit int,
	) ([]domain.SearchHit, error)

	BrowseRecent(
		ctx context.Context, queryText string, filter domain.SearchFilter, limit int,
	) ([]domain.SearchHit, error)
}

// Analyzer classifies queries and extracts keywords. Total: never errors.
type Analyzer interface {
	Natural(query string) bool
	Analyze(ctx context.Context, query string) domain.QueryAnalysis
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
