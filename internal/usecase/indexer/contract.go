package indexer

import (
	"context"

	"github.com/exphub/searchcore/internal/domain"
)

// Repository is the search-store contract for indexing operations.
type Repository interface {
	Upsert(ctx context.Context, doc *domain.SearchDocument) error
	BulkUpsert(ctx context.Context, docs []*domain.SearchDocument) error
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// ExperimentLister pages through the system of record by ascending id.
type ExperimentLister interface {
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Experiment, error)
}

// PerspectiveGenerator derives the three retrieval texts for an experiment.
// Total: falls back internally and never errors.
type PerspectiveGenerator interface {
	Generate(ctx context.Context, exp *domain.Experiment) domain.Perspectives
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
