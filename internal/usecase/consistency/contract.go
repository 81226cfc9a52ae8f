package consistency

import (
	"context"

	"github.com/exphub/searchcore/internal/domain"
)

// Reindexer rebuilds the search index from the system of record.
type Reindexer interface {
	Reindex(ctx context.Context) (domain.ReindexReport, error)
}

// ExperimentStore reads the system of record for verification.
type ExperimentStore interface {
	Count(ctx context.Context) (int, error)
	Sample(ctx context.Context, n int) ([]*domain.Experiment, error)
}

// IndexReader reads back indexed documents for verification.
type IndexReader interface {
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id string) (*domain.SearchDocument, error)
}
