package sdk

import "github.com/exphub/searchcore/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound           = domain.ErrNotFound
	ErrExperimentNotFound = domain.ErrExperimentNotFound
	ErrInvalidInput       = domain.ErrInvalidInput
	ErrEmbeddingProvider  = domain.ErrEmbeddingProvider
	ErrGenerationProvider = domain.ErrGenerationProvider
	ErrStoreUnavailable   = domain.ErrStoreUnavailable
)
