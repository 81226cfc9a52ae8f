package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrExperimentNotFound signals a missing experiment record.
	ErrExperimentNotFound = errors.New("experiment not found")
	// ErrInvalidInput signals a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingProvider signals an embedding provider failure after retries.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrGenerationProvider signals a generative model failure.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrStoreUnavailable signals that the search store could not be reached.
	ErrStoreUnavailable = errors.New("search store unavailable")
)
