// Package embedding holds decorators around domain.Embedder: retry with
// backoff and request pacing. Decorators compose freely; main wires the
// chain provider -> cache -> retry (+ pacing on the indexing path).
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/metrics"
)

// RetryingEmbedder retries transient provider failures with exponential
// backoff. Context cancellation is never retried.
type RetryingEmbedder struct {
	inner    domain.Embedder
	attempts int
	baseWait time.Duration
	provider string
	logger   *zap.Logger
}

// NewRetrying creates a retry decorator. attempts is the total number of
// tries, including the first; values below 1 are treated as 1.
func NewRetrying(
	inner domain.Embedder, attempts int, baseWait time.Duration,
	provider string, logger *zap.Logger,
) *RetryingEmbedder {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingEmbedder{
		inner:    inner,
		attempts: attempts,
		baseWait: baseWait,
		provider: provider,
		logger:   logger,
	}
}

// Embed calls the inner embedder, retrying failures with baseWait*2^n backoff.
// The last error is wrapped with domain.ErrEmbeddingProvider so callers can
// degrade uniformly regardless of driver.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error

	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			metrics.EmbeddingRetriesTotal.WithLabelValues(r.provider).Inc()
			r.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)

			wait := r.baseWait << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return domain.EmbeddingResult{}, ctx.Err()
			}
		}

		result, err := r.inner.Embed(ctx, text)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.EmbeddingResult{}, err
		}
		lastErr = err
	}

	if errors.Is(lastErr, domain.ErrEmbeddingProvider) {
		return domain.EmbeddingResult{}, fmt.Errorf("embed after %d attempts: %w", r.attempts, lastErr)
	}
	return domain.EmbeddingResult{}, fmt.Errorf("embed after %d attempts: %v: %w",
		r.attempts, lastErr, domain.ErrEmbeddingProvider)
}
