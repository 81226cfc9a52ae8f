package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/exphub/searchcore/internal/domain"
)

// PacedEmbedder spaces out calls to the inner embedder so bulk indexing does
// not trip provider rate limits. Burst is 1: strictly one request per delay.
type PacedEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// NewPaced creates a pacing decorator with one request per delay interval.
// A non-positive delay disables pacing.
func NewPaced(inner domain.Embedder, delay time.Duration) *PacedEmbedder {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &PacedEmbedder{inner: inner, limiter: limiter}
}

// Embed waits for the pacing slot, then delegates. The wait honors ctx.
func (p *PacedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return domain.EmbeddingResult{}, err
		}
	}
	return p.inner.Embed(ctx, text)
}
