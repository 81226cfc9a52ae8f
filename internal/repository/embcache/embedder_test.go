package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/exphub/searchcore/internal/db"
	"github.com/exphub/searchcore/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Vector:      []float32{0.1, 0.2, 0.3},
		TotalTokens: 10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	// GET → ErrKeyNotFound (cache miss)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	// SET → OK (cache put)
	var setCalled bool
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
		setCalled = true
		setTTL = ttl
		return nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Vector) != 3 || result.Vector[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Vector)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !setCalled {
		t.Fatal("expected SET to be called for cache put")
	}
	if setTTL != cacheTTL {
		t.Fatalf("cache put TTL = %v, want %v", setTTL, cacheTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Vector: []float32{0.1, 0.2, 0.3},
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})

	// GET → cached bytes
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Vector) != 3 || result.Vector[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Vector)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Fatalf("inner should not be called on hit, got %d calls", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	// GET → ErrKeyNotFound (cache miss)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	_, err := ce.Embed(ctx, "test text")
	if err == nil {
		t.Fatal("expected error from inner embedder")
	}
}

func TestEmbed_CorruptCacheFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Vector: []float32{0.7}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	// Cached payload with invalid length: treated as a miss.
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Vector) != 1 || result.Vector[0] != 0.7 {
		t.Fatalf("expected inner vector, got %v", result.Vector)
	}
	if inner.calls != 1 {
		t.Fatalf("expected inner call on corrupt cache, got %d", inner.calls)
	}
}

func TestCacheKey_PrefixedAndStable(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{})

	k1 := ce.cacheKey("same text")
	k2 := ce.cacheKey("same text")
	k3 := ce.cacheKey("other text")

	if !strings.HasPrefix(k1, "searchcore:emb_cache:") {
		t.Errorf("key %q missing prefix", k1)
	}
	if k1 != k2 {
		t.Errorf("same text must produce same key: %q vs %q", k1, k2)
	}
	if k1 == k3 {
		t.Errorf("different texts must produce different keys")
	}
}
