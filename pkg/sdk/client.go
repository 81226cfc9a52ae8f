package sdk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/exphub/searchcore/internal/db/redis"
	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/metrics"
	"github.com/exphub/searchcore/internal/repository/embcache"
	experimentrepo "github.com/exphub/searchcore/internal/repository/experiment"
	indexrepo "github.com/exphub/searchcore/internal/repository/index"
	analyzeruc "github.com/exphub/searchcore/internal/usecase/analyzer"
	consistencyuc "github.com/exphub/searchcore/internal/usecase/consistency"
	embeddinguc "github.com/exphub/searchcore/internal/usecase/embedding"
	healthuc "github.com/exphub/searchcore/internal/usecase/health"
	indexeruc "github.com/exphub/searchcore/internal/usecase/indexer"
	perspectiveuc "github.com/exphub/searchcore/internal/usecase/perspective"
	searchuc "github.com/exphub/searchcore/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the embedded searchcore entry point.
type Client struct {
	store       *dbRedis.Store
	experiments *experimentrepo.Repo

	searchSvc      *searchuc.Service
	indexerSvc     *indexeruc.Service
	consistencySvc *consistencyuc.Service
	healthSvc      *healthuc.Service
}

// New creates a Client, connects to Redis and SQLite, and ensures the
// search index schema exists. The context bounds the readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.registerMetrics {
		metrics.RegisterProviderMetrics()
		metrics.RegisterSearchMetrics()
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect search store: %w", err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("search store not ready: %w", err)
	}

	experiments, err := experimentrepo.Open(cfg.sqlitePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open experiment database: %w", err)
	}

	idxRepo := indexrepo.New(store, cfg.keyPrefix, cfg.dimensions).
		WithHNSW(indexrepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct})
	if err := idxRepo.EnsureIndex(ctx); err != nil {
		_ = experiments.Close()
		store.Close()
		return nil, fmt.Errorf("ensure search index: %w", err)
	}

	queryEmbedder, indexEmbedder := buildEmbedders(cfg, store, logger)

	var generator domain.Generator = noGenerator{}
	if cfg.generator != nil {
		generator = cfg.generator
	}

	analyzerSvc := analyzeruc.New(generator, cfg.wordBoundary, logger)
	perspectiveSvc := perspectiveuc.New(generator, logger)
	indexerSvc := indexeruc.New(idxRepo, experiments, perspectiveSvc, indexEmbedder,
		cfg.reindexBatch, logger)
	searchSvc := searchuc.New(idxRepo, analyzerSvc, queryEmbedder, cfg.search, logger)
	consistencySvc := consistencyuc.New(indexerSvc, experiments, idxRepo, cfg.dimensions, logger)
	healthSvc := healthuc.New(store, experiments, nil)

	return &Client{
		store:          store,
		experiments:    experiments,
		searchSvc:      searchSvc,
		indexerSvc:     indexerSvc,
		consistencySvc: consistencySvc,
		healthSvc:      healthSvc,
	}, nil
}

// buildEmbedders assembles the embedding chains. The query path caches and
// retries; the indexing path is additionally paced. Without a configured
// Embedder both paths fail fast and the engine stays lexical-only.
func buildEmbedders(cfg *clientConfig, store *dbRedis.Store, logger *zap.Logger) (domain.Embedder, domain.Embedder) {
	if cfg.embedder == nil {
		return noEmbedder{}, noEmbedder{}
	}

	cached := embcache.New(embedderAdapter{cfg.embedder}, store, cfg.keyPrefix,
		metrics.EmbeddingCacheTotal, logger)
	query := embeddinguc.NewRetrying(cached, cfg.retryCount, cfg.retryDelay, "sdk", logger)
	index := embeddinguc.NewPaced(query, cfg.paceDelay)
	return query, index
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	err := c.experiments.Close()
	c.store.Close()
	return err
}

// Search runs one hybrid search call.
func (c *Client) Search(ctx context.Context, params SearchParams) SearchResponse {
	return fromDomainResponse(c.searchSvc.Search(ctx, toDomainParams(params)))
}

// UpsertExperiment writes the experiment to the system of record and
// projects it into the search index.
func (c *Client) UpsertExperiment(ctx context.Context, exp Experiment) error {
	if exp.ID <= 0 {
		return fmt.Errorf("%w: experiment id must be positive", domain.ErrInvalidInput)
	}
	if exp.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}

	d := toDomainExperiment(exp)
	if err := c.experiments.Upsert(ctx, d); err != nil {
		return fmt.Errorf("store experiment: %w", err)
	}
	if err := c.indexerSvc.Index(ctx, d); err != nil {
		return fmt.Errorf("index experiment: %w", err)
	}
	return nil
}

// GetExperiment reads one experiment from the system of record.
// Returns ErrExperimentNotFound for unknown ids.
func (c *Client) GetExperiment(ctx context.Context, id int64) (Experiment, error) {
	exp, err := c.experiments.Get(ctx, id)
	if err != nil {
		return Experiment{}, err
	}
	return fromDomainExperiment(exp), nil
}

// DeleteExperiment removes the experiment from both the system of record
// and the search index. Idempotent.
func (c *Client) DeleteExperiment(ctx context.Context, id int64) error {
	if err := c.experiments.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	if err := c.indexerSvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("deindex experiment: %w", err)
	}
	return nil
}

// Reindex rebuilds the search index from the system of record.
func (c *Client) Reindex(ctx context.Context) (ReindexReport, error) {
	report, err := c.consistencySvc.Resync(ctx)
	if err != nil {
		return ReindexReport{}, err
	}
	return fromDomainReindex(report), nil
}

// ResetIndex drops all indexed documents and recreates the empty schema.
func (c *Client) ResetIndex(ctx context.Context) error {
	return c.indexerSvc.Reset(ctx)
}

// VerifyConsistency compares document counts and spot-checks sampleSize
// documents field by field.
func (c *Client) VerifyConsistency(ctx context.Context, sampleSize int) (ConsistencyReport, error) {
	report, err := c.consistencySvc.Verify(ctx, sampleSize)
	if err != nil {
		return ConsistencyReport{}, err
	}
	return fromDomainConsistency(report), nil
}

// Health reports per-component availability ("ok" or "error").
func (c *Client) Health(ctx context.Context) map[string]string {
	report := c.healthSvc.Check(ctx)
	out := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		out[name] = string(res)
	}
	return out
}
