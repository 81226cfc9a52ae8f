package sdk

import (
	"time"

	"go.uber.org/zap"

	searchuc "github.com/exphub/searchcore/internal/usecase/search"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	sqlitePath string

	embedder  Embedder
	generator Generator

	dimensions      int
	hnswM           int
	hnswEFConstruct int
	keyPrefix       string
	reindexBatch    int
	wordBoundary    int

	retryCount int
	retryDelay time.Duration
	paceDelay  time.Duration

	search searchuc.Config

	logger          *zap.Logger
	registerMetrics bool
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		addrs:           []string{"localhost:6379"},
		sqlitePath:      "searchcore.db",
		dimensions:      768,
		hnswM:           16,
		hnswEFConstruct: 200,
		keyPrefix:       "searchcore:",
		reindexBatch:    50,
		wordBoundary:    3,
		retryCount:      3,
		retryDelay:      500 * time.Millisecond,
		paceDelay:       200 * time.Millisecond,
		search: searchuc.Config{
			FloorNatural:    0.55,
			FloorKeyword:    0.68,
			FloorTag:        0,
			KNNK:            50,
			KNNPool:         200,
			AuxKNNK:         30,
			AuxWeight:       0.3,
			SolutionWeight:  1.0,
			SupportWeight:   0.7,
			KeywordBoost:    2.0,
			RawBoost:        1.0,
			CandidateWindow: 100,
			DefaultLimit:    10,
			MaxLimit:        50,
		},
	}
}

// WithRedis configures the Redis connection.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedisCluster configures a clustered Redis connection.
func WithRedisCluster(addrs []string, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = addrs
		c.password = password
	})
}

// WithSQLite sets the system-of-record database path.
// Use ":memory:" for an ephemeral store.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sqlitePath = path
	})
}

// WithEmbedder sets the text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets the generative model used for query analysis and
// perspective generation.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithDimensions sets the embedding vector dimensionality. Defaults to 768.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithHNSW configures HNSW index build parameters.
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithKeyPrefix sets the Redis key namespace. Defaults to "searchcore:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithReindexBatch sets the bulk reindex batch size. Default: 50.
func WithReindexBatch(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.reindexBatch = size
	})
}

// SearchTuning overrides parts of the ranking policy. Zero fields keep
// their defaults; floors compare against normalized scores in [0,1].
type SearchTuning struct {
	FloorNatural    float64
	FloorKeyword    float64
	FloorTag        float64
	CandidateWindow int
	DefaultLimit    int
	MaxLimit        int
}

// WithSearchTuning overrides the ranking policy (score floors, candidate
// window, page limits).
func WithSearchTuning(t SearchTuning) Option {
	return optionFunc(func(c *clientConfig) {
		if t.FloorNatural > 0 {
			c.search.FloorNatural = t.FloorNatural
		}
		if t.FloorKeyword > 0 {
			c.search.FloorKeyword = t.FloorKeyword
		}
		if t.FloorTag > 0 {
			c.search.FloorTag = t.FloorTag
		}
		if t.CandidateWindow > 0 {
			c.search.CandidateWindow = t.CandidateWindow
		}
		if t.DefaultLimit > 0 {
			c.search.DefaultLimit = t.DefaultLimit
		}
		if t.MaxLimit > 0 {
			c.search.MaxLimit = t.MaxLimit
		}
	})
}

// WithLogger enables structured logging for engine operations.
// Disabled by default.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithMetrics registers engine metrics on the default Prometheus registry.
// Register at most once per process.
func WithMetrics() Option {
	return optionFunc(func(c *clientConfig) {
		c.registerMetrics = true
	})
}
