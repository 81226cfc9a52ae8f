package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the searchcore service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Relational RelationalConfig `yaml:"relational"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Search     SearchConfig     `yaml:"search"`
	Index      IndexConfig      `yaml:"index"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds search store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RelationalConfig holds system-of-record settings.
type RelationalConfig struct {
	Path string `yaml:"path"` // sqlite database file
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Driver       string `yaml:"driver"` // gemini, openai (default: gemini)
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"` // openai driver only
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	RetryCount   int    `yaml:"retry_count"`
	RetryDelayMS int    `yaml:"retry_delay_ms"` // backoff base, doubled per attempt
	PaceDelayMS  int    `yaml:"pace_delay_ms"`  // min gap between indexing embed calls
}

// GenerationConfig holds generative model settings for query analysis and
// perspective generation.
type GenerationConfig struct {
	APIKey string `yaml:"api_key"` // defaults to embedding.api_key
	Model  string `yaml:"model"`
}

// SearchConfig holds the ranking policy. The floors are empirical tuning
// constants, deliberately exposed instead of hard-coded at call sites.
type SearchConfig struct {
	FloorNatural    float64 `yaml:"floor_natural"`
	FloorKeyword    float64 `yaml:"floor_keyword"`
	FloorTag        float64 `yaml:"floor_tag"`
	WordBoundary    int     `yaml:"word_boundary"` // >= this many words is a natural-language query
	KNNK            int     `yaml:"knn_k"`
	KNNPool         int     `yaml:"knn_pool"`
	AuxKNNK         int     `yaml:"aux_knn_k"`
	AuxWeight       float64 `yaml:"aux_weight"`
	SolutionWeight  float64 `yaml:"solution_weight"`
	SupportWeight   float64 `yaml:"support_weight"` // problem + tech perspectives
	KeywordBoost    float64 `yaml:"keyword_boost"`  // analyzer keywords vs raw query
	RawBoost        float64 `yaml:"raw_boost"`
	CandidateWindow int     `yaml:"candidate_window"` // in-memory pagination window
	DefaultLimit    int     `yaml:"default_limit"`
	MaxLimit        int     `yaml:"max_limit"`
}

// IndexConfig holds index schema and reindex settings.
type IndexConfig struct {
	KeyPrefix       string `yaml:"key_prefix"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	ReindexBatch    int    `yaml:"reindex_batch"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Relational.Path == "" {
		c.Relational.Path = "searchcore.db"
	}
	if c.Embedding.Driver == "" {
		c.Embedding.Driver = "gemini"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "gemini-embedding-001"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.RetryCount <= 0 {
		c.Embedding.RetryCount = 3
	}
	if c.Embedding.RetryDelayMS <= 0 {
		c.Embedding.RetryDelayMS = 500
	}
	if c.Embedding.PaceDelayMS <= 0 {
		c.Embedding.PaceDelayMS = 200
	}
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = c.Embedding.APIKey
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gemini-2.0-flash"
	}
	c.Search.applyDefaults()
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "searchcore:"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.ReindexBatch <= 0 {
		c.Index.ReindexBatch = 50
	}
}

func (s *SearchConfig) applyDefaults() {
	if s.FloorNatural <= 0 {
		s.FloorNatural = 0.55
	}
	if s.FloorKeyword <= 0 {
		s.FloorKeyword = 0.68
	}
	// FloorTag stays 0: tag browsing is precision-free, recency governs order.
	if s.WordBoundary <= 0 {
		s.WordBoundary = 3
	}
	if s.KNNK <= 0 {
		s.KNNK = 50
	}
	if s.KNNPool <= 0 {
		s.KNNPool = 200
	}
	if s.AuxKNNK <= 0 {
		s.AuxKNNK = 30
	}
	if s.AuxWeight <= 0 {
		s.AuxWeight = 0.3
	}
	if s.SolutionWeight <= 0 {
		s.SolutionWeight = 1.0
	}
	if s.SupportWeight <= 0 {
		s.SupportWeight = 0.7
	}
	if s.KeywordBoost <= 0 {
		s.KeywordBoost = 2.0
	}
	if s.RawBoost <= 0 {
		s.RawBoost = 1.0
	}
	if s.CandidateWindow <= 0 {
		s.CandidateWindow = 100
	}
	if s.DefaultLimit <= 0 {
		s.DefaultLimit = 10
	}
	if s.MaxLimit <= 0 {
		s.MaxLimit = 50
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Embedding.Driver {
	case "gemini", "openai":
	default:
		return fmt.Errorf("embedding.driver must be \"gemini\" or \"openai\", got %q", c.Embedding.Driver)
	}
	if c.Embedding.Driver == "openai" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required for the openai driver")
	}
	if c.Search.FloorNatural > 1 || c.Search.FloorKeyword > 1 || c.Search.FloorTag > 1 {
		return fmt.Errorf("search floors are normalized scores and must not exceed 1")
	}
	if c.Search.FloorTag < 0 {
		return fmt.Errorf("search.floor_tag must not be negative")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
