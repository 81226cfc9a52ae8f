package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_UnknownEmbeddingDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Driver = "cohere"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown embedding driver")
	}
	expected := `embedding.driver must be "gemini" or "openai", got "cohere"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_OpenAIDriverRequiresBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Driver = "openai"
	cfg.Embedding.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for openai driver without base_url")
	}
}

func TestValidate_FloorAboveOne(t *testing.T) {
	cfg := validConfig()
	cfg.Search.FloorKeyword = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for floor above 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{APIKey: "k"},
	}
	cfg.ApplyDefaults()

	if cfg.Embedding.Driver != "gemini" {
		t.Errorf("embedding driver = %q, want gemini", cfg.Embedding.Driver)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("dimensions = %d, want 768", cfg.Embedding.Dimensions)
	}
	if cfg.Generation.APIKey != "k" {
		t.Errorf("generation api key should default to embedding api key, got %q", cfg.Generation.APIKey)
	}
	if cfg.Search.FloorNatural != 0.55 {
		t.Errorf("floor_natural = %v, want 0.55", cfg.Search.FloorNatural)
	}
	if cfg.Search.FloorKeyword != 0.68 {
		t.Errorf("floor_keyword = %v, want 0.68", cfg.Search.FloorKeyword)
	}
	if cfg.Search.FloorTag != 0 {
		t.Errorf("floor_tag = %v, want 0", cfg.Search.FloorTag)
	}
	if cfg.Search.WordBoundary != 3 {
		t.Errorf("word_boundary = %d, want 3", cfg.Search.WordBoundary)
	}
	if cfg.Search.CandidateWindow != 100 {
		t.Errorf("candidate_window = %d, want 100", cfg.Search.CandidateWindow)
	}
	if cfg.Index.ReindexBatch != 50 {
		t.Errorf("reindex_batch = %d, want 50", cfg.Index.ReindexBatch)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("SEARCHCORE_TEST_KEY", "secret")
	defer os.Unsetenv("SEARCHCORE_TEST_KEY")

	in := []byte("api_key: ${SEARCHCORE_TEST_KEY}\nmodel: ${SEARCHCORE_TEST_MODEL:-gemini-embedding-001}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: gemini-embedding-001\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
