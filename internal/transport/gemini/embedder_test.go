package gemini

import "testing"

func TestEmbedContentConfig(t *testing.T) {
	cfg := embedContentConfig(768)

	if cfg.TaskType != "SEMANTIC_SIMILARITY" {
		t.Errorf("task type = %q, want SEMANTIC_SIMILARITY", cfg.TaskType)
	}
	if cfg.OutputDimensionality == nil {
		t.Fatal("output dimensionality must be set when dimensions are configured")
	}
	if *cfg.OutputDimensionality != 768 {
		t.Errorf("output dimensionality = %d, want 768", *cfg.OutputDimensionality)
	}
}

func TestEmbedContentConfig_ZeroDimensions(t *testing.T) {
	cfg := embedContentConfig(0)

	if cfg.OutputDimensionality != nil {
		t.Errorf("output dimensionality = %d, want unset for zero config", *cfg.OutputDimensionality)
	}
}
