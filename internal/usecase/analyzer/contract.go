package analyzer

import "context"

// Generator produces free-form model text for query analysis.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
