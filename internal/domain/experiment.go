package domain

import "time"

// Experiment is the system-of-record projection the search subsystem consumes:
// an experiment with its currently active version flattened in. The relational
// store owns the authoritative copy; every search document can be regenerated
// from one of these.
type Experiment struct {
	ID               int64
	Title            string
	PromptText       string
	Description      string
	AIModel          string
	Tags             []string
	ReproductionRate int
	CreatedAt        time.Time
}
