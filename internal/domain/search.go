package domain

import "time"

// SearchMode identifies the retrieval strategy chosen for a query.
type SearchMode string

const (
	// ModeTagBrowse lists documents carrying a tag, newest first.
	ModeTagBrowse SearchMode = "tag_browse"
	// ModeNaturalLanguage combines per-perspective KNN with boosted lexical matching.
	ModeNaturalLanguage SearchMode = "natural_language"
	// ModeKeyword is lexical-first matching for short queries.
	ModeKeyword SearchMode = "keyword"
	// ModeKeywordFallback is pure lexical matching after a failed query embedding.
	ModeKeywordFallback SearchMode = "keyword_fallback"
)

// SearchParams is one search call from the platform.
type SearchParams struct {
	Query   string
	Tag     string
	AIModel string // "" or "All" means no model filter
	MinRate int    // 0 means no rate filter
	Page    int
	Limit   int
}

// SearchFilter is the hard admission constraint applied to every sub-query.
// Filters never participate in scoring.
type SearchFilter struct {
	AIModel string
	Tag     string
	MinRate int
}

// IsZero reports whether no filter is set.
func (f SearchFilter) IsZero() bool {
	return f.AIModel == "" && f.Tag == "" && f.MinRate == 0
}

// LexicalQuery is a two-tier weighted text match: Primary (usually the
// analyzer-extracted keywords) OR Secondary (the raw query) so either signal
// can surface a hit. TitleHeavy biases matching strongly toward the title,
// used for short keyword queries.
type LexicalQuery struct {
	Primary         string
	PrimaryWeight   float64
	Secondary       string
	SecondaryWeight float64
	TitleHeavy      bool
}

// SearchHit is one ranked result. Score is normalized into [0,1] against the
// best raw score of the batch; the top hit is exactly 1.0 before floor
// filtering.
type SearchHit struct {
	ID               string
	Title            string
	Description      string
	PromptText       string
	AIModel          string
	Tags             []string
	ReproductionRate int
	CreatedAt        time.Time
	Score            float64
}

// SearchResponse is the engine's answer. Store failures degrade to
// Success=false with an empty hit list rather than an error: search is
// advisory, not authoritative.
type SearchResponse struct {
	Hits    []SearchHit
	Total   int
	Mode    SearchMode
	Success bool
	Error   string
}

// QueryAnalysis is the per-request classification of a natural-language query.
// Never persisted.
type QueryAnalysis struct {
	Keywords      []string
	Intent        string
	ExpandedQuery string
}
