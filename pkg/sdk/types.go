package sdk

import (
	"time"

	"github.com/exphub/searchcore/internal/domain"
)

// Experiment is one prompt experiment with its active version flattened in.
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

// SearchParams is one search call.
type SearchParams struct {
	Query   string
	Tag     string
	AIModel string // "" or "All" means no model filter
	MinRate int    // 0 means no rate filter
	Page    int
	Limit   int
}

// SearchHit is one ranked result. Score is normalized into [0,1] against the
// best raw score of the batch.
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
// Success=false with an empty hit list.
type SearchResponse struct {
	Hits    []SearchHit
	Total   int
	Mode    string
	Success bool
	Error   string
}

// ReindexReport summarizes one bulk reindex run.
type ReindexReport struct {
	TotalCount  int
	SyncedCount int
	ErrorCount  int
}

// FieldCheck is the per-document outcome of a consistency sample.
type FieldCheck struct {
	ID         string
	Pass       bool
	Mismatches []string
}

// ConsistencyReport compares the system of record against the search index.
type ConsistencyReport struct {
	RelationalCount int
	IndexCount      int
	CountMatch      bool
	Checks          []FieldCheck
}

// Pass reports whether the counts match and every sampled document checked out.
func (r ConsistencyReport) Pass() bool {
	if !r.CountMatch {
		return false
	}
	for _, c := range r.Checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// --- Converters between public and internal representations ---

func toDomainExperiment(e Experiment) *domain.Experiment {
	return &domain.Experiment{
		ID:               e.ID,
		Title:            e.Title,
		PromptText:       e.PromptText,
		Description:      e.Description,
		AIModel:          e.AIModel,
		Tags:             e.Tags,
		ReproductionRate: e.ReproductionRate,
		CreatedAt:        e.CreatedAt,
	}
}

func fromDomainExperiment(e *domain.Experiment) Experiment {
	return Experiment{
		ID:               e.ID,
		Title:            e.Title,
		PromptText:       e.PromptText,
		Description:      e.Description,
		AIModel:          e.AIModel,
		Tags:             e.Tags,
		ReproductionRate: e.ReproductionRate,
		CreatedAt:        e.CreatedAt,
	}
}

func toDomainParams(p SearchParams) domain.SearchParams {
	return domain.SearchParams{
		Query:   p.Query,
		Tag:     p.Tag,
		AIModel: p.AIModel,
		MinRate: p.MinRate,
		Page:    p.Page,
		Limit:   p.Limit,
	}
}

func fromDomainResponse(r domain.SearchResponse) SearchResponse {
	hits := make([]SearchHit, 0, len(r.Hits))
	for _, h := range r.Hits {
		hits = append(hits, SearchHit{
			ID:               h.ID,
			Title:            h.Title,
			Description:      h.Description,
			PromptText:       h.PromptText,
			AIModel:          h.AIModel,
			Tags:             h.Tags,
			ReproductionRate: h.ReproductionRate,
			CreatedAt:        h.CreatedAt,
			Score:            h.Score,
		})
	}
	return SearchResponse{
		Hits:    hits,
		Total:   r.Total,
		Mode:    string(r.Mode),
		Success: r.Success,
		Error:   r.Error,
	}
}

func fromDomainReindex(r domain.ReindexReport) ReindexReport {
	return ReindexReport{
		TotalCount:  r.TotalCount,
		SyncedCount: r.SyncedCount,
		ErrorCount:  r.ErrorCount,
	}
}

func fromDomainConsistency(r domain.ConsistencyReport) ConsistencyReport {
	checks := make([]FieldCheck, 0, len(r.Checks))
	for _, c := range r.Checks {
		checks = append(checks, FieldCheck{ID: c.ID, Pass: c.Pass, Mismatches: c.Mismatches})
	}
	return ConsistencyReport{
		RelationalCount: r.RelationalCount,
		IndexCount:      r.IndexCount,
		CountMatch:      r.CountMatch,
		Checks:          checks,
	}
}
