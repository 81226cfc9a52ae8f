// Package search is the hybrid retrieval engine: mode selection, weighted
// merging of vector and lexical sub-queries, score normalization, and
// relevance floors.
package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/metrics"
)

// Config is the ranking policy. Floors and weights arrive from
// configuration; the engine never hard-codes them at call sites.
type Config struct {
	FloorNatural float64
	FloorKeyword float64
	FloorTag     float64

	KNNK    int
	KNNPool int

	AuxKNNK   int
	AuxWeight float64

	SolutionWeight float64
	SupportWeight  float64

	KeywordBoost float64
	RawBoost     float64

	CandidateWindow int
	DefaultLimit    int
	MaxLimit        int
}

// minQueryLength is the short-query guard: anything shorter returns empty
// without touching the store.
const minQueryLength = 2

// Service executes hybrid searches.
type Service struct {
	repo     Repository
	analyzer Analyzer
	embed    Embedder
	cfg      Config
	logger   *zap.Logger
}

// New creates the search engine.
func New(repo Repository, analyzer Analyzer, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	return &Service{repo: repo, analyzer: analyzer, embed: embed, cfg: cfg, logger: logger}
}

// Search runs one search request. It never returns an error: store and
// provider failures degrade to an empty unsuccessful response, because a
// broken search box must not take the platform page down with it.
func (s *Service) Search(ctx context.Context, params domain.SearchParams) domain.SearchResponse {
	start := time.Now()

	params = s.normalizeParams(params)
	query := strings.TrimSpace(params.Query)
	filter := buildFilter(params)

	var resp domain.SearchResponse
	switch {
	case params.Tag != "":
		// A tag always selects browse; any query text narrows it lexically.
		resp = s.browseTag(ctx, query, filter, params)
	case len([]rune(query)) < minQueryLength:
		// Too short to mean anything: empty success, no store round-trip.
		resp = domain.SearchResponse{Mode: domain.ModeKeyword, Success: true}
	case s.analyzer.Natural(query):
		resp = s.searchNatural(ctx, query, filter, params)
	default:
		resp = s.searchKeyword(ctx, query, filter, params)
	}

	status := "success"
	if !resp.Success {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(resp.Mode), status).Inc()
	metrics.SearchRequestDuration.WithLabelValues(string(resp.Mode)).
		Observe(time.Since(start).Seconds())

	return resp
}

func (s *Service) normalizeParams(params domain.SearchParams) domain.SearchParams {
	if params.Limit <= 0 {
		params.Limit = s.cfg.DefaultLimit
	}
	if params.Limit > s.cfg.MaxLimit {
		params.Limit = s.cfg.MaxLimit
	}
	if params.Page < 1 {
		params.Page = 1
	}
	return params
}

// buildFilter converts request parameters into the hard admission filter.
// "All" is the platform's wildcard model selector.
func buildFilter(params domain.SearchParams) domain.SearchFilter {
	f := domain.SearchFilter{Tag: params.Tag}
	if params.AIModel != "" && params.AIModel != "All" {
		f.AIModel = params.AIModel
	}
	if params.MinRate > 0 {
		f.MinRate = params.MinRate
	}
	return f
}

// browseTag lists a tag's documents newest first. Query text, when present,
// narrows the listing lexically; the floor is zero and recency governs order.
func (s *Service) browseTag(
	ctx context.Context, query string, filter domain.SearchFilter, params domain.SearchParams,
) domain.SearchResponse {
	hits, err := s.repo.BrowseRecent(ctx, query, filter, s.cfg.CandidateWindow)
	if err != nil {
		return s.degrade(domain.ModeTagBrowse, err)
	}

	hits = filterByFloor(hits, s.cfg.FloorTag)
	return paginate(hits, params, domain.ModeTagBrowse)
}

// searchNatural handles multi-word queries: analyzer keywords, one query
// embedding, per-perspective KNN OR-combined with two-tier lexical. If the
// query embedding fails, the engine drops to pure lexical (keyword_fallback)
// rather than failing the request.
func (s *Service) searchNatural(
	ctx context.Context, query string, filter domain.SearchFilter, params domain.SearchParams,
) domain.SearchResponse {
	analysis := s.analyzer.Analyze(ctx, query)
	lexical := domain.LexicalQuery{
		Primary:         strings.Join(analysis.Keywords, " "),
		PrimaryWeight:   s.cfg.KeywordBoost,
		Secondary:       query,
		SecondaryWeight: s.cfg.RawBoost,
	}

	embedding, err := s.embed.Embed(ctx, analysis.ExpandedQuery)
	if err != nil {
		s.logger.Warn("Query embedding failed, falling back to lexical search",
			zap.Error(err))
		return s.searchLexicalOnly(ctx, lexical, filter, params)
	}

	merged := newMerger()

	for _, slot := range domain.PerspectiveSlots {
		weight := s.cfg.SupportWeight
		if slot == domain.SlotSolution {
			weight = s.cfg.SolutionWeight
		}

		hits, err := s.repo.SearchVector(ctx, slot, embedding.Vector, s.cfg.KNNK, s.cfg.KNNPool, filter)
		if err != nil {
			return s.degrade(domain.ModeNaturalLanguage, err)
		}
		merged.add(hits, weight)
	}

	lexHits, err := s.repo.SearchLexical(ctx, lexical, filter, s.cfg.CandidateWindow)
	if err != nil {
		return s.degrade(domain.ModeNaturalLanguage, err)
	}
	merged.add(lexHits, s.cfg.RawBoost)

	hits := filterByFloor(merged.ranked(s.cfg.CandidateWindow), s.cfg.FloorNatural)
	return paginate(hits, params, domain.ModeNaturalLanguage)
}

// searchKeyword handles short queries: dominant title-heavy lexical match,
// plus a low-weight auxiliary KNN pass when the raw query embeds cleanly.
func (s *Service) searchKeyword(
	ctx context.Context, query string, filter domain.SearchFilter, params domain.SearchParams,
) domain.SearchResponse {
	lexical := domain.LexicalQuery{
		Primary:       query,
		PrimaryWeight: s.cfg.RawBoost,
		TitleHeavy:    true,
	}

	merged := newMerger()

	lexHits, err := s.repo.SearchLexical(ctx, lexical, filter, s.cfg.CandidateWindow)
	if err != nil {
		return s.degrade(domain.ModeKeyword, err)
	}
	merged.add(lexHits, 1.0)

	// The auxiliary semantic pass is advisory: an embed failure just skips it.
	if embedding, err := s.embed.Embed(ctx, query); err == nil {
		auxHits, err := s.repo.SearchVector(ctx, domain.SlotSolution, embedding.Vector,
			s.cfg.AuxKNNK, s.cfg.KNNPool, filter)
		if err != nil {
			return s.degrade(domain.ModeKeyword, err)
		}
		merged.add(auxHits, s.cfg.AuxWeight)
	} else {
		s.logger.Debug("Auxiliary embedding failed, lexical-only keyword search",
			zap.Error(err))
	}

	hits := filterByFloor(merged.ranked(s.cfg.CandidateWindow), s.cfg.FloorKeyword)
	return paginate(hits, params, domain.ModeKeyword)
}

// searchLexicalOnly is the degraded path for a failed query embedding.
func (s *Service) searchLexicalOnly(
	ctx context.Context, lexical domain.LexicalQuery, filter domain.SearchFilter, params domain.SearchParams,
) domain.SearchResponse {
	lexHits, err := s.repo.SearchLexical(ctx, lexical, filter, s.cfg.CandidateWindow)
	if err != nil {
		return s.degrade(domain.ModeKeywordFallback, err)
	}

	merged := newMerger()
	merged.add(lexHits, 1.0)

	hits := filterByFloor(merged.ranked(s.cfg.CandidateWindow), s.cfg.FloorNatural)
	return paginate(hits, params, domain.ModeKeywordFallback)
}

func (s *Service) degrade(mode domain.SearchMode, err error) domain.SearchResponse {
	s.logger.Error("Search degraded to empty response",
		zap.String("mode", string(mode)), zap.Error(err))
	return domain.SearchResponse{Mode: mode, Success: false, Error: err.Error()}
}

// --- Merging and ranking ---

// merger accumulates weighted raw scores per document across sub-queries.
type merger struct {
	scores map[string]float64
	hits   map[string]domain.SearchHit
	order  []string
}

func newMerger() *merger {
	return &merger{
		scores: make(map[string]float64),
		hits:   make(map[string]domain.SearchHit),
	}
}

func (m *merger) add(hits []domain.SearchHit, weight float64) {
	for _, hit := range hits {
		if _, seen := m.hits[hit.ID]; !seen {
			m.hits[hit.ID] = hit
			m.order = append(m.order, hit.ID)
		}
		m.scores[hit.ID] += weight * hit.Score
	}
}

// ranked normalizes every accumulated score by the batch maximum, so the
// top hit is exactly 1.0 before floor filtering, and returns hits sorted
// by score descending, capped at window.
func (m *merger) ranked(window int) []domain.SearchHit {
	if len(m.order) == 0 {
		return nil
	}

	var max float64
	for _, score := range m.scores {
		if score > max {
			max = score
		}
	}

	hits := make([]domain.SearchHit, 0, len(m.order))
	for _, id := range m.order {
		hit := m.hits[id]
		if max > 0 {
			hit.Score = m.scores[id] / max
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})

	if len(hits) > window {
		hits = hits[:window]
	}
	return hits
}

func filterByFloor(hits []domain.SearchHit, floor float64) []domain.SearchHit {
	if floor <= 0 {
		return hits
	}
	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Score >= floor {
			filtered = append(filtered, hit)
		}
	}
	return filtered
}

// paginate slices the post-floor candidate list in memory. Total is the
// post-floor count, so the platform can render page controls.
func paginate(hits []domain.SearchHit, params domain.SearchParams, mode domain.SearchMode) domain.SearchResponse {
	total := len(hits)

	start := (params.Page - 1) * params.Limit
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}

	return domain.SearchResponse{
		Hits:    hits[start:end],
		Total:   total,
		Mode:    mode,
		Success: true,
	}
}
