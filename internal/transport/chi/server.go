// Package chi is the HTTP API surface: the platform-facing search endpoint,
// index lifecycle hooks, and admin operations.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
	consistencyuc "github.com/exphub/searchcore/internal/usecase/consistency"
	healthuc "github.com/exphub/searchcore/internal/usecase/health"
	indexeruc "github.com/exphub/searchcore/internal/usecase/indexer"
	searchuc "github.com/exphub/searchcore/internal/usecase/search"
)

// ExperimentStore is the system-of-record contract the transport needs:
// write-through on upserts/deletes and batch reads for result hydration.
type ExperimentStore interface {
	Upsert(ctx context.Context, exp *domain.Experiment) error
	Delete(ctx context.Context, id int64) error
	GetMany(ctx context.Context, ids []int64) ([]*domain.Experiment, error)
}

// Server hosts the HTTP handlers.
type Server struct {
	search      *searchuc.Service
	indexer     *indexeruc.Service
	consistency *consistencyuc.Service
	health      *healthuc.Service
	experiments ExperimentStore
	logger      *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	indexer *indexeruc.Service,
	consistency *consistencyuc.Service,
	health *healthuc.Service,
	experiments ExperimentStore,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:      search,
		indexer:     indexer,
		consistency: consistency,
		health:      health,
		experiments: experiments,
		logger:      logger,
	}
}

// Mount registers all routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/search", s.handleSearch)
	r.Put("/experiments/{id}", s.handleUpsertExperiment)
	r.Delete("/experiments/{id}", s.handleDeleteExperiment)
	r.Post("/admin/reindex", s.handleReindex)
	r.Post("/admin/reset", s.handleReset)
	r.Get("/admin/consistency", s.handleConsistency)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

// --- Wire types ---

type searchResultItem struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	PromptText       string    `json:"promptText"`
	AIModel          string    `json:"aiModel"`
	Tags             []string  `json:"tags"`
	ReproductionRate int       `json:"reproductionRate"`
	CreatedAt        time.Time `json:"createdAt"`
	Score            float64   `json:"score"`
}

type searchResponse struct {
	Success bool               `json:"success"`
	Data    []searchResultItem `json:"data"`
	Total   int                `json:"total"`
	Mode    string             `json:"mode"`
	Error   string             `json:"error,omitempty"`
}

type experimentRequest struct {
	Title            string    `json:"title"`
	PromptText       string    `json:"promptText"`
	Description      string    `json:"description"`
	AIModel          string    `json:"aiModel"`
	Tags             []string  `json:"tags"`
	ReproductionRate int       `json:"reproductionRate"`
	CreatedAt        time.Time `json:"createdAt"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// --- Handlers ---

// handleSearch is GET /search. The engine answers with index-resident hit
// data; the response re-hydrates each hit from the system of record so the
// platform renders current field values, preserving engine order and scores.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := domain.SearchParams{
		Query:   q.Get("q"),
		Tag:     q.Get("tag"),
		AIModel: q.Get("model"),
	}
	params.MinRate, _ = strconv.Atoi(q.Get("min_rate"))
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.Limit, _ = strconv.Atoi(q.Get("limit"))

	result := s.search.Search(r.Context(), params)

	resp := searchResponse{
		Success: result.Success,
		Data:    []searchResultItem{},
		Total:   result.Total,
		Mode:    string(result.Mode),
		Error:   result.Error,
	}

	if len(result.Hits) > 0 {
		resp.Data = s.hydrate(r.Context(), result.Hits)
	}

	writeJSON(w, http.StatusOK, resp)
}

// hydrate swaps indexed field copies for the current system-of-record rows.
// Hits whose row has vanished mid-flight are dropped.
func (s *Server) hydrate(ctx context.Context, hits []domain.SearchHit) []searchResultItem {
	ids := make([]int64, 0, len(hits))
	scores := make(map[int64]float64, len(hits))
	for _, hit := range hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		scores[id] = hit.Score
	}

	exps, err := s.experiments.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn("Result hydration failed, serving indexed fields", zap.Error(err))
		return itemsFromHits(hits)
	}

	items := make([]searchResultItem, 0, len(exps))
	for _, exp := range exps {
		items = append(items, searchResultItem{
			ID:               exp.ID,
			Title:            exp.Title,
			Description:      exp.Description,
			PromptText:       exp.PromptText,
			AIModel:          exp.AIModel,
			Tags:             exp.Tags,
			ReproductionRate: exp.ReproductionRate,
			CreatedAt:        exp.CreatedAt,
			Score:            scores[exp.ID],
		})
	}
	return items
}

func itemsFromHits(hits []domain.SearchHit) []searchResultItem {
	items := make([]searchResultItem, 0, len(hits))
	for _, hit := range hits {
		id, _ := strconv.ParseInt(hit.ID, 10, 64)
		items = append(items, searchResultItem{
			ID:               id,
			Title:            hit.Title,
			Description:      hit.Description,
			PromptText:       hit.PromptText,
			AIModel:          hit.AIModel,
			Tags:             hit.Tags,
			ReproductionRate: hit.ReproductionRate,
			CreatedAt:        hit.CreatedAt,
			Score:            hit.Score,
		})
	}
	return items
}

// handleUpsertExperiment is PUT /experiments/{id}: write-through to the
// system of record, then project into the search index.
func (s *Server) handleUpsertExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req experimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	exp := &domain.Experiment{
		ID:               id,
		Title:            req.Title,
		PromptText:       req.PromptText,
		Description:      req.Description,
		AIModel:          req.AIModel,
		Tags:             req.Tags,
		ReproductionRate: req.ReproductionRate,
		CreatedAt:        req.CreatedAt,
	}

	if err := s.experiments.Upsert(r.Context(), exp); err != nil {
		s.logger.Error("Experiment upsert failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store experiment")
		return
	}

	if err := s.indexer.Index(r.Context(), exp); err != nil {
		s.logger.Error("Experiment indexing failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "stored but not indexed; run a resync")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

// handleDeleteExperiment is DELETE /experiments/{id}. Idempotent.
func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.experiments.Delete(r.Context(), id); err != nil {
		s.logger.Error("Experiment delete failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete experiment")
		return
	}
	if err := s.indexer.Delete(r.Context(), id); err != nil {
		s.logger.Error("Index delete failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "deleted but still indexed; run a resync")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

// handleReindex is POST /admin/reindex: synchronous full rebuild.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	report, err := s.consistency.Resync(r.Context())
	if err != nil {
		s.logger.Error("Reindex failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success     bool `json:"success"`
		TotalCount  int  `json:"totalCount"`
		SyncedCount int  `json:"syncedCount"`
		ErrorCount  int  `json:"errorCount"`
	}{true, report.TotalCount, report.SyncedCount, report.ErrorCount})
}

// handleReset is POST /admin/reset: drop and recreate the empty schema.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Reset(r.Context()); err != nil {
		s.logger.Error("Index reset failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

// handleConsistency is GET /admin/consistency?sample=N.
func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	sample, _ := strconv.Atoi(r.URL.Query().Get("sample"))
	if sample <= 0 {
		sample = 10
	}

	report, err := s.consistency.Verify(r.Context(), sample)
	if err != nil {
		s.logger.Error("Consistency check failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type checkItem struct {
		ID         string   `json:"id"`
		Pass       bool     `json:"pass"`
		Mismatches []string `json:"mismatches,omitempty"`
	}
	checks := make([]checkItem, 0, len(report.Checks))
	for _, c := range report.Checks {
		checks = append(checks, checkItem{ID: c.ID, Pass: c.Pass, Mismatches: c.Mismatches})
	}

	writeJSON(w, http.StatusOK, struct {
		Pass            bool        `json:"pass"`
		RelationalCount int         `json:"relationalCount"`
		IndexCount      int         `json:"indexCount"`
		CountMatch      bool        `json:"countMatch"`
		Checks          []checkItem `json:"checks"`
	}{report.Pass(), report.RelationalCount, report.IndexCount, report.CountMatch, checks})
}

// handleHealth is GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, struct {
		Status string                          `json:"status"`
		Checks map[string]healthuc.CheckResult `json:"checks"`
	}{string(report.Status), report.Checks})
}

// --- Helpers ---

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid experiment id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Success: false, Error: msg})
}
