package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
	consistencyuc "github.com/exphub/searchcore/internal/usecase/consistency"
	healthuc "github.com/exphub/searchcore/internal/usecase/health"
	indexeruc "github.com/exphub/searchcore/internal/usecase/indexer"
	searchuc "github.com/exphub/searchcore/internal/usecase/search"
)

// --- Mocks ---

type mockSearchRepo struct {
	lexicalHits []domain.SearchHit
}

func (m *mockSearchRepo) SearchVector(
	_ context.Context, _ domain.PerspectiveSlot, _ []float32,
	_, _ int, _ domain.SearchFilter,
) ([]domain.SearchHit, error) {
	return nil, nil
}

func (m *mockSearchRepo) SearchLexical(
	_ context.Context, _ domain.LexicalQuery, _ domain.SearchFilter, _ int,
) ([]domain.SearchHit, error) {
	return m.lexicalHits, nil
}

func (m *mockSearchRepo) BrowseRecent(
	_ context.Context, _ string, _ domain.SearchFilter, _ int,
) ([]domain.SearchHit, error) {
	return nil, nil
}

type mockAnalyzer struct{}

func (mockAnalyzer) Natural(query string) bool { return len(strings.Fields(query)) >= 3 }

func (mockAnalyzer) Analyze(_ context.Context, query string) domain.QueryAnalysis {
	return domain.QueryAnalysis{Keywords: []string{"kw"}, Intent: "search", ExpandedQuery: query}
}

type mockEmbedder struct{}

func (mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("no embedding in tests")
}

type mockIndexRepo struct {
	upserts int
	deletes []string
	resets  int
}

func (m *mockIndexRepo) Upsert(_ context.Context, _ *domain.SearchDocument) error {
	m.upserts++
	return nil
}
func (m *mockIndexRepo) BulkUpsert(_ context.Context, _ []*domain.SearchDocument) error { return nil }
func (m *mockIndexRepo) Delete(_ context.Context, id string) error {
	m.deletes = append(m.deletes, id)
	return nil
}
func (m *mockIndexRepo) Reset(_ context.Context) error {
	m.resets++
	return nil
}

type mockPersp struct{}

func (mockPersp) Generate(_ context.Context, exp *domain.Experiment) domain.Perspectives {
	return domain.Perspectives{Problem: exp.Title, Tech: exp.AIModel, Solution: exp.Title}
}

type mockExperiments struct {
	rows      map[int64]*domain.Experiment
	deleted   []int64
	upsertErr error
}

func (m *mockExperiments) Upsert(_ context.Context, exp *domain.Experiment) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.rows == nil {
		m.rows = map[int64]*domain.Experiment{}
	}
	m.rows[exp.ID] = exp
	return nil
}

func (m *mockExperiments) Delete(_ context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockExperiments) GetMany(_ context.Context, ids []int64) ([]*domain.Experiment, error) {
	var out []*domain.Experiment
	for _, id := range ids {
		if exp, ok := m.rows[id]; ok {
			out = append(out, exp)
		}
	}
	return out, nil
}

func (m *mockExperiments) ListAfter(_ context.Context, _ int64, _ int) ([]*domain.Experiment, error) {
	return nil, nil
}
func (m *mockExperiments) Count(_ context.Context) (int, error)  { return len(m.rows), nil }
func (m *mockExperiments) Sample(_ context.Context, _ int) ([]*domain.Experiment, error) {
	return nil, nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockIndexReader struct{}

func (mockIndexReader) Count(_ context.Context) (int, error) { return 0, nil }
func (mockIndexReader) Get(_ context.Context, _ string) (*domain.SearchDocument, error) {
	return nil, domain.ErrNotFound
}

// --- Fixture ---

type fixture struct {
	router      chi.Router
	indexRepo   *mockIndexRepo
	experiments *mockExperiments
	storePing   *mockPinger
}

func newFixture(lexicalHits []domain.SearchHit) *fixture {
	logger := zap.NewNop()
	indexRepo := &mockIndexRepo{}
	experiments := &mockExperiments{rows: map[int64]*domain.Experiment{}}
	storePing := &mockPinger{}

	searchCfg := searchuc.Config{
		FloorNatural: 0.55, FloorKeyword: 0.68,
		KNNK: 50, KNNPool: 200, AuxKNNK: 30, AuxWeight: 0.3,
		SolutionWeight: 1.0, SupportWeight: 0.7,
		KeywordBoost: 2.0, RawBoost: 1.0,
		CandidateWindow: 100, DefaultLimit: 10, MaxLimit: 50,
	}

	searchSvc := searchuc.New(&mockSearchRepo{lexicalHits: lexicalHits},
		mockAnalyzer{}, mockEmbedder{}, searchCfg, logger)
	indexerSvc := indexeruc.New(indexRepo, experiments, mockPersp{}, mockEmbedder{}, 50, logger)
	consistencySvc := consistencyuc.New(indexerSvc, experiments, mockIndexReader{}, 4, logger)
	healthSvc := healthuc.New(storePing, &mockPinger{}, nil)

	server := NewServer(searchSvc, indexerSvc, consistencySvc, healthSvc, experiments, logger)
	r := chi.NewRouter()
	server.Mount(r)

	return &fixture{router: r, indexRepo: indexRepo, experiments: experiments, storePing: storePing}
}

func doRequest(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandleSearch_HydratesFromSystemOfRecord(t *testing.T) {
	f := newFixture([]domain.SearchHit{
		{ID: "2", Title: "stale title", Score: 4.0},
		{ID: "1", Title: "stale too", Score: 4.0},
	})
	f.experiments.rows[1] = &domain.Experiment{ID: 1, Title: "fresh one", CreatedAt: time.Unix(1, 0)}
	f.experiments.rows[2] = &domain.Experiment{ID: 2, Title: "fresh two", CreatedAt: time.Unix(2, 0)}

	rec := doRequest(t, f.router, http.MethodGet, "/search?q=sql+injection", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Mode != "keyword" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("total=%d len=%d", resp.Total, len(resp.Data))
	}
	if resp.Data[0].Title != "fresh two" {
		t.Errorf("first hit title = %q, want hydrated row in engine order", resp.Data[0].Title)
	}
	if resp.Data[0].Score != 1.0 {
		t.Errorf("score = %f, want normalized 1.0", resp.Data[0].Score)
	}
}

func TestHandleSearch_EmptyQueryIsSuccess(t *testing.T) {
	f := newFixture(nil)

	rec := doRequest(t, f.router, http.MethodGet, "/search?q=", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp searchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Total != 0 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Data == nil {
		t.Error("data must serialize as [] rather than null")
	}
}

func TestHandleUpsertExperiment(t *testing.T) {
	f := newFixture(nil)

	body := `{"title": "New experiment", "promptText": "p", "aiModel": "GPT-4", "reproductionRate": 80}`
	rec := doRequest(t, f.router, http.MethodPut, "/experiments/42", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if f.experiments.rows[42] == nil {
		t.Fatal("experiment not persisted")
	}
	if f.indexRepo.upserts != 1 {
		t.Errorf("index upserts = %d, want 1", f.indexRepo.upserts)
	}
}

func TestHandleUpsertExperiment_Validation(t *testing.T) {
	f := newFixture(nil)

	cases := []struct {
		path string
		body string
	}{
		{"/experiments/abc", `{"title": "t"}`},
		{"/experiments/0", `{"title": "t"}`},
		{"/experiments/1", `not json`},
		{"/experiments/1", `{"title": ""}`},
	}
	for _, tc := range cases {
		rec := doRequest(t, f.router, http.MethodPut, tc.path, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, want 400", tc.path, tc.body, rec.Code)
		}
	}
}

func TestHandleDeleteExperiment(t *testing.T) {
	f := newFixture(nil)

	rec := doRequest(t, f.router, http.MethodDelete, "/experiments/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.experiments.deleted) != 1 || f.experiments.deleted[0] != 7 {
		t.Errorf("deleted = %v", f.experiments.deleted)
	}
	if len(f.indexRepo.deletes) != 1 || f.indexRepo.deletes[0] != "7" {
		t.Errorf("index deletes = %v", f.indexRepo.deletes)
	}
}

func TestHandleReindexAndReset(t *testing.T) {
	f := newFixture(nil)

	rec := doRequest(t, f.router, http.MethodPost, "/admin/reindex", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reindex status = %d", rec.Code)
	}

	rec = doRequest(t, f.router, http.MethodPost, "/admin/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if f.indexRepo.resets != 1 {
		t.Errorf("resets = %d", f.indexRepo.resets)
	}
}

func TestHandleConsistency(t *testing.T) {
	f := newFixture(nil)

	rec := doRequest(t, f.router, http.MethodGet, "/admin/consistency?sample=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Pass       bool `json:"pass"`
		CountMatch bool `json:"countMatch"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.CountMatch {
		t.Errorf("empty store and index should match: %s", rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(nil)

	rec := doRequest(t, f.router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	f.storePing.err = errors.New("down")
	rec = doRequest(t, f.router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", rec.Code)
	}
}

func TestHandleSearch_ParamParsing(t *testing.T) {
	hits := make([]domain.SearchHit, 30)
	for i := range hits {
		hits[i] = domain.SearchHit{ID: strconv.Itoa(i + 1), Score: 4.0}
	}
	f := newFixture(hits)
	for i := 1; i <= 30; i++ {
		f.experiments.rows[int64(i)] = &domain.Experiment{ID: int64(i), Title: "t"}
	}

	rec := doRequest(t, f.router, http.MethodGet,
		"/search?q=sql+injection&page=2&limit=10&model=All&min_rate=0", "")

	var resp searchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 30 {
		t.Errorf("total = %d", resp.Total)
	}
	if len(resp.Data) != 10 {
		t.Errorf("page len = %d, want 10", len(resp.Data))
	}
}
