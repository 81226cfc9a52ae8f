package search

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
)

type vectorCall struct {
	slot   domain.PerspectiveSlot
	k      int
	filter domain.SearchFilter
}

type mockRepo struct {
	vectorHits   map[domain.PerspectiveSlot][]domain.SearchHit
	lexicalHits  []domain.SearchHit
	browseHits   []domain.SearchHit
	vectorErr    error
	lexicalErr   error
	browseErr    error
	vectorCalls   []vectorCall
	lexicalCalls  []domain.LexicalQuery
	browseCalls   int
	browseQueries []string
	browseFilters []domain.SearchFilter
}

func (m *mockRepo) SearchVector(
	_ context.Context, slot domain.PerspectiveSlot, _ []float32,
	k, _ int, filter domain.SearchFilter,
) ([]domain.SearchHit, error) {
	m.vectorCalls = append(m.vectorCalls, vectorCall{slot: slot, k: k, filter: filter})
	if m.vectorErr != nil {
		return nil, m.vectorErr
	}
	return m.vectorHits[slot], nil
}

func (m *mockRepo) SearchLexical(
	_ context.Context, q domain.LexicalQuery, _ domain.SearchFilter, _ int,
) ([]domain.SearchHit, error) {
	m.lexicalCalls = append(m.lexicalCalls, q)
	if m.lexicalErr != nil {
		return nil, m.lexicalErr
	}
	return m.lexicalHits, nil
}

func (m *mockRepo) BrowseRecent(
	_ context.Context, query string, filter domain.SearchFilter, _ int,
) ([]domain.SearchHit, error) {
	m.browseCalls++
	m.browseQueries = append(m.browseQueries, query)
	m.browseFilters = append(m.browseFilters, filter)
	if m.browseErr != nil {
		return nil, m.browseErr
	}
	return m.browseHits, nil
}

type mockAnalyzer struct {
	boundary int
}

func (m mockAnalyzer) Natural(query string) bool {
	words := 0
	inWord := false
	for _, r := range query {
		if r == ' ' {
			inWord = false
		} else if !inWord {
			words++
			inWord = true
		}
	}
	b := m.boundary
	if b == 0 {
		b = 3
	}
	return words >= b
}

func (m mockAnalyzer) Analyze(_ context.Context, query string) domain.QueryAnalysis {
	return domain.QueryAnalysis{
		Keywords:      []string{"kw1", "kw2"},
		Intent:        "search",
		ExpandedQuery: "expanded " + query,
	}
}

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Vector: []float32{0.1, 0.2}}, nil
}

func hit(id string, score float64) domain.SearchHit {
	n, _ := strconv.Atoi(id)
	return domain.SearchHit{
		ID:        id,
		Title:     "hit " + id,
		Score:     score,
		CreatedAt: time.Unix(int64(1700000000+n), 0),
	}
}

func testConfig() Config {
	return Config{
		FloorNatural:    0.55,
		FloorKeyword:    0.68,
		FloorTag:        0,
		KNNK:            50,
		KNNPool:         200,
		AuxKNNK:         30,
		AuxWeight:       0.3,
		SolutionWeight:  1.0,
		SupportWeight:   0.7,
		KeywordBoost:    2.0,
		RawBoost:        1.0,
		CandidateWindow: 100,
		DefaultLimit:    10,
		MaxLimit:        50,
	}
}

func newTestService(repo *mockRepo, embed *mockEmbedder) *Service {
	return New(repo, mockAnalyzer{}, embed, testConfig(), zap.NewNop())
}

const naturalQuery = "how to debug memory leaks"

func TestSearch_ShortQueryGuard(t *testing.T) {
	repo := &mockRepo{}
	embed := &mockEmbedder{}
	s := newTestService(repo, embed)

	for _, q := range []string{"", " ", "a", " x "} {
		resp := s.Search(context.Background(), domain.SearchParams{Query: q})
		if !resp.Success {
			t.Errorf("query %q: expected success, got %+v", q, resp)
		}
		if len(resp.Hits) != 0 || resp.Total != 0 {
			t.Errorf("query %q: expected empty result", q)
		}
	}
	if len(repo.lexicalCalls) != 0 || len(repo.vectorCalls) != 0 || repo.browseCalls != 0 {
		t.Error("short queries must not reach the store")
	}
	if embed.calls != 0 {
		t.Error("short queries must not be embedded")
	}
}

func TestSearch_ModeSelection(t *testing.T) {
	cases := []struct {
		query string
		tag   string
		want  domain.SearchMode
	}{
		{"", "debugging", domain.ModeTagBrowse},
		{"a", "debugging", domain.ModeTagBrowse},
		{"sql", "debugging", domain.ModeTagBrowse},
		{"fix memory leaks", "debugging", domain.ModeTagBrowse},
		{"sql injection", "", domain.ModeKeyword},
		{"how to fix leaks", "", domain.ModeNaturalLanguage},
		{"find sql now", "", domain.ModeNaturalLanguage}, // exactly at boundary
	}

	for _, tc := range cases {
		repo := &mockRepo{}
		s := newTestService(repo, &mockEmbedder{})

		resp := s.Search(context.Background(), domain.SearchParams{Query: tc.query, Tag: tc.tag})
		if resp.Mode != tc.want {
			t.Errorf("query=%q tag=%q: mode = %s, want %s", tc.query, tc.tag, resp.Mode, tc.want)
		}
	}
}

func TestSearch_Natural_TopHitNormalizedToOne(t *testing.T) {
	repo := &mockRepo{
		vectorHits: map[domain.PerspectiveSlot][]domain.SearchHit{
			domain.SlotSolution: {hit("1", 0.9), hit("2", 0.8)},
			domain.SlotProblem:  {hit("1", 0.7)},
		},
		lexicalHits: []domain.SearchHit{hit("3", 2.5)},
	}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Query: naturalQuery})
	if !resp.Success {
		t.Fatalf("unexpected failure: %s", resp.Error)
	}
	if len(resp.Hits) == 0 {
		t.Fatal("expected hits")
	}
	if resp.Hits[0].Score != 1.0 {
		t.Errorf("top score = %f, want exactly 1.0", resp.Hits[0].Score)
	}
	for _, h := range resp.Hits {
		if h.Score > 1.0 || h.Score <= 0 {
			t.Errorf("score %f for %s outside (0,1]", h.Score, h.ID)
		}
	}
}

func TestSearch_Natural_SolutionOutweighsSupport(t *testing.T) {
	// Same raw score in both slots: solution-weighted doc must rank first.
	repo := &mockRepo{
		vectorHits: map[domain.PerspectiveSlot][]domain.SearchHit{
			domain.SlotSolution: {hit("sol", 0.8)},
			domain.SlotProblem:  {hit("prob", 0.8)},
		},
	}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Query: naturalQuery})
	if !resp.Success || len(resp.Hits) == 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Hits[0].ID != "sol" {
		t.Errorf("top hit = %s, want solution-matched doc", resp.Hits[0].ID)
	}
	if resp.Hits[0].Score != 1.0 {
		t.Errorf("top score = %f", resp.Hits[0].Score)
	}
}

func TestSearch_Natural_QueriesAllThreeSlots(t *testing.T) {
	repo := &mockRepo{}
	s := newTestService(repo, &mockEmbedder{})

	s.Search(context.Background(), domain.SearchParams{Query: naturalQuery})

	if len(repo.vectorCalls) != 3 {
		t.Fatalf("vector calls = %d, want 3", len(repo.vectorCalls))
	}
	seen := map[domain.PerspectiveSlot]bool{}
	for _, c := range repo.vectorCalls {
		seen[c.slot] = true
		if c.k != 50 {
			t.Errorf("k = %d, want 50", c.k)
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected all three perspective slots, got %v", seen)
	}
	if len(repo.lexicalCalls) != 1 {
		t.Fatalf("lexical calls = %d, want 1", len(repo.lexicalCalls))
	}
	lq := repo.lexicalCalls[0]
	if lq.Primary != "kw1 kw2" || lq.PrimaryWeight != 2.0 {
		t.Errorf("primary tier = %q weight %f", lq.Primary, lq.PrimaryWeight)
	}
	if lq.Secondary != naturalQuery || lq.SecondaryWeight != 1.0 {
		t.Errorf("secondary tier = %q weight %f", lq.Secondary, lq.SecondaryWeight)
	}
}

func TestSearch_Natural_FloorFiltersWeakHits(t *testing.T) {
	repo := &mockRepo{
		vectorHits: map[domain.PerspectiveSlot][]domain.SearchHit{
			domain.SlotSolution: {hit("strong", 1.0), hit("weak", 0.2)},
		},
	}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Query: naturalQuery})
	if !resp.Success {
		t.Fatalf("unexpected failure: %s", resp.Error)
	}
	// weak normalizes to 0.2, below the 0.55 natural floor.
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1 after floor", resp.Total)
	}
	if resp.Hits[0].ID != "strong" {
		t.Errorf("surviving hit = %s", resp.Hits[0].ID)
	}
}

func TestSearch_Natural_EmbedFailureFallsBackToLexical(t *testing.T) {
	repo := &mockRepo{lexicalHits: []domain.SearchHit{hit("1", 3.0)}}
	embed := &mockEmbedder{err: errors.New("provider down")}
	s := newTestService(repo, embed)

	resp := s.Search(context.Background(), domain.SearchParams{Query: naturalQuery})
	if !resp.Success {
		t.Fatalf("fallback should succeed: %s", resp.Error)
	}
	if resp.Mode != domain.ModeKeywordFallback {
		t.Errorf("mode = %s, want keyword_fallback", resp.Mode)
	}
	if len(repo.vectorCalls) != 0 {
		t.Error("no vector search after embed failure")
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Score != 1.0 {
		t.Errorf("hits = %+v", resp.Hits)
	}
}

func TestSearch_Natural_StoreFailureDegrades(t *testing.T) {
	repo := &mockRepo{vectorErr: errors.New("store down")}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Query: naturalQuery})
	if resp.Success {
		t.Fatal("expected unsuccessful response")
	}
	if len(resp.Hits) != 0 || resp.Total != 0 {
		t.Errorf("degraded response must be empty: %+v", resp)
	}
	if resp.Error == "" {
		t.Error("degraded response should carry the error text")
	}
}

func TestSearch_Keyword_TitleHeavyLexical(t *testing.T) {
	repo := &mockRepo{lexicalHits: []domain.SearchHit{hit("1", 4.0)}}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Query: "sql injection"})
	if !resp.Success || resp.Mode != domain.ModeKeyword {
		t.Fatalf("resp = %+v", resp)
	}
	if len(repo.lexicalCalls) != 1 || !repo.lexicalCalls[0].TitleHeavy {
		t.Error("keyword mode must use a title-heavy lexical query")
	}
	// Auxiliary KNN on the solution perspective with the smaller k.
	if len(repo.vectorCalls) != 1 || repo.vectorCalls[0].slot != domain.SlotSolution {
		t.Fatalf("vector calls = %+v", repo.vectorCalls)
	}
	if repo.vectorCalls[0].k != 30 {
		t.Errorf("aux k = %d, want 30", repo.vectorCalls[0].k)
	}
}

func TestSearch_Keyword_AuxEmbedFailureIsAdvisory(t *testing.T) {
	repo := &mockRepo{lexicalHits: []domain.SearchHit{hit("1", 4.0)}}
	embed := &mockEmbedder{err: errors.New("provider down")}
	s := newTestService(repo, embed)

	resp := s.Search(context.Background(), domain.SearchParams{Query: "sql injection"})
	if !resp.Success || resp.Mode != domain.ModeKeyword {
		t.Fatalf("keyword search must survive aux embed failure: %+v", resp)
	}
	if len(repo.vectorCalls) != 0 {
		t.Error("no vector search after aux embed failure")
	}
	if len(resp.Hits) != 1 {
		t.Errorf("hits = %+v", resp.Hits)
	}
}

func TestSearch_Keyword_FloorIsStricter(t *testing.T) {
	repo := &mockRepo{lexicalHits: []domain.SearchHit{
		hit("top", 4.0),
		hit("mid", 2.7), // normalizes to 0.675, below the 0.68 keyword floor
	}}
	embed := &mockEmbedder{err: errors.New("skip aux")}
	s := newTestService(repo, embed)

	resp := s.Search(context.Background(), domain.SearchParams{Query: "sql injection"})
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	if resp.Hits[0].ID != "top" {
		t.Errorf("surviving hit = %s", resp.Hits[0].ID)
	}
}

func TestSearch_TagBrowse(t *testing.T) {
	repo := &mockRepo{browseHits: []domain.SearchHit{hit("3", 0), hit("2", 0), hit("1", 0)}}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Tag: "debugging"})
	if !resp.Success || resp.Mode != domain.ModeTagBrowse {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d", resp.Total)
	}
	// Zero scores survive the zero floor.
	if resp.Hits[0].ID != "3" {
		t.Errorf("order not preserved: %+v", resp.Hits)
	}
}

func TestSearch_TagWithQueryStillBrowses(t *testing.T) {
	repo := &mockRepo{browseHits: []domain.SearchHit{hit("1", 0)}}
	embed := &mockEmbedder{}
	s := newTestService(repo, embed)

	resp := s.Search(context.Background(), domain.SearchParams{
		Query: "fix memory leaks",
		Tag:   "debugging",
	})
	if resp.Mode != domain.ModeTagBrowse {
		t.Fatalf("mode = %s, want %s", resp.Mode, domain.ModeTagBrowse)
	}
	if !resp.Success || resp.Total != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if repo.browseCalls != 1 || repo.browseQueries[0] != "fix memory leaks" {
		t.Errorf("browse must receive the query text, got %v", repo.browseQueries)
	}
	if repo.browseFilters[0].Tag != "debugging" {
		t.Errorf("tag filter = %q", repo.browseFilters[0].Tag)
	}
	if len(repo.vectorCalls) != 0 || len(repo.lexicalCalls) != 0 || embed.calls != 0 {
		t.Error("tag browse must not run the ranked retrieval paths")
	}
}

func TestSearch_TagBrowse_StoreFailureDegrades(t *testing.T) {
	repo := &mockRepo{browseErr: errors.New("store down")}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Tag: "debugging"})
	if resp.Success {
		t.Fatal("expected unsuccessful response")
	}
}

func TestSearch_FilterAssembly(t *testing.T) {
	repo := &mockRepo{}
	s := newTestService(repo, &mockEmbedder{})

	s.Search(context.Background(), domain.SearchParams{
		Query:   naturalQuery,
		AIModel: "All", // wildcard, must be skipped
		MinRate: 0,     // unset, must be skipped
	})

	if len(repo.vectorCalls) == 0 {
		t.Fatal("expected vector calls")
	}
	f := repo.vectorCalls[0].filter
	if f.AIModel != "" {
		t.Errorf("AIModel filter = %q, want empty for All", f.AIModel)
	}
	if f.MinRate != 0 {
		t.Errorf("MinRate filter = %d, want 0", f.MinRate)
	}

	repo2 := &mockRepo{}
	s2 := newTestService(repo2, &mockEmbedder{})
	s2.Search(context.Background(), domain.SearchParams{
		Query:   naturalQuery,
		AIModel: "GPT-4",
		MinRate: 60,
	})
	f2 := repo2.vectorCalls[0].filter
	if f2.AIModel != "GPT-4" || f2.MinRate != 60 {
		t.Errorf("filter = %+v", f2)
	}
}

func TestSearch_Pagination(t *testing.T) {
	hits := make([]domain.SearchHit, 25)
	for i := range hits {
		hits[i] = hit(strconv.Itoa(i+1), 4.0) // uniform: all normalize to 1.0
	}
	repo := &mockRepo{lexicalHits: hits}
	embed := &mockEmbedder{err: errors.New("skip aux")}
	s := newTestService(repo, embed)

	resp := s.Search(context.Background(), domain.SearchParams{
		Query: "sql injection", Page: 2, Limit: 10,
	})
	if resp.Total != 25 {
		t.Errorf("total = %d, want 25", resp.Total)
	}
	if len(resp.Hits) != 10 {
		t.Errorf("page size = %d, want 10", len(resp.Hits))
	}

	// Past the end: empty page, same total.
	resp = s.Search(context.Background(), domain.SearchParams{
		Query: "sql injection", Page: 9, Limit: 10,
	})
	if len(resp.Hits) != 0 || resp.Total != 25 {
		t.Errorf("past-the-end page: hits=%d total=%d", len(resp.Hits), resp.Total)
	}
}

func TestSearch_LimitNormalization(t *testing.T) {
	hits := make([]domain.SearchHit, 80)
	for i := range hits {
		hits[i] = hit(strconv.Itoa(i+1), 4.0)
	}
	repo := &mockRepo{lexicalHits: hits}
	embed := &mockEmbedder{err: errors.New("skip aux")}
	s := newTestService(repo, embed)

	// Zero limit: default 10.
	resp := s.Search(context.Background(), domain.SearchParams{Query: "sql injection"})
	if len(resp.Hits) != 10 {
		t.Errorf("default limit: got %d hits", len(resp.Hits))
	}

	// Oversized limit: clamped to 50.
	resp = s.Search(context.Background(), domain.SearchParams{Query: "sql injection", Limit: 500})
	if len(resp.Hits) != 50 {
		t.Errorf("max limit: got %d hits", len(resp.Hits))
	}
}

func TestSearch_MergeAccumulatesAcrossSubqueries(t *testing.T) {
	// Doc "both" appears in solution KNN and lexical; doc "one" only in
	// lexical with the same raw score. "both" must rank higher.
	repo := &mockRepo{
		vectorHits: map[domain.PerspectiveSlot][]domain.SearchHit{
			domain.SlotSolution: {hit("both", 0.9)},
		},
		lexicalHits: []domain.SearchHit{hit("both", 1.0), hit("one", 1.0)},
	}
	s := newTestService(repo, &mockEmbedder{})

	resp := s.Search(context.Background(), domain.SearchParams{Query: naturalQuery})
	if !resp.Success || len(resp.Hits) == 0 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Hits[0].ID != "both" {
		t.Errorf("top hit = %s, want the doc matched by both sub-queries", resp.Hits[0].ID)
	}
	if resp.Hits[0].Score != 1.0 {
		t.Errorf("top score = %f", resp.Hits[0].Score)
	}
}
