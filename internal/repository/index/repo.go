package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/exphub/searchcore/internal/db"
	"github.com/exphub/searchcore/internal/domain"
)

// store is the consumer interface for index operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchSorted(ctx context.Context, q *db.SortedQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig tunes the vector index build.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo is the search-store adapter for experiment documents.
type Repo struct {
	store      store
	keyPrefix  string
	dimensions int
	hnsw       HNSWConfig
}

// New creates an index repository.
func New(s store, keyPrefix string, dimensions int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, dimensions: dimensions}
}

// WithHNSW overrides HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

func (r *Repo) indexName() string {
	return r.keyPrefix + "experiments:idx"
}

func (r *Repo) docKey(id string) string {
	return r.keyPrefix + "exp:" + id
}

func (r *Repo) docPrefix() string {
	return r.keyPrefix + "exp:"
}

// EnsureIndex creates the index schema if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}
	if exists {
		return nil
	}
	if err := r.createIndex(ctx); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return err
	}
	return nil
}

// Reset drops and recreates the empty index schema, discarding all documents.
// Bootstrap/rebuild only, never in the request path.
func (r *Repo) Reset(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	return r.createIndex(ctx)
}

func (r *Repo) createIndex(ctx context.Context) error {
	def := &db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.docPrefix()},
		Fields: []db.IndexField{
			{Name: fieldTitle, Type: db.IndexFieldText, TextWeight: 5.0},
			{Name: fieldPromptText, Type: db.IndexFieldText},
			{Name: fieldDescription, Type: db.IndexFieldText},
			{Name: fieldTextProblem, Type: db.IndexFieldText},
			{Name: fieldTextTech, Type: db.IndexFieldText},
			{Name: fieldTextSolution, Type: db.IndexFieldText},
			{Name: fieldAIModel, Type: db.IndexFieldTag},
			{Name: fieldTags, Type: db.IndexFieldTag, TagSeparator: tagSeparator},
			{Name: fieldRate, Type: db.IndexFieldNumeric, Sortable: true},
			{Name: fieldCreatedAt, Type: db.IndexFieldNumeric, Sortable: true},
		},
	}

	for _, slot := range domain.PerspectiveSlots {
		def.Fields = append(def.Fields, db.IndexField{
			Name:              vectorField(slot),
			Type:              db.IndexFieldVector,
			VectorAlgo:        db.VectorHNSW,
			VectorDim:         r.dimensions,
			VectorDistance:    db.DistanceCosine,
			VectorM:           r.hnsw.M,
			VectorEFConstruct: r.hnsw.EFConstruct,
		})
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert stores a document wholesale, replacing any prior version of the id.
func (r *Repo) Upsert(ctx context.Context, doc *domain.SearchDocument) error {
	// Full replace: drop the old hash first so stale fields cannot survive.
	key := r.docKey(doc.ID)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("clear document %s: %w", doc.ID, err)
	}
	if err := r.store.HSet(ctx, key, buildHashFields(doc)); err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// BulkUpsert stores a batch of documents in one pipelined round trip.
func (r *Repo) BulkUpsert(ctx context.Context, docs []*domain.SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(docs))
	for i, doc := range docs {
		items[i] = db.HashSetItem{Key: r.docKey(doc.ID), Fields: buildHashFields(doc)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("bulk upsert %d documents: %w", len(docs), err)
	}
	return nil
}

// Delete removes a document. Absent ids succeed: deletion is idempotent.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.docKey(id)); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Get fetches one indexed document, mainly for consistency verification.
func (r *Repo) Get(ctx context.Context, id string) (*domain.SearchDocument, error) {
	m, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	if len(m) == 0 {
		return nil, domain.ErrNotFound
	}
	return parseHashFields(id, m), nil
}

// Count returns the number of indexed documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// SearchVector runs KNN retrieval against one perspective's vector field.
// Returned hit scores are raw cosine similarities.
func (r *Repo) SearchVector(
	ctx context.Context, slot domain.PerspectiveSlot, vector []float32,
	k, pool int, filter domain.SearchFilter,
) ([]domain.SearchHit, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName(),
		VectorField:  vectorField(slot),
		Vector:       vector,
		K:            k,
		EFRuntime:    pool,
		Prefilter:    buildFilter(filter),
		ReturnFields: hitReturnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", vectorField(slot), err)
	}
	return r.parseHits(sr), nil
}

// SearchLexical runs the two-tier weighted text match. Returned hit scores
// are raw relevance scores from the store.
func (r *Repo) SearchLexical(
	ctx context.Context, lq domain.LexicalQuery, filter domain.SearchFilter, limit int,
) ([]domain.SearchHit, error) {
	query := buildLexicalQuery(lq, buildFilter(filter))
	if query == "" {
		return nil, nil
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.indexName(),
		Query:        query,
		Limit:        limit,
		ReturnFields: hitReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return r.parseHits(sr), nil
}

// BrowseRecent lists documents matching the filter (and optional query text
// against title/body), newest first. Scores are not populated: recency
// governs order in tag browsing.
func (r *Repo) BrowseRecent(
	ctx context.Context, queryText string, filter domain.SearchFilter, limit int,
) ([]domain.SearchHit, error) {
	parts := make([]string, 0, 2)
	if f := buildFilter(filter); f != "" {
		parts = append(parts, f)
	}
	if escaped := escapeQuery(strings.TrimSpace(queryText)); escaped != "" {
		parts = append(parts, fmt.Sprintf("@%s|%s:(%s)", fieldTitle, fieldPromptText, escaped))
	}

	sr, err := r.store.SearchSorted(ctx, &db.SortedQuery{
		IndexName:    r.indexName(),
		Query:        strings.Join(parts, " "),
		SortBy:       fieldCreatedAt,
		Descending:   true,
		Limit:        limit,
		ReturnFields: hitReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("browse recent: %w", err)
	}
	return r.parseHits(sr), nil
}

func (r *Repo) parseHits(sr *db.SearchResult) []domain.SearchHit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	hits := make([]domain.SearchHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, r.docPrefix())
		hits = append(hits, parseHit(id, entry.Score, entry.Fields))
	}
	return hits
}
