package db

// KNNQuery is a k-nearest-neighbor query over one named vector field.
// Prefilter, when non-empty, is a prebuilt FT.SEARCH filter expression that
// gates admission before the vector stage.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Vector       []float32
	K            int
	EFRuntime    int // candidate pool size, 0 = backend default
	Prefilter    string
	ReturnFields []string
}

// TextQuery is a lexical query. Query is a full FT.SEARCH expression, weight
// attributes included; the caller owns escaping of user input embedded in it.
type TextQuery struct {
	IndexName    string
	Query        string
	Limit        int
	ReturnFields []string
}

// SortedQuery lists documents matching Query ordered by a sortable field.
type SortedQuery struct {
	IndexName    string
	Query        string
	SortBy       string
	Descending   bool
	Limit        int
	ReturnFields []string
}

// SearchEntry is one raw hit from the store.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult is the raw outcome of one FT.SEARCH round trip.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}
