package domain

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
