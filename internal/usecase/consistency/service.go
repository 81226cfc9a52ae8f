// Package consistency checks and repairs drift between the system of
// record and the search index. The index is a derived view; when the two
// disagree, the relational side wins and a resync rebuilds the index.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
)

// Service verifies and resynchronizes the search index.
type Service struct {
	reindexer   Reindexer
	experiments ExperimentStore
	index       IndexReader
	dimensions  int
	logger      *zap.Logger
}

// New creates a consistency service. dimensions is the expected vector
// dimensionality for sampled documents.
func New(
	reindexer Reindexer,
	experiments ExperimentStore,
	index IndexReader,
	dimensions int,
	logger *zap.Logger,
) *Service {
	return &Service{
		reindexer:   reindexer,
		experiments: experiments,
		index:       index,
		dimensions:  dimensions,
		logger:      logger,
	}
}

// Resync rebuilds the whole index from the system of record.
func (s *Service) Resync(ctx context.Context) (domain.ReindexReport, error) {
	s.logger.Info("Starting full resync")
	return s.reindexer.Reindex(ctx)
}

// Verify compares document counts and spot-checks a random sample
// field by field. It reports drift; it does not repair it.
func (s *Service) Verify(ctx context.Context, sampleSize int) (domain.ConsistencyReport, error) {
	var report domain.ConsistencyReport

	relCount, err := s.experiments.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("count experiments: %w", err)
	}
	idxCount, err := s.index.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("count indexed documents: %w", err)
	}

	report.RelationalCount = relCount
	report.IndexCount = idxCount
	report.CountMatch = relCount == idxCount

	if sampleSize <= 0 {
		return report, nil
	}

	sample, err := s.experiments.Sample(ctx, sampleSize)
	if err != nil {
		return report, fmt.Errorf("sample experiments: %w", err)
	}

	for _, exp := range sample {
		report.Checks = append(report.Checks, s.checkOne(ctx, exp))
	}

	if !report.Pass() {
		s.logger.Warn("Consistency check failed",
			zap.Int("relational_count", relCount),
			zap.Int("index_count", idxCount),
			zap.Int("sampled", len(report.Checks)),
		)
	}

	return report, nil
}

func (s *Service) checkOne(ctx context.Context, exp *domain.Experiment) domain.FieldCheck {
	id := strconv.FormatInt(exp.ID, 10)
	check := domain.FieldCheck{ID: id}

	doc, err := s.index.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			check.Mismatches = append(check.Mismatches, "document missing from index")
		} else {
			check.Mismatches = append(check.Mismatches, fmt.Sprintf("index read failed: %v", err))
		}
		return check
	}

	if doc.Title != exp.Title {
		check.Mismatches = append(check.Mismatches,
			fmt.Sprintf("title: index %q, record %q", doc.Title, exp.Title))
	}
	if doc.PromptText != exp.PromptText {
		check.Mismatches = append(check.Mismatches, "prompt text differs")
	}
	if doc.ReproductionRate != exp.ReproductionRate {
		check.Mismatches = append(check.Mismatches,
			fmt.Sprintf("reproduction rate: index %d, record %d",
				doc.ReproductionRate, exp.ReproductionRate))
	}

	for _, slot := range domain.PerspectiveSlots {
		vec := doc.Vector(slot)
		if vec == nil {
			// Absent vectors are legal (embedding failed at index time),
			// but a present one must have the configured dimensionality.
			continue
		}
		if len(vec) != s.dimensions {
			check.Mismatches = append(check.Mismatches,
				fmt.Sprintf("%s vector: %d dims, want %d", slot, len(vec), s.dimensions))
		}
	}

	check.Pass = len(check.Mismatches) == 0
	return check
}
