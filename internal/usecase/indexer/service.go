// Package indexer projects experiments from the system of record into the
// search index: perspective generation, per-perspective embedding, and
// document upserts, plus full rebuilds.
package indexer

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/exphub/searchcore/internal/domain"
	"github.com/exphub/searchcore/internal/metrics"
)

// Service indexes experiments into the search store.
type Service struct {
	repo        Repository
	experiments ExperimentLister
	persp       PerspectiveGenerator
	embed       Embedder
	batchSize   int
	logger      *zap.Logger
}

// New creates an indexer service. batchSize governs reindex pagination.
func New(
	repo Repository,
	experiments ExperimentLister,
	persp PerspectiveGenerator,
	embed Embedder,
	batchSize int,
	logger *zap.Logger,
) *Service {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Service{
		repo:        repo,
		experiments: experiments,
		persp:       persp,
		embed:       embed,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Index projects one experiment into the search store. An individual
// embedding failure leaves that vector slot empty; the document still
// indexes so lexical retrieval keeps working. Upserts replace wholesale,
// making Index idempotent.
func (s *Service) Index(ctx context.Context, exp *domain.Experiment) error {
	doc, _ := s.buildDocument(ctx, exp)

	if err := s.repo.Upsert(ctx, doc); err != nil {
		metrics.IndexedDocumentsTotal.WithLabelValues("index", "error").Inc()
		return fmt.Errorf("index experiment %d: %w", exp.ID, err)
	}

	metrics.IndexedDocumentsTotal.WithLabelValues("index", "success").Inc()
	return nil
}

// Delete removes an experiment from the search store. Deleting an id that
// was never indexed succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, strconv.FormatInt(id, 10)); err != nil {
		metrics.IndexedDocumentsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete experiment %d from index: %w", id, err)
	}
	metrics.IndexedDocumentsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// Reindex rebuilds the search index from the system of record, paging by
// ascending id. Items keep being processed past individual failures; an
// item whose embeddings all fail is counted as an error and left out of
// its batch upsert.
func (s *Service) Reindex(ctx context.Context) (domain.ReindexReport, error) {
	var report domain.ReindexReport
	var cursor int64

	for {
		batch, err := s.experiments.ListAfter(ctx, cursor, s.batchSize)
		if err != nil {
			return report, fmt.Errorf("list experiments after %d: %w", cursor, err)
		}
		if len(batch) == 0 {
			break
		}

		docs := make([]*domain.SearchDocument, 0, len(batch))
		for _, exp := range batch {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.TotalCount++

			doc, embedded := s.buildDocument(ctx, exp)
			if embedded == 0 {
				report.ErrorCount++
				s.logger.Warn("All embeddings failed, skipping document",
					zap.Int64("experiment_id", exp.ID))
				continue
			}
			docs = append(docs, doc)
		}

		if len(docs) > 0 {
			if err := s.repo.BulkUpsert(ctx, docs); err != nil {
				report.ErrorCount += len(docs)
				s.logger.Error("Bulk upsert failed", zap.Error(err),
					zap.Int("batch_size", len(docs)))
			} else {
				report.SyncedCount += len(docs)
			}
		}

		cursor = batch[len(batch)-1].ID
	}

	s.logger.Info("Reindex finished",
		zap.Int("total", report.TotalCount),
		zap.Int("synced", report.SyncedCount),
		zap.Int("errors", report.ErrorCount),
	)
	metrics.IndexedDocumentsTotal.WithLabelValues("reindex", "success").
		Add(float64(report.SyncedCount))
	metrics.IndexedDocumentsTotal.WithLabelValues("reindex", "error").
		Add(float64(report.ErrorCount))

	return report, nil
}

// Reset drops and recreates the empty index schema. Bootstrap only; run a
// Reindex afterwards to repopulate.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.repo.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	return nil
}

// buildDocument assembles the search document: perspectives first, then one
// paced embed per perspective, strictly sequential. Returns the document and
// how many vector slots were filled.
func (s *Service) buildDocument(ctx context.Context, exp *domain.Experiment) (*domain.SearchDocument, int) {
	persp := s.persp.Generate(ctx, exp)

	doc := &domain.SearchDocument{
		ID:               strconv.FormatInt(exp.ID, 10),
		Title:            exp.Title,
		PromptText:       exp.PromptText,
		Description:      exp.Description,
		AIModel:          exp.AIModel,
		Tags:             exp.Tags,
		ReproductionRate: exp.ReproductionRate,
		CreatedAt:        exp.CreatedAt,
		Perspectives:     persp,
	}

	embedded := 0
	for _, slot := range domain.PerspectiveSlots {
		text := persp.Text(slot)
		if text == "" {
			continue
		}

		result, err := s.embed.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("Embedding failed, leaving vector slot empty",
				zap.Int64("experiment_id", exp.ID),
				zap.String("slot", string(slot)),
				zap.Error(err),
			)
			continue
		}

		doc.SetVector(slot, result.Vector)
		embedded++
	}

	return doc, embedded
}
