package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	dombatch "github.com/kailas-cloud/fusiondex/internal/domain/batch"
	"github.com/kailas-cloud/fusiondex/internal/domain/coercion"
	logpkg "github.com/kailas-cloud/fusiondex/internal/logger"
	"github.com/kailas-cloud/fusiondex/internal/metrics"
	"github.com/kailas-cloud/fusiondex/internal/usecase/document"
)

// MaxBatchSize is the maximum number of items per import request.
const MaxBatchSize = 1000

// DefaultConcurrency bounds the goroutines validating one batch.
const DefaultConcurrency = 8

// Service imports documents in batch with per-item error reporting.
type Service struct {
	docs         DocumentWriter
	colls        CollectionReader
	maxBatchSize int
	concurrency  int
}

// New creates a batch service.
func New(docs DocumentWriter, colls CollectionReader) *Service {
	return &Service{
		docs:         docs,
		colls:        colls,
		maxBatchSize: MaxBatchSize,
		concurrency:  DefaultConcurrency,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithConcurrency configures how many documents are validated in parallel.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Import validates every document in parallel, embeds the missing vectors of the valid
// ones in one call, then applies them in input order. A failing document does not stop
// the batch, except for rate limiting which fails every remaining item. A failed
// embedding call fails every valid item.
func (s *Service) Import(
	ctx context.Context, collectionName string, items []map[string]any,
	op coercion.Operation, policy coercion.Policy,
) []dombatch.Result {
	ctx = logpkg.WithCollection(ctx, collectionName)
	results := s.importItems(ctx, collectionName, items, op, policy)
	imported := dombatch.NumImported(results)
	metrics.ImportDocumentsTotal.WithLabelValues("success").Add(float64(imported))
	metrics.ImportDocumentsTotal.WithLabelValues("error").Add(float64(len(results) - imported))
	logpkg.FromContext(ctx).Debug("Import finished",
		zap.String("action", string(op)),
		zap.Int("items", len(results)),
		zap.Int("imported", imported),
	)
	return results
}

func (s *Service) importItems(
	ctx context.Context, collectionName string, items []map[string]any,
	op coercion.Operation, policy coercion.Policy,
) []dombatch.Result {
	if len(items) > s.maxBatchSize {
		return failAll(items, 0, domain.NewFieldError(domain.ErrInvalidQuery,
			"Import batch size exceeds %d documents.", s.maxBatchSize))
	}

	h, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return failAll(items, 0, fmt.Errorf("get collection: %w", err))
	}

	sch := h.Schema()
	prepared := make([]document.Prepared, len(items))
	prepErrs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, raw := range items {
		g.Go(func() error {
			prepared[i], prepErrs[i] = document.Prepare(sch, raw, op, policy)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]dombatch.Result, len(items))
	valid := make([]document.Prepared, 0, len(items))
	for i, raw := range items {
		if prepErrs[i] != nil {
			results[i] = dombatch.NewError(i, idOf(raw), prepErrs[i], raw)
			continue
		}
		valid = append(valid, prepared[i])
	}

	if err := s.docs.EmbedBatch(ctx, sch, valid); err != nil {
		logpkg.FromContext(ctx).Warn("Batch embedding failed",
			zap.Int("documents", len(valid)),
			zap.Error(err),
		)
		for i, raw := range items {
			if prepErrs[i] == nil {
				results[i] = dombatch.NewError(i, prepared[i].ID(), err, raw)
			}
		}
		return results
	}

	for i, raw := range items {
		if prepErrs[i] != nil {
			continue
		}

		doc, err := s.docs.Apply(ctx, h, prepared[i])
		if err != nil {
			results[i] = dombatch.NewError(i, prepared[i].ID(), err, raw)
			if errors.Is(err, domain.ErrRateLimited) {
				rest := failAll(items[i+1:], i+1, err)
				copy(results[i+1:], rest)
				return results
			}
			continue
		}
		results[i] = dombatch.NewOK(i, doc.ID())
	}
	return results
}

func failAll(items []map[string]any, offset int, err error) []dombatch.Result {
	results := make([]dombatch.Result, len(items))
	for i, raw := range items {
		results[i] = dombatch.NewError(offset+i, idOf(raw), err, raw)
	}
	return results
}

func idOf(raw map[string]any) string {
	id, _ := raw["id"].(string)
	return id
}
