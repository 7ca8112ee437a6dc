package fusiondex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/fusiondex/internal/domain/coercion"
	batchuc "github.com/kailas-cloud/fusiondex/internal/usecase/batch"
	documentuc "github.com/kailas-cloud/fusiondex/internal/usecase/document"
)

// WriteOption configures a single document write or import.
type WriteOption func(*writeConfig)

type writeConfig struct {
	dirty DirtyValues
}

// WithDirtyValues overrides the coercion policy (default coerce_or_reject).
func WithDirtyValues(d DirtyValues) WriteOption {
	return func(c *writeConfig) { c.dirty = d }
}

func policyOf(opts []WriteOption) (coercion.Policy, error) {
	cfg := writeConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return coercion.ParsePolicy(string(cfg.dirty))
}

// DocumentService manages documents within a single collection.
type DocumentService struct {
	collection string
	docSvc     *documentuc.Service
	batchSvc   *batchuc.Service
	obs        *observer
}

// Create inserts a new document. It fails with ErrAlreadyExists if the id is taken.
func (s *DocumentService) Create(ctx context.Context, doc Document, opts ...WriteOption) (Document, error) {
	return s.write(ctx, "document.create", doc, ActionCreate, opts)
}

// Upsert inserts doc or replaces the stored document with the same id.
func (s *DocumentService) Upsert(ctx context.Context, doc Document, opts ...WriteOption) (Document, error) {
	return s.write(ctx, "document.upsert", doc, ActionUpsert, opts)
}

// Update merges doc into the stored document. The id must exist.
func (s *DocumentService) Update(ctx context.Context, doc Document, opts ...WriteOption) (Document, error) {
	return s.write(ctx, "document.update", doc, ActionUpdate, opts)
}

// Emplace updates the stored document if the id exists and creates it otherwise.
func (s *DocumentService) Emplace(ctx context.Context, doc Document, opts ...WriteOption) (Document, error) {
	return s.write(ctx, "document.emplace", doc, ActionEmplace, opts)
}

func (s *DocumentService) write(
	ctx context.Context, op string, doc Document, action Action, opts []WriteOption,
) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe(op, s.collection, start, err) }()

	policy, err := policyOf(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	stored, err := s.docSvc.Write(ctx, s.collection, toInternalDocument(doc), coercion.Operation(action), policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return fromInternalDocument(stored), nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.get", s.collection, start, err) }()

	d, err := s.docSvc.Get(ctx, s.collection, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return fromInternalDocument(d), nil
}

// List returns a page of documents in insertion order. Pass the returned cursor to fetch the next page.
func (s *DocumentService) List(ctx context.Context, cursor string, limit int) (_ ListResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.list", s.collection, start, err) }()

	docs, next, err := s.docSvc.List(ctx, s.collection, cursor, limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("list documents: %w", err)
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = fromInternalDocument(d)
	}
	return ListResult{Documents: out, NextCursor: next}, nil
}

// Delete removes a document and returns it.
func (s *DocumentService) Delete(ctx context.Context, id string) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.delete", s.collection, start, err) }()

	d, err := s.docSvc.Delete(ctx, s.collection, id)
	if err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	return fromInternalDocument(d), nil
}

// Count returns the number of documents in the collection.
func (s *DocumentService) Count(ctx context.Context) (int, error) {
	n, err := s.docSvc.Count(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Import writes docs with the same action. A failing document does not stop the
// batch. Results are in input order.
func (s *DocumentService) Import(
	ctx context.Context, docs []Document, action Action, opts ...WriteOption,
) (_ []ImportResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.import", s.collection, start, err) }()

	op, err := coercion.ParseOperation(string(action))
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	policy, err := policyOf(opts)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	items := make([]map[string]any, len(docs))
	for i, d := range docs {
		items[i] = toInternalDocument(d)
	}
	return fromInternalBatch(s.batchSvc.Import(ctx, s.collection, items, op, policy)), nil
}
