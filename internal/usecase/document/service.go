package document

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/coercion"
	domdoc "github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/document/patch"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/metrics"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
)

// Service handles document writes with automatic vectorization.
type Service struct {
	colls           CollectionReader
	docEmbedder     Embedder
	defaultPageSize int
	maxPageSize     int
}

// New creates a document service. docEmbedder may be nil when no field is embedded.
func New(colls CollectionReader, docEmbedder Embedder) *Service {
	return &Service{
		colls:           colls,
		docEmbedder:     docEmbedder,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Write validates raw and applies it to the collection according to op.
func (s *Service) Write(
	ctx context.Context, collectionName string, raw map[string]any,
	op coercion.Operation, policy coercion.Policy,
) (domdoc.Document, error) {
	doc, err := s.write(ctx, collectionName, raw, op, policy)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DocumentWritesTotal.WithLabelValues(string(op), status).Inc()
	return doc, err
}

func (s *Service) write(
	ctx context.Context, collectionName string, raw map[string]any,
	op coercion.Operation, policy coercion.Policy,
) (domdoc.Document, error) {
	h, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get collection: %w", err)
	}

	p, err := Prepare(h.Schema(), raw, op, policy)
	if err != nil {
		return domdoc.Document{}, err
	}
	return s.Apply(ctx, h, p)
}

// Apply writes a prepared document. Either every index and the store observe the
// write or none does.
func (s *Service) Apply(ctx context.Context, h *collection.Handle, p Prepared) (domdoc.Document, error) {
	h.Lock()
	defer h.Unlock()

	sch := h.Schema()
	store := h.Documents()

	var existing domdoc.Document
	exists := false
	if p.hasID {
		doc, err := store.Get(p.id)
		switch {
		case err == nil:
			existing, exists = doc, true
		case !errors.Is(err, domain.ErrDocumentNotFound):
			return domdoc.Document{}, fmt.Errorf("get document: %w", err)
		}
	}

	fields := p.fields
	switch p.op {
	case coercion.Create:
		if exists {
			return domdoc.Document{}, alreadyExists(p.id)
		}
	case coercion.Update:
		if !exists {
			return domdoc.Document{}, domain.NewFieldError(domain.ErrDocumentNotFound,
				"Could not find a document with id: %s", p.id)
		}
	case coercion.Emplace:
		if !exists {
			fields = domdoc.CloneFields(p.fields)
			if err := validate(sch, fields, coercion.Create, p.policy); err != nil {
				return domdoc.Document{}, err
			}
		}
	}

	id := p.id
	var seq uint32
	if exists {
		seq = existing.SeqID()
	} else {
		seq = store.NextSeq()
		// Auto ids skip sequence numbers already taken as explicit ids.
		for !p.hasID {
			id = strconv.FormatUint(uint64(seq), 10)
			if _, err := store.Get(id); err != nil {
				break
			}
			seq = store.NextSeq()
		}
	}

	merged := fields
	var changed patch.Patch
	partial := exists && p.op.IsUpdateLike()
	if partial {
		pt, err := patch.New(fields)
		if err != nil {
			return domdoc.Document{}, domain.NewFieldError(domain.ErrSchemaViolation, "%s", err)
		}
		changed = pt
		merged = pt.Apply(existing.Fields())
	}

	if err := s.embed(ctx, sch, merged, partial, changed); err != nil {
		return domdoc.Document{}, err
	}

	vectors, err := coercion.Vectors(merged, sch.Fields())
	if err != nil {
		return domdoc.Document{}, err
	}

	doc, err := domdoc.New(id, seq, merged)
	if err != nil {
		return domdoc.Document{}, err
	}

	if err := h.Text().Put(doc, fieldNames(sch.TextFields())); err != nil {
		return domdoc.Document{}, fmt.Errorf("index text: %w", err)
	}
	for _, f := range sch.VectorFields() {
		idx, ok := h.Vectors().Get(f.Name())
		if !ok {
			continue
		}
		if vec, ok := vectors[f.Name()]; ok {
			if err := idx.Insert(seq, vec); err != nil {
				return domdoc.Document{}, fmt.Errorf("index vector %s: %w", f.Name(), err)
			}
		} else if exists {
			idx.Remove(seq)
		}
	}
	store.Upsert(doc)

	return doc, nil
}

// embed generates missing embedded vectors. For partial writes a vector is regenerated
// when one of its sources changed and the write does not set the vector itself.
func (s *Service) embed(ctx context.Context, sch schema.Schema, doc map[string]any, partial bool, changed patch.Patch) error {
	for _, f := range sch.VectorFields() {
		e, ok := f.Embed()
		if !ok {
			continue
		}
		if v, present := doc[f.Name()]; present && v != nil {
			if !partial || changed.Touches(f.Name()) || !changed.Touches(e.From()...) {
				continue
			}
		}

		text := sourceText(doc, e.From())
		if text == "" {
			delete(doc, f.Name())
			continue
		}
		if s.docEmbedder == nil {
			return fmt.Errorf("embed field %s: no embedder configured: %w", f.Name(), domain.ErrEmbeddingProviderError)
		}

		res, err := s.docEmbedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed field %s: %w", f.Name(), err)
		}
		domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

		vec, err := toVector(f, res.Embedding)
		if err != nil {
			return err
		}
		doc[f.Name()] = vec
	}
	return nil
}

// EmbedBatch generates the missing embedded vectors of prepared full-document writes
// with a single embedder call. Update-like writes depend on the stored document and
// are embedded by Apply.
func (s *Service) EmbedBatch(ctx context.Context, sch schema.Schema, prepared []Prepared) error {
	type target struct {
		fields map[string]any
		f      field.Field
	}
	var (
		texts   []string
		targets []target
	)
	for _, p := range prepared {
		if p.fields == nil || p.op.IsUpdateLike() {
			continue
		}
		for _, f := range sch.VectorFields() {
			e, ok := f.Embed()
			if !ok {
				continue
			}
			if v, present := p.fields[f.Name()]; present && v != nil {
				continue
			}
			text := sourceText(p.fields, e.From())
			if text == "" {
				continue
			}
			texts = append(texts, text)
			targets = append(targets, target{fields: p.fields, f: f})
		}
	}
	if len(texts) == 0 {
		return nil
	}
	if s.docEmbedder == nil {
		return fmt.Errorf("embed batch: no embedder configured: %w", domain.ErrEmbeddingProviderError)
	}

	var (
		res domain.BatchEmbeddingResult
		err error
	)
	if be, ok := s.docEmbedder.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.docEmbedder, texts)
	}
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return fmt.Errorf("embed batch: got %d vectors for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	for i, t := range targets {
		vec, err := toVector(t.f, res.Embeddings[i])
		if err != nil {
			return err
		}
		t.fields[t.f.Name()] = vec
	}
	return nil
}

func toVector(f field.Field, embedding []float32) ([]any, error) {
	if len(embedding) != f.NumDim() {
		return nil, domain.NewFieldError(domain.ErrDimensionMismatch,
			"Field `%s` must have %d dimensions.", f.Name(), f.NumDim())
	}
	vec := make([]any, len(embedding))
	for i, x := range embedding {
		vec[i] = float64(x)
	}
	return vec, nil
}

// sourceText joins the string values of the source fields with spaces.
func sourceText(doc map[string]any, from []string) string {
	var parts []string
	for _, name := range from {
		switch v := doc[name].(type) {
		case string:
			if v != "" {
				parts = append(parts, v)
			}
		case []any:
			for _, e := range v {
				if s, ok := e.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

// Get retrieves a document by collection and ID.
func (s *Service) Get(ctx context.Context, collectionName, id string) (domdoc.Document, error) {
	h, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get collection: %w", err)
	}
	doc, err := h.Documents().Get(id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns a paginated list of documents.
func (s *Service) List(
	ctx context.Context, collectionName, cursor string, limit int,
) ([]domdoc.Document, string, error) {
	h, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return nil, "", fmt.Errorf("get collection: %w", err)
	}

	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	docs, nextCursor, err := h.Documents().List(cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	return docs, nextCursor, nil
}

// Delete removes a document from the store and every index. Its vector slots become
// tombstones that later inserts reuse.
func (s *Service) Delete(ctx context.Context, collectionName, id string) (domdoc.Document, error) {
	h, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get collection: %w", err)
	}

	h.Lock()
	defer h.Unlock()

	doc, err := h.Documents().Get(id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("delete document: %w", err)
	}
	if err := h.Text().Delete(id); err != nil {
		return domdoc.Document{}, fmt.Errorf("delete document: %w", err)
	}
	for _, name := range h.Vectors().Fields() {
		if idx, ok := h.Vectors().Get(name); ok {
			idx.Remove(doc.SeqID())
		}
	}
	if _, err := h.Documents().Delete(id); err != nil {
		return domdoc.Document{}, fmt.Errorf("delete document: %w", err)
	}
	return doc, nil
}

// Count returns the number of documents in a collection.
func (s *Service) Count(ctx context.Context, collectionName string) (int, error) {
	h, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return 0, fmt.Errorf("get collection: %w", err)
	}
	return h.Documents().Count(), nil
}

func alreadyExists(id string) error {
	return domain.NewFieldError(domain.ErrAlreadyExists, "A document with id %s already exists.", id)
}

func fieldNames(fields []field.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name()
	}
	return out
}
