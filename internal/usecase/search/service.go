package search

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/mode"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/request"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/result"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/vectorquery"
	"github.com/kailas-cloud/fusiondex/internal/metrics"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
	"github.com/kailas-cloud/fusiondex/internal/repository/text"
	"github.com/kailas-cloud/fusiondex/internal/vectorindex"
)

// Service handles document search across keyword, semantic and hybrid modes.
type Service struct {
	colls CollectionReader
	embed Embedder
}

// New creates a search service. embed vectorizes q for embedding fields named in
// query_by and may be nil.
func New(colls CollectionReader, embed Embedder) *Service {
	return &Service{colls: colls, embed: embed}
}

// plan is a resolved search: which rankings run and with which inputs.
type plan struct {
	textFields []string
	vecField   string
	vector     []float32
	opts       vectorindex.SearchOptions
}

func (p *plan) hasVector() bool { return p.vecField != "" }

// Search runs the text and vector rankings the request asks for and fuses them.
func (s *Service) Search(ctx context.Context, collectionName string, req *request.Request) (result.Response, error) {
	start := time.Now()

	h, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return result.Response{}, fmt.Errorf("get collection: %w", err)
	}
	sch := h.Schema()

	filterSet, err := h.Documents().Filter(sch, req.Filters())
	if err != nil {
		return result.Response{}, err
	}

	p, err := s.plan(ctx, h, sch, req)
	if err != nil {
		return result.Response{}, err
	}
	p.opts.Filter = filterSet

	hasText := !p.hasVector() || (!req.IsWildcard() && len(p.textFields) > 0)
	m := mode.Resolve(hasText, p.hasVector())

	var (
		found int
		hits  []result.Hit
	)
	switch m {
	case mode.Keyword:
		found, hits, err = s.searchKeyword(ctx, h, req, p, filterSet)
	case mode.Semantic:
		found, hits, err = s.searchSemantic(h, req, p)
	case mode.Hybrid:
		found, hits, err = s.searchHybrid(ctx, h, req, p, filterSet)
	}
	if err != nil {
		return result.Response{}, err
	}

	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(string(m)).Observe(elapsed.Seconds())
	return result.NewResponse(found, hits, elapsed), nil
}

// plan validates query_by and the vector query and resolves the query vector.
func (s *Service) plan(ctx context.Context, h *collection.Handle, sch schema.Schema, req *request.Request) (*plan, error) {
	p := &plan{}
	var embedField *field.Field

	for _, name := range req.QueryBy() {
		f, ok := sch.FieldByName(name)
		if !ok {
			return nil, domain.NewFieldError(domain.ErrInvalidQuery,
				"Could not find a field named `%s` in the schema.", name)
		}
		if _, embedded := f.Embed(); embedded {
			if embedField == nil {
				embedField = &f
			}
			continue
		}
		if !f.FieldType().IsString() {
			return nil, domain.NewFieldError(domain.ErrInvalidQuery,
				"Field `%s` should be a string or a string array.", name)
		}
		p.textFields = append(p.textFields, name)
	}

	if vq, ok := req.VectorQuery(); ok {
		return p, s.resolveVectorQuery(h, sch, req, vq, p)
	}
	if embedField != nil && !req.IsWildcard() {
		return p, s.embedQuery(ctx, req, *embedField, p)
	}
	return p, nil
}

func (s *Service) resolveVectorQuery(
	h *collection.Handle, sch schema.Schema, req *request.Request, vq vectorquery.Query, p *plan,
) error {
	f, ok := sch.FieldByName(vq.Field())
	idx, indexed := h.Vectors().Get(vq.Field())
	if !ok || !f.IsVector() || !indexed {
		return domain.NewFieldError(domain.ErrInvalidQuery,
			"Field `%s` does not have a vector query index.", vq.Field())
	}

	p.vecField = f.Name()
	p.opts.K = vq.K(req.PerPage())
	p.opts.DistanceThreshold = vq.DistanceThreshold()
	p.opts.FlatSearchCutoff = vq.FlatSearchCutoff()

	if !vq.IsReference() {
		if len(vq.Values()) != f.NumDim() {
			return domain.NewFieldError(domain.ErrDimensionMismatch,
				"Query field `%s` must have %d dimensions.", f.Name(), f.NumDim())
		}
		p.vector = vq.Values()
		return nil
	}

	ref, err := h.Documents().Get(vq.RefID())
	if err != nil {
		return domain.NewFieldError(domain.ErrReferenceNotFound,
			"Document id referenced in vector query is not found.")
	}
	vec, ok := idx.Vector(ref.SeqID())
	if !ok {
		return domain.NewFieldError(domain.ErrReferenceNotFound,
			"Document referenced in vector query does not have the field `%s`.", f.Name())
	}
	seq := ref.SeqID()
	p.vector = vec
	p.opts.Exclude = &seq
	return nil
}

func (s *Service) embedQuery(ctx context.Context, req *request.Request, f field.Field, p *plan) error {
	if s.embed == nil {
		return fmt.Errorf("vectorize query: no embedder configured: %w", domain.ErrEmbeddingProviderError)
	}
	res, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	if len(res.Embedding) != f.NumDim() {
		return domain.NewFieldError(domain.ErrDimensionMismatch,
			"Query field `%s` must have %d dimensions.", f.Name(), f.NumDim())
	}
	p.vecField = f.Name()
	p.vector = res.Embedding
	p.opts.K = max(req.PerPage(), vectorquery.MinK)
	p.opts.FlatSearchCutoff = vectorquery.DefaultFlatSearchCutoff
	return nil
}

func (s *Service) searchKeyword(
	ctx context.Context, h *collection.Handle, req *request.Request, p *plan, filterSet *roaring.Bitmap,
) (int, []result.Hit, error) {
	res, err := h.Text().Search(ctx, text.Query{
		Text: req.Query(), Fields: p.textFields, Filter: filterSet, Limit: req.PerPage(),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("search text: %w", err)
	}

	hits := make([]result.Hit, 0, len(res.Matches))
	for _, m := range res.Matches {
		score := m.Score
		if hit, ok := s.hit(h, req, m.Seq, &score, nil, nil); ok {
			hits = append(hits, hit)
		}
	}
	return res.Total, hits, nil
}

func (s *Service) searchSemantic(h *collection.Handle, req *request.Request, p *plan) (int, []result.Hit, error) {
	matches, err := s.searchVector(h, p)
	if err != nil {
		return 0, nil, err
	}

	hits := make([]result.Hit, 0, min(len(matches), req.PerPage()))
	for _, m := range matches {
		if len(hits) == req.PerPage() {
			break
		}
		dist := m.Distance
		if hit, ok := s.hit(h, req, m.Seq, nil, &dist, nil); ok {
			hits = append(hits, hit)
		}
	}
	return len(matches), hits, nil
}

func (s *Service) searchHybrid(
	ctx context.Context, h *collection.Handle, req *request.Request, p *plan, filterSet *roaring.Bitmap,
) (int, []result.Hit, error) {
	textRes, err := h.Text().Search(ctx, text.Query{
		Text: req.Query(), Fields: p.textFields, Filter: filterSet, Limit: p.opts.K,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("search text: %w", err)
	}
	matches, err := s.searchVector(h, p)
	if err != nil {
		return 0, nil, err
	}

	fused := fuse(textRes.Matches, matches)
	hits := make([]result.Hit, 0, min(len(fused), req.PerPage()))
	for _, f := range fused {
		if len(hits) == req.PerPage() {
			break
		}
		var textScore *float64
		if f.textRank > 0 {
			ts := f.textScore
			textScore = &ts
		}
		var dist *float32
		if f.vecRank > 0 {
			d := f.distance
			dist = &d
		}
		score := f.score
		if hit, ok := s.hit(h, req, f.seq, textScore, dist, &score); ok {
			hits = append(hits, hit)
		}
	}
	return len(fused), hits, nil
}

func (s *Service) searchVector(h *collection.Handle, p *plan) ([]vectorindex.Match, error) {
	idx, ok := h.Vectors().Get(p.vecField)
	if !ok {
		return nil, domain.NewFieldError(domain.ErrInvalidQuery,
			"Field `%s` does not have a vector query index.", p.vecField)
	}
	matches, err := idx.Search(p.vector, p.opts)
	if err != nil {
		return nil, fmt.Errorf("search vector %s: %w", p.vecField, err)
	}
	return matches, nil
}

// hit loads the document of seq. Documents deleted since ranking are skipped.
func (s *Service) hit(
	h *collection.Handle, req *request.Request, seq uint32,
	textMatch *float64, dist *float32, fusion *float64,
) (result.Hit, bool) {
	doc, ok := h.Documents().GetBySeq(seq)
	if !ok {
		return result.Hit{}, false
	}

	fields := doc.Fields()
	if !req.IncludeVectors() {
		fields = withoutVectors(fields, h.Schema())
	}
	return result.New(doc.ID(), seq, fields, textMatch, dist, fusion), true
}

func withoutVectors(fields map[string]any, sch schema.Schema) map[string]any {
	vecs := sch.VectorFields()
	if len(vecs) == 0 {
		return fields
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, f := range vecs {
		delete(out, f.Name())
	}
	return out
}
