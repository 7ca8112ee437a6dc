package fusiondex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/fusiondex/internal/domain/search/request"
	searchuc "github.com/kailas-cloud/fusiondex/internal/usecase/search"
)

// SearchService runs queries against a single collection.
type SearchService struct {
	collection string
	svc        *searchuc.Service
	obs        *observer
}

// Query runs a keyword, vector or hybrid search depending on which of Q and
// VectorQuery are set. Hybrid hits carry a rank fusion score.
func (s *SearchService) Query(ctx context.Context, p SearchParams) (_ SearchResponse, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.query", s.collection, start, err) }()

	filters, err := toInternalFilter(p.Filter)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}
	req, err := request.New(p.Q, p.QueryBy, p.VectorQuery, filters, p.PerPage, p.IncludeVectors)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}

	resp, err := s.svc.Search(ctx, s.collection, &req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}
	return fromInternalResponse(resp), nil
}

// Vector runs a pure vector search for the nearest k documents to vec in vectorField.
func (s *SearchService) Vector(
	ctx context.Context, vectorField string, vec []float32, k int,
) (SearchResponse, error) {
	return s.Query(ctx, SearchParams{
		Q:           request.Wildcard,
		VectorQuery: formatVectorQuery(vectorField, vec, k),
		PerPage:     k,
	})
}

func formatVectorQuery(field string, vec []float32, k int) string {
	buf := make([]byte, 0, len(field)+len(vec)*10+16)
	buf = append(buf, field...)
	buf = append(buf, ":(["...)
	for i, v := range vec {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = fmt.Appendf(buf, "%g", v)
	}
	buf = append(buf, ']')
	if k > 0 {
		buf = fmt.Appendf(buf, ", k: %d", k)
	}
	buf = append(buf, ')')
	return string(buf)
}
