package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/coercion"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/filter"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/request"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/result"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
	"github.com/kailas-cloud/fusiondex/internal/usecase/document"
	"github.com/kailas-cloud/fusiondex/internal/vectorindex"
)

// --- Mocks ---

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 2}, m.err
}

// --- fixtures ---

func newTestService(t *testing.T, emb Embedder) *Service {
	t.Helper()
	colls := collection.New(vectorindex.Config{})
	t.Cleanup(func() { _ = colls.Close() })

	must := func(f field.Field, err error) field.Field {
		t.Helper()
		require.NoError(t, err)
		return f
	}
	sch, err := schema.New("coll1", []field.Field{
		must(field.New("title", field.String)),
		must(field.New("points", field.Int32)),
		must(field.New("vec", field.FloatArray, field.NumDim(4), field.Optional())),
		must(field.New("emb", field.FloatArray, field.NumDim(4), field.Optional(),
			field.WithEmbed(field.NewEmbed([]string{"title"}, "m")))),
	}, "points")
	require.NoError(t, err)
	_, err = colls.Create(context.Background(), sch)
	require.NoError(t, err)

	docs := document.New(colls, &mockEmbedder{vec: []float32{1, 0, 0, 0}})
	for _, raw := range []map[string]any{
		{"id": "0", "title": "Title 0", "points": 0, "emb": []any{0.0, 0.0, 0.0, 1.0},
			"vec": []any{0.851758, 0.909671, 0.823431, 0.372063}},
		{"id": "1", "title": "Title 1", "points": 1, "emb": []any{0.0, 0.0, 1.0, 0.0},
			"vec": []any{0.97826, 0.933157, 0.39557, 0.306488}},
		{"id": "2", "title": "Title 2 other", "points": 2, "emb": []any{0.0, 1.0, 0.0, 0.0},
			"vec": []any{0.230606, 0.634397, 0.514009, 0.399594}},
		{"id": "3", "title": "no vector", "points": 3},
	} {
		_, err := docs.Write(context.Background(), "coll1", raw, coercion.Create, coercion.CoerceOrReject)
		require.NoError(t, err)
	}
	return New(colls, emb)
}

func newRequest(t *testing.T, q string, queryBy []string, vq string, expr filter.Expression) *request.Request {
	t.Helper()
	req, err := request.New(q, queryBy, vq, expr, 0, false)
	require.NoError(t, err)
	return &req
}

func hitIDs(resp result.Response) []string {
	out := make([]string, 0, len(resp.Hits()))
	for _, h := range resp.Hits() {
		out = append(out, h.ID())
	}
	return out
}

const queryVector = "vec:([0.96826, 0.94, 0.39557, 0.306488])"

// --- Semantic ---

func TestSearch_VectorOrdering(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Search(context.Background(), "coll1", newRequest(t, "*", nil, queryVector, filter.Expression{}))
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Found())
	assert.Equal(t, []string{"1", "0", "2"}, hitIDs(resp))

	want := []float32{3.4099e-5, 0.04330, 0.15142}
	for i, h := range resp.Hits() {
		require.NotNil(t, h.VectorDistance())
		assert.InDelta(t, want[i], *h.VectorDistance(), 1e-4)
		assert.Nil(t, h.TextMatch())
		assert.Nil(t, h.RankFusionScore())
		_, hasVec := h.Document()["vec"]
		assert.False(t, hasVec, "vectors are stripped unless requested")
	}
}

func TestSearch_DistanceThresholdAndK(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Search(context.Background(), "coll1", newRequest(t, "*", nil,
		"vec:([0.96826, 0.94, 0.39557, 0.306488], distance_threshold: 0.01)", filter.Expression{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, hitIDs(resp))

	resp, err = svc.Search(context.Background(), "coll1", newRequest(t, "*", nil,
		"vec:([0.96826, 0.94, 0.39557, 0.306488], k: 2)", filter.Expression{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "0"}, hitIDs(resp))
}

func TestSearch_ReferenceExcludesSelf(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Search(context.Background(), "coll1", newRequest(t, "*", nil, "vec:([], id: 1)", filter.Expression{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2"}, hitIDs(resp))
}

func TestSearch_VectorQueryErrors(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		vq   string
		msg  string
		kind error
	}{
		{"title:([1, 2, 3, 4])", "Field `title` does not have a vector query index.", domain.ErrInvalidQuery},
		{"nope:([1, 2, 3, 4])", "Field `nope` does not have a vector query index.", domain.ErrInvalidQuery},
		{"vec:([1, 2])", "Query field `vec` must have 4 dimensions.", domain.ErrDimensionMismatch},
		{"vec:([], id: 99)", "Document id referenced in vector query is not found.", domain.ErrReferenceNotFound},
		{"vec:([], id: 3)", "Document referenced in vector query does not have the field `vec`.", domain.ErrReferenceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.vq, func(t *testing.T) {
			_, err := svc.Search(context.Background(), "coll1", newRequest(t, "*", nil, tt.vq, filter.Expression{}))
			require.Error(t, err)
			assert.Equal(t, tt.msg, err.Error())
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

// --- Keyword ---

func TestSearch_Keyword(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Search(context.Background(), "coll1", newRequest(t, "other", []string{"title"}, "", filter.Expression{}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Found())
	require.Equal(t, []string{"2"}, hitIDs(resp))
	assert.NotNil(t, resp.Hits()[0].TextMatch())
	assert.Nil(t, resp.Hits()[0].VectorDistance())
}

func TestSearch_WildcardKeywordFiltered(t *testing.T) {
	svc := newTestService(t, nil)

	gte := 2.0
	r, err := filter.NewRangeFilter(nil, &gte, nil, nil)
	require.NoError(t, err)
	c, err := filter.NewRange("points", r)
	require.NoError(t, err)
	expr, err := filter.NewExpression([]filter.Condition{c}, nil, nil)
	require.NoError(t, err)

	resp, err := svc.Search(context.Background(), "coll1", newRequest(t, "*", nil, "", expr))
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, hitIDs(resp))
}

func TestSearch_QueryByErrors(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Search(context.Background(), "coll1", newRequest(t, "x", []string{"missing"}, "", filter.Expression{}))
	require.Error(t, err)
	assert.Equal(t, "Could not find a field named `missing` in the schema.", err.Error())

	_, err = svc.Search(context.Background(), "coll1", newRequest(t, "x", []string{"points"}, "", filter.Expression{}))
	require.Error(t, err)
	assert.Equal(t, "Field `points` should be a string or a string array.", err.Error())
}

func TestSearch_FilterOnVectorField(t *testing.T) {
	svc := newTestService(t, nil)

	c, err := filter.NewMatch("vec", "1")
	require.NoError(t, err)
	expr, err := filter.NewExpression([]filter.Condition{c}, nil, nil)
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), "coll1", newRequest(t, "*", nil, queryVector, expr))
	require.Error(t, err)
	assert.Equal(t, "Cannot filter on vector field `vec`.", err.Error())
}

// --- Hybrid ---

func TestSearch_HybridFusesRankings(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Search(context.Background(), "coll1", newRequest(t, "other", []string{"title"}, queryVector, filter.Expression{}))
	require.NoError(t, err)
	require.Equal(t, 3, resp.Found())

	// doc 2: text rank 1, vector rank 3 -> 0.7 + 0.1
	// doc 1: vector rank 1 -> 0.3
	// doc 0: vector rank 2 -> 0.15
	assert.Equal(t, []string{"2", "1", "0"}, hitIDs(resp))
	top := resp.Hits()[0]
	require.NotNil(t, top.RankFusionScore())
	assert.InDelta(t, 0.8, *top.RankFusionScore(), 1e-9)
	assert.NotNil(t, top.TextMatch())
	assert.NotNil(t, top.VectorDistance())

	assert.Nil(t, resp.Hits()[1].TextMatch())
}

func TestSearch_EmbeddingFieldInQueryBy(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{0, 1, 0, 0}}
	svc := newTestService(t, emb)

	resp, err := svc.Search(context.Background(), "coll1", newRequest(t, "anything", []string{"emb"}, "", filter.Expression{}))
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)
	require.NotEmpty(t, resp.Hits())
	assert.Equal(t, "2", resp.Hits()[0].ID())
	assert.Nil(t, resp.Hits()[0].RankFusionScore(), "semantic only")
}

func TestSearch_EmbedderFailure(t *testing.T) {
	svc := newTestService(t, &mockEmbedder{err: domain.ErrRateLimited})

	_, err := svc.Search(context.Background(), "coll1", newRequest(t, "x", []string{"title", "emb"}, "", filter.Expression{}))
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestSearch_CollectionNotFound(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Search(context.Background(), "missing", newRequest(t, "*", nil, "", filter.Expression{}))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
