package batch

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	dombatch "github.com/kailas-cloud/fusiondex/internal/domain/batch"
	"github.com/kailas-cloud/fusiondex/internal/domain/coercion"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
	"github.com/kailas-cloud/fusiondex/internal/usecase/document"
	"github.com/kailas-cloud/fusiondex/internal/vectorindex"
)

// --- Mocks ---

type mockEmbedder struct {
	callCount  int
	failAfter  int // fail after N successful calls; 0 = never
	err        error
	batchCalls int
	batchTexts []string
	batchErr   error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.callCount++
	if m.failAfter > 0 && m.callCount > m.failAfter {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 1}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.batchTexts = append(m.batchTexts, texts...)
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1}
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

// --- Import ---

func TestImport_MixedResults(t *testing.T) {
	svc, colls := newTestService(t, &mockEmbedder{})

	items := []map[string]any{
		{"id": "a", "title": "one", "points": 1},
		{"id": "b", "title": "two"},
		{"id": "c", "title": "three", "points": "3"},
		{"id": "a", "title": "dup", "points": 4},
	}
	results := svc.Import(context.Background(), "items", items, coercion.Create, coercion.CoerceOrReject)

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	want := []dombatch.ItemStatus{dombatch.StatusOK, dombatch.StatusError, dombatch.StatusOK, dombatch.StatusError}
	for i, r := range results {
		if r.Status() != want[i] {
			t.Errorf("results[%d].Status() = %s, want %s (%v)", i, r.Status(), want[i], r.Err())
		}
		if r.Position() != i {
			t.Errorf("results[%d].Position() = %d", i, r.Position())
		}
	}
	if results[1].Message() != "Field `points` has been declared in the schema, but is not found in the document." {
		t.Errorf("message = %q", results[1].Message())
	}
	if results[1].Document()["title"] != "two" {
		t.Error("failed item should echo its document")
	}
	if results[3].Message() != "A document with id a already exists." {
		t.Errorf("message = %q", results[3].Message())
	}
	if dombatch.NumImported(results) != 2 {
		t.Errorf("NumImported = %d, want 2", dombatch.NumImported(results))
	}

	h, _ := colls.Get(context.Background(), "items")
	if h.Documents().Count() != 2 {
		t.Errorf("stored = %d, want 2", h.Documents().Count())
	}
}

func TestImport_AppliesInOrder(t *testing.T) {
	svc, colls := newTestService(t, &mockEmbedder{})

	items := []map[string]any{
		{"id": "a", "title": "first", "points": 1},
		{"id": "a", "title": "second"},
	}
	results := svc.Import(context.Background(), "items", items, coercion.Emplace, coercion.CoerceOrReject)
	if dombatch.NumImported(results) != 2 {
		t.Fatalf("NumImported = %d, want 2", dombatch.NumImported(results))
	}

	h, _ := colls.Get(context.Background(), "items")
	doc, err := h.Documents().Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Get("title"); v != "second" {
		t.Errorf("title = %v, want second", v)
	}
}

func TestImport_RateLimitCascades(t *testing.T) {
	emb := &mockEmbedder{}
	svc, _ := newTestService(t, emb)
	ctx := context.Background()

	seed := []map[string]any{
		{"id": "a", "title": "one", "points": 1},
		{"id": "b", "title": "two", "points": 2},
		{"id": "c", "title": "three", "points": 3},
		{"id": "d", "title": "four", "points": 4},
	}
	if n := dombatch.NumImported(svc.Import(ctx, "items", seed, coercion.Create, coercion.CoerceOrReject)); n != 4 {
		t.Fatalf("seeded %d, want 4", n)
	}

	emb.failAfter, emb.err = 1, domain.ErrRateLimited
	items := []map[string]any{
		{"id": "a", "title": "uno"},
		{"id": "b", "title": "dos"},
		{"id": "c", "title": "tres"},
		{"id": "d", "title": "cuatro"},
	}
	results := svc.Import(ctx, "items", items, coercion.Update, coercion.CoerceOrReject)

	if results[0].Status() != dombatch.StatusOK {
		t.Errorf("results[0] should succeed: %v", results[0].Err())
	}
	for i := 1; i < 4; i++ {
		if !errors.Is(results[i].Err(), domain.ErrRateLimited) {
			t.Errorf("results[%d] should cascade rate limit, got %v", i, results[i].Err())
		}
		if results[i].Position() != i {
			t.Errorf("results[%d].Position() = %d", i, results[i].Position())
		}
	}
	if emb.callCount != 2 {
		t.Errorf("embedder calls = %d, want 2", emb.callCount)
	}
}

func TestImport_EmbedsInOneBatchCall(t *testing.T) {
	emb := &mockEmbedder{}
	svc, colls := newTestService(t, emb)

	items := []map[string]any{
		{"id": "a", "title": "one", "points": 1},
		{"id": "b", "title": "two", "points": "nope"},
		{"id": "c", "title": "three", "points": 3, "emb": []any{1.0, 0.0}},
		{"id": "d", "title": "four", "points": 4},
	}
	results := svc.Import(context.Background(), "items", items, coercion.Create, coercion.CoerceOrReject)
	if n := dombatch.NumImported(results); n != 3 {
		t.Fatalf("NumImported = %d, want 3", n)
	}
	if emb.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", emb.batchCalls)
	}
	if emb.callCount != 0 {
		t.Errorf("single embed calls = %d, want 0", emb.callCount)
	}
	if len(emb.batchTexts) != 2 || emb.batchTexts[0] != "one" || emb.batchTexts[1] != "four" {
		t.Errorf("batch texts = %v, want [one four]", emb.batchTexts)
	}

	h, _ := colls.Get(context.Background(), "items")
	doc, err := h.Documents().Get("d")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Get("emb"); !reflect.DeepEqual(v, []any{0.0, 1.0}) {
		t.Errorf("emb = %#v, want batch vector", v)
	}
	vec, _ := h.Vectors().Get("emb")
	if vec.Stats().Live != 3 {
		t.Errorf("vector live = %d, want 3", vec.Stats().Live)
	}
}

func TestImport_BatchEmbedFailureFailsValidItems(t *testing.T) {
	emb := &mockEmbedder{batchErr: domain.ErrRateLimited}
	svc, colls := newTestService(t, emb)

	items := []map[string]any{
		{"id": "a", "title": "one", "points": 1},
		{"id": "b", "title": "two"},
		{"id": "c", "title": "three", "points": 3},
	}
	results := svc.Import(context.Background(), "items", items, coercion.Create, coercion.CoerceOrReject)

	for _, i := range []int{0, 2} {
		if !errors.Is(results[i].Err(), domain.ErrRateLimited) {
			t.Errorf("results[%d] = %v, want ErrRateLimited", i, results[i].Err())
		}
	}
	if !errors.Is(results[1].Err(), domain.ErrSchemaViolation) {
		t.Errorf("results[1] = %v, want its own validation error", results[1].Err())
	}
	h, _ := colls.Get(context.Background(), "items")
	if h.Documents().Count() != 0 {
		t.Errorf("stored = %d, want 0", h.Documents().Count())
	}
}

func TestImport_ExceedsMaxBatchSize(t *testing.T) {
	svc, _ := newTestService(t, &mockEmbedder{})
	svc.WithMaxBatchSize(2)

	items := []map[string]any{{"id": "a"}, {"id": "b"}, {"id": "c"}}
	results := svc.Import(context.Background(), "items", items, coercion.Create, coercion.CoerceOrReject)
	for i, r := range results {
		if !errors.Is(r.Err(), domain.ErrInvalidQuery) {
			t.Errorf("results[%d] = %v, want ErrInvalidQuery", i, r.Err())
		}
		if r.ID() != items[i]["id"] {
			t.Errorf("results[%d].ID() = %q", i, r.ID())
		}
	}
}

func TestImport_CollectionNotFound(t *testing.T) {
	svc, _ := newTestService(t, &mockEmbedder{})

	results := svc.Import(context.Background(), "missing", []map[string]any{{"id": "a"}}, coercion.Create, coercion.CoerceOrReject)
	if !errors.Is(results[0].Err(), domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", results[0].Err())
	}
}

// --- helpers ---

func newTestService(t *testing.T, emb document.Embedder) (*Service, *collection.Repo) {
	t.Helper()
	colls := collection.New(vectorindex.Config{})
	if _, err := colls.Create(context.Background(), testSchema(t)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = colls.Close() })
	return New(document.New(colls, emb), colls).WithConcurrency(2), colls
}

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	title, err := field.New("title", field.String)
	if err != nil {
		t.Fatal(err)
	}
	points, err := field.New("points", field.Int32)
	if err != nil {
		t.Fatal(err)
	}
	emb, err := field.New("emb", field.FloatArray, field.NumDim(2),
		field.WithEmbed(field.NewEmbed([]string{"title"}, "test-model")))
	if err != nil {
		t.Fatal(err)
	}
	sch, err := schema.New("items", []field.Field{title, points, emb}, "")
	if err != nil {
		t.Fatal(err)
	}
	return sch
}
