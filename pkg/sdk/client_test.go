package fusiondex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var productFields = []Field{
	{Name: "title", Type: FieldString},
	{Name: "points", Type: FieldInt32},
	{Name: "vec", Type: FieldFloatArray, NumDim: 4, Optional: true},
}

type fakeEmbedder struct {
	calls []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	f.calls = append(f.calls, text)
	v := []float32{0, 0, 0, 1}
	if strings.Contains(text, "shoes") {
		v = []float32{1, 0, 0, 0}
	}
	return EmbeddingResult{Embedding: v, PromptTokens: 2, TotalTokens: 2}, nil
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedProducts(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Collections().Create(ctx, "products", productFields, "points"); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	docs := []Document{
		{"id": "1", "title": "red shoes", "points": 1, "vec": []float32{1, 0, 0, 0}},
		{"id": "2", "title": "blue shoes", "points": 2, "vec": []float32{0, 1, 0, 0}},
		{"id": "3", "title": "green hat", "points": 3},
	}
	for _, d := range docs {
		if _, err := c.Documents("products").Create(ctx, d); err != nil {
			t.Fatalf("create document %v: %v", d["id"], err)
		}
	}
}

func TestCollections_Lifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	info, err := c.Collections().Create(ctx, "products", productFields, "points")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.Name != "products" || len(info.Fields) != 3 || info.DefaultSortingField != "points" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if vec := info.Fields[2]; vec.NumDim != 4 || vec.Distance != DistanceCosine {
		t.Errorf("vec field = %+v", vec)
	}
	if info.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	if _, err := c.Collections().Create(ctx, "products", productFields); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	ensured, err := c.Collections().Ensure(ctx, "products", nil)
	if err != nil || ensured.Name != "products" {
		t.Errorf("Ensure existing = %+v, %v", ensured, err)
	}
	if _, err := c.Collections().Ensure(ctx, "brands", []Field{{Name: "name", Type: FieldString}}); err != nil {
		t.Errorf("Ensure new: %v", err)
	}

	list, err := c.Collections().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List = %+v", list)
	}

	dropped, err := c.Collections().DropField(ctx, "products", "vec")
	if err != nil {
		t.Fatalf("DropField: %v", err)
	}
	if len(dropped.Fields) != 2 {
		t.Errorf("fields after drop = %d, want 2", len(dropped.Fields))
	}

	if _, err := c.Collections().Delete(ctx, "products"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Collections().Get(ctx, "products"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCollections_InvalidSchema(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Collections().Create(context.Background(), "bad", []Field{
		{Name: "vec", Type: FieldFloatArray, NumDim: 4, Distance: "hamming"},
	})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	if _, ok := Message(err); !ok {
		t.Error("schema errors should carry a message")
	}
}

func TestDocuments_WriteRules(t *testing.T) {
	c := newTestClient(t)
	seedProducts(t, c)
	ctx := context.Background()
	docs := c.Documents("products")

	if _, err := docs.Create(ctx, Document{"id": "1", "title": "x", "points": 1}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create: expected ErrAlreadyExists, got %v", err)
	}
	if _, err := docs.Update(ctx, Document{"id": "9", "points": 1}); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("update missing: expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := docs.Create(ctx, Document{"id": "4", "title": "x", "points": "many"}); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("bad int: expected ErrSchemaViolation, got %v", err)
	}
	if _, err := docs.Create(ctx, Document{"id": "4", "title": "x", "points": "5"}, WithDirtyValues(DirtyReject)); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("reject policy: expected ErrSchemaViolation, got %v", err)
	}
	if _, err := docs.Create(ctx, Document{"id": "4", "title": "x", "points": 1, "vec": []float32{1, 0}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("short vector: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := docs.Create(ctx, Document{"id": "4", "title": "x", "points": 1}, WithDirtyValues("sometimes")); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("bad policy: expected ErrInvalidQuery, got %v", err)
	}

	updated, err := docs.Update(ctx, Document{"id": "3", "points": 30})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["title"] != "green hat" {
		t.Errorf("update must keep untouched fields, got %v", updated)
	}

	if _, err := docs.Emplace(ctx, Document{"id": "5", "title": "socks", "points": 5}); err != nil {
		t.Errorf("Emplace new: %v", err)
	}
	if _, err := docs.Upsert(ctx, Document{"id": "5", "title": "wool socks", "points": 6}); err != nil {
		t.Errorf("Upsert: %v", err)
	}
	got, err := docs.Get(ctx, "5")
	if err != nil || got["title"] != "wool socks" {
		t.Errorf("Get = %v, %v", got, err)
	}

	n, err := docs.Count(ctx)
	if err != nil || n != 4 {
		t.Errorf("Count = %d, %v; want 4", n, err)
	}
}

func TestDocuments_ListAndDelete(t *testing.T) {
	c := newTestClient(t, WithPagination(2, 10))
	seedProducts(t, c)
	ctx := context.Background()
	docs := c.Documents("products")

	page, err := docs.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Documents) != 2 || page.NextCursor == "" {
		t.Fatalf("first page = %d docs, cursor %q", len(page.Documents), page.NextCursor)
	}
	rest, err := docs.List(ctx, page.NextCursor, 0)
	if err != nil {
		t.Fatalf("List next: %v", err)
	}
	if len(rest.Documents) != 1 || rest.NextCursor != "" {
		t.Errorf("second page = %d docs, cursor %q", len(rest.Documents), rest.NextCursor)
	}

	deleted, err := docs.Delete(ctx, "1")
	if err != nil || deleted["id"] != "1" {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if _, err := docs.Get(ctx, "1"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := c.Documents("missing").Get(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing collection, got %v", err)
	}
}

func TestDocuments_Import(t *testing.T) {
	c := newTestClient(t)
	seedProducts(t, c)
	ctx := context.Background()

	results, err := c.Documents("products").Import(ctx, []Document{
		{"id": "10", "title": "cap", "points": 1},
		{"id": "1", "title": "dup", "points": 1},
		{"id": "11", "title": "scarf", "points": 2, "vec": []float64{0, 0, 1, 0}},
	}, ActionCreate)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].OK || results[1].OK || !results[2].OK {
		t.Errorf("statuses = %v %v %v", results[0].OK, results[1].OK, results[2].OK)
	}
	if !errors.Is(results[1].Err, ErrAlreadyExists) || results[1].Document["title"] != "dup" {
		t.Errorf("failed item = %+v", results[1])
	}
	for i, r := range results {
		if r.Position != i {
			t.Errorf("results[%d].Position = %d", i, r.Position)
		}
	}

	if _, err := c.Documents("products").Import(ctx, nil, "replace"); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("bad action: expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	c := newTestClient(t)
	seedProducts(t, c)
	ctx := context.Background()
	search := c.Search("products")

	t.Run("keyword", func(t *testing.T) {
		res, err := search.Query(ctx, SearchParams{Q: "shoes", QueryBy: []string{"title"}})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res.Found != 2 || len(res.Hits) != 2 {
			t.Fatalf("found = %d, hits = %d", res.Found, len(res.Hits))
		}
		for _, h := range res.Hits {
			if h.TextMatch == nil || h.VectorDistance != nil || h.RankFusionScore != nil {
				t.Errorf("keyword hit scores = %+v", h)
			}
		}
	})

	t.Run("vector", func(t *testing.T) {
		res, err := search.Vector(ctx, "vec", []float32{1, 0, 0, 0}, 2)
		if err != nil {
			t.Fatalf("Vector: %v", err)
		}
		if len(res.Hits) != 2 || res.Hits[0].ID != "1" || res.Hits[1].ID != "2" {
			t.Fatalf("hits = %+v", res.Hits)
		}
		if _, ok := res.Hits[0].Document["vec"]; ok {
			t.Error("vectors must be stripped unless IncludeVectors is set")
		}
	})

	t.Run("hybrid", func(t *testing.T) {
		res, err := search.Query(ctx, SearchParams{
			Q:           "shoes",
			QueryBy:     []string{"title"},
			VectorQuery: "vec:([0, 1, 0, 0], k: 2)",
		})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(res.Hits) != 2 {
			t.Fatalf("hits = %d, want 2", len(res.Hits))
		}
		for _, h := range res.Hits {
			if h.RankFusionScore == nil {
				t.Errorf("hybrid hit %s lacks a fusion score", h.ID)
			}
		}
	})

	t.Run("filter", func(t *testing.T) {
		gte := 2.0
		res, err := search.Query(ctx, SearchParams{
			Q:      "*",
			Filter: &FilterExpression{Must: []FilterCondition{{Key: "points", Range: &RangeFilter{GTE: &gte}}}},
		})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res.Found != 2 {
			t.Errorf("found = %d, want 2", res.Found)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			params SearchParams
			want   error
		}{
			{SearchParams{Q: "shoes"}, ErrInvalidQuery},
			{SearchParams{Q: "*", VectorQuery: "vec:[1]"}, ErrInvalidQuery},
			{SearchParams{Q: "*", VectorQuery: "vec:([1, 0])"}, ErrDimensionMismatch},
			{SearchParams{Q: "*", VectorQuery: "vec:([], id: 42)"}, ErrReferenceNotFound},
			{SearchParams{Q: "*", Filter: &FilterExpression{Must: []FilterCondition{
				{Key: "points", Match: "1", Range: &RangeFilter{}},
			}}}, ErrInvalidQuery},
		}
		for _, tt := range tests {
			if _, err := search.Query(ctx, tt.params); !errors.Is(err, tt.want) {
				t.Errorf("Query(%+v) error = %v, want %v", tt.params, err, tt.want)
			}
		}
	})
}

func TestEmbedder_Wiring(t *testing.T) {
	emb := &fakeEmbedder{}
	c := newTestClient(t, WithEmbedder(emb), WithInstructions("passage: ", "query: "))
	ctx := context.Background()

	_, err := c.Collections().Create(ctx, "notes", []Field{
		{Name: "text", Type: FieldString},
		{Name: "emb", Type: FieldFloatArray, NumDim: 4, EmbedFrom: []string{"text"}},
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := c.Documents("notes").Create(ctx, Document{"id": "a", "text": "running shoes"}); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if len(emb.calls) != 1 || emb.calls[0] != "passage: running shoes" {
		t.Errorf("document embed calls = %q", emb.calls)
	}

	res, err := c.Search("notes").Query(ctx, SearchParams{Q: "shoes", QueryBy: []string{"emb"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "a" {
		t.Errorf("hits = %+v", res.Hits)
	}
	if emb.calls[len(emb.calls)-1] != "query: shoes" {
		t.Errorf("query embed calls = %q", emb.calls)
	}
}

func TestWithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, WithPrometheus(reg))
	seedProducts(t, c)

	if _, err := c.Collections().Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error")
	}
	newTestClient(t, WithPrometheus(reg))

	series, err := testutil.GatherAndCount(reg, "fusiondex_vector_index_capacity")
	if err != nil {
		t.Fatal(err)
	}
	if series != 1 {
		t.Errorf("index capacity series = %d, want 1", series)
	}
	count, err := testutil.GatherAndCount(reg, "fusiondex_sdk_operations_total")
	if err != nil {
		t.Fatal(err)
	}
	if count == 0 {
		t.Error("operations_total should have samples")
	}
}

func TestFormatVectorQuery(t *testing.T) {
	got := formatVectorQuery("vec", []float32{0.5, -1, 2}, 3)
	if want := "vec:([0.5,-1,2], k: 3)"; got != want {
		t.Errorf("formatVectorQuery = %q, want %q", got, want)
	}
	if got := formatVectorQuery("vec", []float32{1}, 0); got != "vec:([1])" {
		t.Errorf("formatVectorQuery without k = %q", got)
	}
}

type fakeBatchEmbedder struct {
	fakeEmbedder
	batches [][]string
}

func (f *fakeBatchEmbedder) BatchEmbed(_ context.Context, texts []string) ([]EmbeddingResult, error) {
	f.batches = append(f.batches, texts)
	out := make([]EmbeddingResult, len(texts))
	for i := range texts {
		out[i] = EmbeddingResult{Embedding: []float32{0, 1, 0, 0}, TotalTokens: 1}
	}
	return out, nil
}

func TestEmbedder_ImportBatches(t *testing.T) {
	emb := &fakeBatchEmbedder{}
	c := newTestClient(t, WithEmbedder(emb), WithInstructions("passage: ", ""))
	ctx := context.Background()

	_, err := c.Collections().Create(ctx, "notes", []Field{
		{Name: "text", Type: FieldString},
		{Name: "emb", Type: FieldFloatArray, NumDim: 4, EmbedFrom: []string{"text"}},
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	results, err := c.Documents("notes").Import(ctx, []Document{
		{"id": "a", "text": "first"},
		{"id": "b", "text": "second"},
	}, ActionCreate)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	for _, r := range results {
		if !r.OK {
			t.Errorf("import result = %+v", r)
		}
	}
	if len(emb.batches) != 1 || len(emb.batches[0]) != 2 || emb.batches[0][1] != "passage: second" {
		t.Errorf("batches = %q", emb.batches)
	}
	if len(emb.calls) != 0 {
		t.Errorf("single embed calls = %q", emb.calls)
	}
}

func TestCollections_EmbeddingModelMismatch(t *testing.T) {
	c := newTestClient(t, WithEmbedder(&fakeEmbedder{}), WithEmbeddingModel("bge-small"))
	ctx := context.Background()

	fields := func(model string) []Field {
		return []Field{
			{Name: "text", Type: FieldString},
			{Name: "emb", Type: FieldFloatArray, NumDim: 4, EmbedFrom: []string{"text"}, EmbedModel: model},
		}
	}
	if _, err := c.Collections().Create(ctx, "wrong", fields("e5-large")); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	info, err := c.Collections().Create(ctx, "right", fields("bge-small"))
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if got := info.Fields[1].EmbedModel; got != "bge-small" {
		t.Errorf("EmbedModel = %q", got)
	}
}
