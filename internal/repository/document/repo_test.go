package document

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	domdoc "github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/filter"
)

// --- Upsert / Get ---

func TestUpsert_CreateThenReplace(t *testing.T) {
	repo := New()
	seq := repo.NextSeq()

	if created := repo.Upsert(testDocument(t, "doc-1", seq, map[string]any{"title": "a"})); !created {
		t.Fatal("expected created=true for new doc")
	}
	if created := repo.Upsert(testDocument(t, "doc-1", seq, map[string]any{"title": "b"})); created {
		t.Fatal("expected created=false for existing doc")
	}

	got, err := repo.Get("doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := got.Get("title"); v != "b" {
		t.Errorf("title = %v, want b", v)
	}
	if repo.Count() != 1 {
		t.Errorf("Count() = %d, want 1", repo.Count())
	}
}

func TestUpsert_NewSeqReplacesOld(t *testing.T) {
	repo := New()
	repo.Upsert(testDocument(t, "doc-1", repo.NextSeq(), nil))
	next := repo.NextSeq()
	repo.Upsert(testDocument(t, "doc-1", next, nil))

	if _, ok := repo.GetBySeq(0); ok {
		t.Error("old sequence id should be gone")
	}
	doc, ok := repo.GetBySeq(next)
	if !ok || doc.ID() != "doc-1" {
		t.Errorf("GetBySeq(%d) = %v, %v", next, doc.ID(), ok)
	}
	if repo.All().GetCardinality() != 1 {
		t.Errorf("All() cardinality = %d, want 1", repo.All().GetCardinality())
	}
}

func TestNextSeq_Monotonic(t *testing.T) {
	repo := New()
	repo.Upsert(testDocument(t, "x", 41, nil))
	if got := repo.NextSeq(); got != 42 {
		t.Errorf("NextSeq() = %d, want 42", got)
	}
	if got := repo.NextSeq(); got != 43 {
		t.Errorf("NextSeq() = %d, want 43", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New()
	_, err := repo.Get("missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	repo := New()
	repo.Upsert(testDocument(t, "doc-1", repo.NextSeq(), map[string]any{"title": "a"}))

	doc, err := repo.Delete("doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "doc-1" {
		t.Errorf("deleted id = %q", doc.ID())
	}
	if repo.Count() != 0 {
		t.Errorf("Count() = %d, want 0", repo.Count())
	}
	if _, err := repo.Delete("doc-1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

// --- List ---

func TestList_Pagination(t *testing.T) {
	repo := New()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		repo.Upsert(testDocument(t, id, repo.NextSeq(), nil))
	}
	if _, err := repo.Delete("c"); err != nil {
		t.Fatal(err)
	}

	var ids []string
	cursor := ""
	pages := 0
	for {
		docs, next, err := repo.List(cursor, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, d := range docs {
			ids = append(ids, d.ID())
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
	}

	want := []string{"a", "b", "d", "e"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
}

func TestList_InvalidCursor(t *testing.T) {
	repo := New()
	_, _, err := repo.List("abc", 10)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

// --- Filter ---

func TestFilter(t *testing.T) {
	repo := New()
	sch := testSchema(t)
	repo.Upsert(testDocument(t, "a", 0, map[string]any{"genre": "rock", "year": json.Number("1999")}))
	repo.Upsert(testDocument(t, "b", 1, map[string]any{"genre": "jazz", "year": json.Number("2005")}))
	repo.Upsert(testDocument(t, "c", 2, map[string]any{"tags": []any{"rock", "live"}, "year": json.Number("2010")}))

	tests := []struct {
		name string
		expr filter.Expression
		want []uint32
	}{
		{"match", expr(t, []filter.Condition{match(t, "genre", "rock")}, nil, nil), []uint32{0}},
		{"array element", expr(t, []filter.Condition{match(t, "tags", "live")}, nil, nil), []uint32{2}},
		{"range", expr(t, []filter.Condition{gte(t, "year", 2005)}, nil, nil), []uint32{1, 2}},
		{"should", expr(t, nil, []filter.Condition{match(t, "genre", "jazz"), match(t, "tags", "rock")}, nil), []uint32{1, 2}},
		{"must_not", expr(t, nil, nil, []filter.Condition{match(t, "genre", "rock")}), []uint32{1, 2}},
		{"id", expr(t, []filter.Condition{match(t, "id", "b")}, nil, nil), []uint32{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm, err := repo.Filter(sch, tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := bm.ToArray()
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFilter_Empty(t *testing.T) {
	repo := New()
	bm, err := repo.Filter(testSchema(t), filter.Expression{})
	if err != nil || bm != nil {
		t.Fatalf("Filter(empty) = %v, %v; want nil, nil", bm, err)
	}
}

func TestFilter_InvalidKeys(t *testing.T) {
	repo := New()
	sch := testSchema(t)

	tests := []struct {
		key  string
		want string
	}{
		{"vec", "Cannot filter on vector field `vec`."},
		{"nope", "Could not find a filter field named `nope` in the schema."},
	}
	for _, tt := range tests {
		_, err := repo.Filter(sch, expr(t, []filter.Condition{match(t, tt.key, "x")}, nil, nil))
		if err == nil {
			t.Fatalf("expected error for %q", tt.key)
		}
		if err.Error() != tt.want {
			t.Errorf("error = %q, want %q", err.Error(), tt.want)
		}
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("error should wrap ErrInvalidQuery")
		}
	}
}

// --- helpers ---

func testDocument(t *testing.T, id string, seq uint32, fields map[string]any) domdoc.Document {
	t.Helper()
	doc, err := domdoc.New(id, seq, fields)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	genre, _ := field.New("genre", field.String, field.Optional())
	tags, _ := field.New("tags", field.StringArray, field.Optional())
	year, _ := field.New("year", field.Int32)
	vec, err := field.New("vec", field.FloatArray, field.NumDim(4), field.Optional())
	if err != nil {
		t.Fatalf("create field: %v", err)
	}
	sch, err := schema.New("music", []field.Field{genre, tags, year, vec}, "")
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return sch
}

func match(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func gte(t *testing.T, key string, v float64) filter.Condition {
	t.Helper()
	r, err := filter.NewRangeFilter(nil, &v, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := filter.NewRange(key, r)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func expr(t *testing.T, must, should, mustNot []filter.Condition) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		t.Fatal(err)
	}
	return e
}
