// Package text is the in-memory full-text index of a collection, backed by bleve.
package text

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/fusiondex/internal/domain/document"
)

// Wildcard matches every indexed document.
const Wildcard = "*"

// analyzerName is a unicode tokenizer with lowercasing and no stop word removal.
const analyzerName = "fusiondex"

// DefaultLimit is the number of matches returned when none is requested.
const DefaultLimit = 10

// Query describes one text search.
type Query struct {
	Text   string
	Fields []string
	// Filter restricts results to these sequence ids. nil means no restriction.
	Filter *roaring.Bitmap
	Limit  int
}

// Match is one ranked text hit.
type Match struct {
	Seq   uint32
	ID    string
	Score float64
}

// Result holds the ranked matches and the total number of matching documents.
type Result struct {
	Total   int
	Matches []Match
}

// Index indexes the text fields of documents.
type Index struct {
	index bleve.Index

	mu   sync.RWMutex
	seqs map[string]uint32
	ids  map[uint32]string
}

// New creates an in-memory text index.
func New() (*Index, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(analyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("text analyzer: %w", err)
	}
	m.DefaultAnalyzer = analyzerName

	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("create text index: %w", err)
	}
	return &Index{
		index: idx,
		seqs:  make(map[string]uint32),
		ids:   make(map[uint32]string),
	}, nil
}

// Put indexes the given fields of doc, replacing any previous version.
// Only string and string[] values are indexed.
func (x *Index) Put(doc document.Document, fields []string) error {
	data := make(map[string]any, len(fields))
	for _, name := range fields {
		v, ok := doc.Get(name)
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			data[name] = t
		case []any:
			vals := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					vals = append(vals, s)
				}
			}
			data[name] = vals
		}
	}

	if err := x.index.Index(doc.ID(), data); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID(), err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if prev, ok := x.seqs[doc.ID()]; ok && prev != doc.SeqID() {
		delete(x.ids, prev)
	}
	x.seqs[doc.ID()] = doc.SeqID()
	x.ids[doc.SeqID()] = doc.ID()
	return nil
}

// Delete removes a document from the index.
func (x *Index) Delete(id string) error {
	if err := x.index.Delete(id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if seq, ok := x.seqs[id]; ok {
		delete(x.ids, seq)
		delete(x.seqs, id)
	}
	return nil
}

// Search ranks documents by relevance to q. Ties are ordered by document id.
func (x *Index) Search(ctx context.Context, q Query) (Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	bq := x.buildQuery(q.Text, q.Fields)
	if q.Filter != nil {
		ids := x.docIDs(q.Filter)
		if len(ids) == 0 {
			return Result{}, nil
		}
		bq = bleve.NewConjunctionQuery(bq, bleve.NewDocIDQuery(ids))
	}

	req := bleve.NewSearchRequestOptions(bq, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("text search: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	out := Result{Total: int(res.Total), Matches: make([]Match, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		seq, ok := x.seqs[hit.ID]
		if !ok {
			continue
		}
		out.Matches = append(out.Matches, Match{Seq: seq, ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (x *Index) Count() (int, error) {
	n, err := x.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("text doc count: %w", err)
	}
	return int(n), nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}

func (x *Index) buildQuery(text string, fields []string) query.Query {
	if text == Wildcard || text == "" {
		return bleve.NewMatchAllQuery()
	}
	if len(fields) == 1 {
		return matchQuery(text, fields[0])
	}
	disjunction := bleve.NewDisjunctionQuery()
	for _, f := range fields {
		disjunction.AddQuery(matchQuery(text, f))
	}
	return disjunction
}

func matchQuery(text, f string) query.Query {
	mq := bleve.NewMatchQuery(text)
	mq.SetField(f)
	return mq
}

func (x *Index) docIDs(filter *roaring.Bitmap) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ids := make([]string, 0, filter.GetCardinality())
	it := filter.Iterator()
	for it.HasNext() {
		if id, ok := x.ids[it.Next()]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

