package document

import (
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	domdoc "github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/filter"
)

// DefaultListLimit is the page size of List when none is given.
const DefaultListLimit = 20

// Repo is the in-memory document store of one collection.
// Documents are keyed by id and by the sequence id every index uses.
type Repo struct {
	mu      sync.RWMutex
	nextSeq uint32
	ids     map[string]uint32
	docs    map[uint32]domdoc.Document
	live    *roaring.Bitmap
}

// New creates an empty document store.
func New() *Repo {
	return &Repo{
		ids:  make(map[string]uint32),
		docs: make(map[uint32]domdoc.Document),
		live: roaring.New(),
	}
}

// NextSeq reserves a fresh sequence id. Reserved ids are never handed out twice,
// even when the write that reserved one fails.
func (r *Repo) NextSeq() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.nextSeq
	r.nextSeq++
	return seq
}

// Upsert stores doc under its id and sequence id. Returns true if created.
func (r *Repo) Upsert(doc domdoc.Document) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.ids[doc.ID()]
	if exists && prev != doc.SeqID() {
		delete(r.docs, prev)
		r.live.Remove(prev)
	}
	r.ids[doc.ID()] = doc.SeqID()
	r.docs[doc.SeqID()] = doc
	r.live.Add(doc.SeqID())
	if doc.SeqID() >= r.nextSeq {
		r.nextSeq = doc.SeqID() + 1
	}
	return !exists
}

// Get returns a document by id.
func (r *Repo) Get(id string) (domdoc.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq, ok := r.ids[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return r.docs[seq], nil
}

// GetBySeq returns a document by sequence id.
func (r *Repo) GetBySeq(seq uint32) (domdoc.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[seq]
	return doc, ok
}

// Delete removes a document by id and returns it.
func (r *Repo) Delete(id string) (domdoc.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq, ok := r.ids[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	doc := r.docs[seq]
	delete(r.ids, id)
	delete(r.docs, seq)
	r.live.Remove(seq)
	return doc, nil
}

// Count returns the number of stored documents.
func (r *Repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// List returns documents in sequence order with cursor-based pagination.
// The cursor is the last sequence id of the previous page; "" starts from the beginning.
func (r *Repo) List(cursor string, limit int) ([]domdoc.Document, string, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var after int64 = -1
	if cursor != "" {
		n, err := strconv.ParseUint(cursor, 10, 32)
		if err != nil {
			return nil, "", domain.NewFieldError(domain.ErrInvalidQuery, "Invalid cursor `%s`.", cursor)
		}
		after = int64(n)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	it := r.live.Iterator()
	if after >= 0 {
		it.AdvanceIfNeeded(uint32(after) + 1)
	}

	docs := make([]domdoc.Document, 0, limit)
	for it.HasNext() && len(docs) < limit {
		docs = append(docs, r.docs[it.Next()])
	}

	next := ""
	if it.HasNext() && len(docs) > 0 {
		next = strconv.FormatUint(uint64(docs[len(docs)-1].SeqID()), 10)
	}
	return docs, next, nil
}

// Filter evaluates expr over every stored document and returns the matching sequence ids.
// An empty expression matches nothing and returns nil, meaning "no restriction".
func (r *Repo) Filter(sch schema.Schema, expr filter.Expression) (*roaring.Bitmap, error) {
	if expr.IsEmpty() {
		return nil, nil
	}
	if err := checkKeys(sch, expr); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := roaring.New()
	for seq, doc := range r.docs {
		if expr.Eval(doc.Get) {
			out.Add(seq)
		}
	}
	return out, nil
}

// All returns the sequence ids of every stored document.
func (r *Repo) All() *roaring.Bitmap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live.Clone()
}

func checkKeys(sch schema.Schema, expr filter.Expression) error {
	for _, key := range expr.Keys() {
		if key == domdoc.IDField {
			continue
		}
		f, ok := sch.FieldByName(key)
		if !ok {
			return domain.NewFieldError(domain.ErrInvalidQuery,
				"Could not find a filter field named `%s` in the schema.", key)
		}
		if f.IsVector() {
			return domain.NewFieldError(domain.ErrInvalidQuery, "Cannot filter on vector field `%s`.", key)
		}
	}
	return nil
}
