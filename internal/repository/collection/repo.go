package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/metrics"
	"github.com/kailas-cloud/fusiondex/internal/repository/document"
	"github.com/kailas-cloud/fusiondex/internal/repository/text"
	"github.com/kailas-cloud/fusiondex/internal/vectorindex"
)

// Handle bundles everything a collection owns: its schema, documents,
// text index and one vector index per vector field.
type Handle struct {
	writeMu sync.Mutex

	mu     sync.RWMutex
	schema schema.Schema

	docs    *document.Repo
	text    *text.Index
	vectors *vectorindex.Registry
}

// Lock serializes writes to the collection so that the store, text and
// vector updates of one document become visible together.
func (h *Handle) Lock() { h.writeMu.Lock() }

// Unlock releases the write lock.
func (h *Handle) Unlock() { h.writeMu.Unlock() }

// Schema returns the current collection schema.
func (h *Handle) Schema() schema.Schema {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.schema
}

// Documents returns the document store.
func (h *Handle) Documents() *document.Repo { return h.docs }

// Text returns the full-text index.
func (h *Handle) Text() *text.Index { return h.text }

// Vectors returns the vector index registry.
func (h *Handle) Vectors() *vectorindex.Registry { return h.vectors }

func (h *Handle) close() error {
	h.vectors.Close()
	return h.text.Close()
}

// Repo is the in-memory collection registry.
type Repo struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	index   vectorindex.Config
}

// New creates a collection registry. index is the template for every vector index;
// the metric comes from each field.
func New(index vectorindex.Config) *Repo {
	return &Repo{handles: make(map[string]*Handle), index: index}
}

// Create builds the indexes of a new collection and registers it.
func (r *Repo) Create(_ context.Context, sch schema.Schema) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[sch.Name()]; ok {
		return nil, domain.ErrAlreadyExists
	}

	txt, err := text.New()
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", sch.Name(), err)
	}

	h := &Handle{
		schema:  sch,
		docs:    document.New(),
		text:    txt,
		vectors: vectorindex.NewRegistry(),
	}
	for _, f := range sch.VectorFields() {
		cfg := r.index
		cfg.Metric = vectorindex.Metric(f.Distance())
		h.vectors.Create(f.Name(), f.NumDim(), cfg)
	}

	r.handles[sch.Name()] = h
	return h, nil
}

// Get returns the handle of a collection.
func (r *Repo) Get(_ context.Context, name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return h, nil
}

// List returns all collection schemas sorted by CreatedAt.
func (r *Repo) List(_ context.Context) ([]schema.Schema, error) {
	handles := r.Handles()
	out := make([]schema.Schema, len(handles))
	for i, h := range handles {
		out[i] = h.Schema()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt() < out[j].CreatedAt()
	})
	return out, nil
}

// Handles returns every registered handle ordered by collection name.
func (r *Repo) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for n := range r.handles {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Handle, len(names))
	for i, n := range names {
		out[i] = r.handles[n]
	}
	return out
}

// IndexStats snapshots every vector index of every collection.
func (r *Repo) IndexStats() []metrics.IndexStat {
	var out []metrics.IndexStat
	for _, h := range r.Handles() {
		name := h.Schema().Name()
		for _, f := range h.Vectors().Fields() {
			idx, ok := h.Vectors().Get(f)
			if !ok {
				continue
			}
			st := idx.Stats()
			out = append(out, metrics.IndexStat{
				Collection: name,
				Field:      f,
				Capacity:   st.Capacity,
				Count:      st.Count,
				Deleted:    st.Deleted,
			})
		}
	}
	return out
}

// Delete unregisters a collection and destroys its indexes.
func (r *Repo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	h, ok := r.handles[name]
	delete(r.handles, name)
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	h.Lock()
	defer h.Unlock()
	if err := h.close(); err != nil {
		return fmt.Errorf("close collection %s: %w", name, err)
	}
	return nil
}

// DropField removes a field from the collection schema. Dropping a vector field
// destroys its index.
func (r *Repo) DropField(ctx context.Context, name, fieldName string) (schema.Schema, error) {
	h, err := r.Get(ctx, name)
	if err != nil {
		return schema.Schema{}, err
	}

	h.Lock()
	defer h.Unlock()

	next, err := h.Schema().WithoutField(fieldName)
	if err != nil {
		return schema.Schema{}, err
	}

	h.mu.Lock()
	h.schema = next
	h.mu.Unlock()

	h.vectors.Drop(fieldName)
	return next, nil
}

// Close destroys every collection.
func (r *Repo) Close() error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	var errs []error
	for _, h := range handles {
		errs = append(errs, h.close())
	}
	return errors.Join(errs...)
}
