package vectorindex

import (
	"sort"
	"sync"
)

// Registry holds the indexes of one collection, keyed by vector field name.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*Index)}
}

// Create registers a new index for field, replacing any previous one.
func (r *Registry) Create(field string, dim int, cfg Config) *Index {
	idx := New(dim, cfg)
	r.mu.Lock()
	r.indexes[field] = idx
	r.mu.Unlock()
	return idx
}

// Get returns the index of field.
func (r *Registry) Get(field string) (*Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[field]
	return idx, ok
}

// Fields returns the indexed field names in sorted order.
func (r *Registry) Fields() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.indexes))
	for f := range r.indexes {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Drop destroys the index of field. It reports whether one existed.
func (r *Registry) Drop(field string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.indexes[field]
	if ok {
		idx.release()
		delete(r.indexes, field)
	}
	return ok
}

// Close destroys every index.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for f, idx := range r.indexes {
		idx.release()
		delete(r.indexes, f)
	}
}

// release frees the graph. Callers still holding the index see it empty.
func (x *Index) release() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.nodes = nil
	x.free = nil
	x.slots = make(map[uint32]uint32)
	x.topLevel = -1
}
