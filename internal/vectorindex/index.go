// Package vectorindex implements an in-memory HNSW graph over float32 vectors keyed by
// document sequence ids.
//
// Graph nodes live in an arena of slots. Removing a vector tombstones its slot: the node
// stays in the graph for traversal but is never returned, and its slot is handed to the
// next insert before the arena grows. Capacity doubles and never shrinks.
package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/fusiondex/internal/domain"
)

// Record is one vector addressed by its document sequence id.
type Record struct {
	Seq    uint32
	Vector []float32
}

// Match is a search hit.
type Match struct {
	Seq      uint32
	Distance float32
}

// Stats is a point-in-time view of slot usage.
type Stats struct {
	Capacity int
	// Count is the number of occupied slots, live and tombstoned.
	Count   int
	Deleted int
	Live    int
}

// SearchOptions narrows a search.
type SearchOptions struct {
	K int
	// Filter restricts results to these sequence ids. Nil allows all.
	Filter *roaring.Bitmap
	// DistanceThreshold drops matches farther than the threshold.
	DistanceThreshold *float32
	// FlatSearchCutoff switches to brute force over Filter when it holds at most this many ids.
	FlatSearchCutoff int
	// Exclude drops one sequence id, typically the document a query vector was taken from.
	Exclude *uint32
}

type node struct {
	seq     uint32
	vec     []float32
	links   [][]uint32
	deleted bool
}

// Index is a thread-safe HNSW index for one vector field.
type Index struct {
	mu sync.RWMutex

	dim      int
	cfg      Config
	dist     distanceFunc
	rng      *rand.Rand
	levelMul float64

	nodes    []*node
	capacity int
	free     []uint32
	slots    map[uint32]uint32

	entry    uint32
	topLevel int
}

// New creates an empty index for vectors of dim dimensions.
func New(dim int, cfg Config) *Index {
	cfg = cfg.withDefaults()
	return &Index{
		dim:      dim,
		cfg:      cfg,
		dist:     distanceFor(cfg.Metric),
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		levelMul: 1 / math.Log(float64(cfg.M)),
		nodes:    make([]*node, 0, cfg.InitialCapacity),
		capacity: cfg.InitialCapacity,
		slots:    make(map[uint32]uint32),
		topLevel: -1,
	}
}

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Metric returns the distance metric.
func (x *Index) Metric() Metric { return x.cfg.Metric }

// Stats returns current slot usage.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{
		Capacity: x.capacity,
		Count:    len(x.nodes),
		Deleted:  len(x.free),
		Live:     len(x.nodes) - len(x.free),
	}
}

// Insert adds or replaces the vector of seq.
func (x *Index) Insert(seq uint32, vec []float32) error {
	if err := x.checkDim(vec); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	x.reserve(x.added([]Record{{Seq: seq}}))
	x.insert(seq, vec)
	return nil
}

// InsertBatch adds or replaces several vectors. The whole batch is checked before any
// vector is written, and the arena grows at most once.
func (x *Index) InsertBatch(recs []Record) error {
	for _, r := range recs {
		if err := x.checkDim(r.Vector); err != nil {
			return err
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	x.reserve(x.added(recs))
	for _, r := range recs {
		x.insert(r.Seq, r.Vector)
	}
	return nil
}

// Remove tombstones the slot of seq. It reports whether seq was live.
func (x *Index) Remove(seq uint32) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.remove(seq)
}

// Vector returns a copy of the stored vector of seq. Cosine vectors are stored normalized.
func (x *Index) Vector(seq uint32) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	slot, ok := x.slots[seq]
	if !ok {
		return nil, false
	}
	out := make([]float32, x.dim)
	copy(out, x.nodes[slot].vec)
	return out, true
}

// Search returns up to opts.K live vectors nearest to query, by ascending distance.
func (x *Index) Search(query []float32, opts SearchOptions) ([]Match, error) {
	if err := x.checkDim(query); err != nil {
		return nil, err
	}
	k := opts.K
	if k <= 0 {
		k = 10
	}
	q := prepare(query, x.cfg.Metric)

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.nodes) == len(x.free) {
		return nil, nil
	}

	var found []candidate
	if opts.Filter != nil && opts.Filter.GetCardinality() <= uint64(max(opts.FlatSearchCutoff, 0)) {
		found = x.flatSearch(q, opts)
	} else {
		found = x.graphSearch(q, k, opts)
	}

	out := make([]Match, 0, len(found))
	for _, c := range found {
		if opts.DistanceThreshold != nil && c.dist > *opts.DistanceThreshold {
			continue
		}
		out = append(out, Match{Seq: x.nodes[c.slot].seq, Distance: c.dist})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Seq < out[j].Seq
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (x *Index) checkDim(vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("vector has %d dimensions, index expects %d: %w",
			len(vec), x.dim, domain.ErrDimensionMismatch)
	}
	return nil
}

// added counts the distinct sequence ids in recs that are not live yet.
func (x *Index) added(recs []Record) int {
	seen := make(map[uint32]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := x.slots[r.Seq]; ok {
			continue
		}
		seen[r.Seq] = struct{}{}
	}
	return len(seen)
}

// reserve grows capacity so n more vectors fit, counting tombstones as free slots.
// Must be called under the write lock, before any slot is written.
func (x *Index) reserve(n int) {
	needed := len(x.nodes) + max(n-len(x.free), 0)
	if needed <= x.capacity {
		return
	}
	newCap := x.capacity
	for newCap < needed {
		newCap *= 2
	}
	grown := make([]*node, len(x.nodes), newCap)
	copy(grown, x.nodes)
	x.nodes = grown
	x.capacity = newCap
}

func (x *Index) remove(seq uint32) bool {
	slot, ok := x.slots[seq]
	if !ok {
		return false
	}
	x.nodes[slot].deleted = true
	x.free = append(x.free, slot)
	delete(x.slots, seq)
	return true
}

func (x *Index) insert(seq uint32, vec []float32) {
	// a live seq is replaced: its slot becomes the most recent tombstone and is reused below
	x.remove(seq)
	vec = prepare(vec, x.cfg.Metric)

	if n := len(x.free); n > 0 {
		slot := x.free[n-1]
		x.free = x.free[:n-1]
		nd := x.nodes[slot]
		nd.seq, nd.vec, nd.deleted = seq, vec, false
		x.slots[seq] = slot
		x.link(slot)
		return
	}

	slot := uint32(len(x.nodes))
	level := x.randomLevel()
	x.nodes = append(x.nodes, &node{seq: seq, vec: vec, links: make([][]uint32, level+1)})
	x.slots[seq] = slot

	if x.topLevel < 0 {
		x.entry, x.topLevel = slot, level
		return
	}
	x.link(slot)
	if level > x.topLevel {
		x.entry, x.topLevel = slot, level
	}
}

// link connects slot to its nearest live neighbors on each of its levels.
// A reused slot keeps its old edges until each level is rewritten.
func (x *Index) link(slot uint32) {
	nd := x.nodes[slot]
	level := len(nd.links) - 1

	ep := x.entry
	for l := x.topLevel; l > level; l-- {
		ep = x.greedy(nd.vec, ep, l)
	}

	linkable := func(c *node) bool { return c != nd && !c.deleted }
	for l := min(level, x.topLevel); l >= 0; l-- {
		found := x.searchLayer(nd.vec, ep, x.cfg.EfConstruction, l, linkable)
		if len(found) == 0 {
			continue
		}
		maxConns := x.maxConns(l)
		neighbors := x.selectNeighbors(found, maxConns)

		nd.links[l] = nd.links[l][:0]
		for _, c := range neighbors {
			nd.links[l] = append(nd.links[l], c.slot)
			x.addLink(c.slot, slot, l, maxConns)
		}
		ep = found[0].slot
	}
}

// addLink adds the edge from -> to at level l, pruning from's list to its maxConns nearest.
func (x *Index) addLink(from, to uint32, l, maxConns int) {
	fn := x.nodes[from]
	if l >= len(fn.links) {
		return
	}
	for _, s := range fn.links[l] {
		if s == to {
			return
		}
	}
	fn.links[l] = append(fn.links[l], to)
	if len(fn.links[l]) <= maxConns {
		return
	}

	cs := make([]candidate, len(fn.links[l]))
	for i, s := range fn.links[l] {
		cs[i] = candidate{slot: s, dist: x.dist(fn.vec, x.nodes[s].vec)}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].dist < cs[j].dist })
	fn.links[l] = fn.links[l][:0]
	for _, c := range cs[:maxConns] {
		fn.links[l] = append(fn.links[l], c.slot)
	}
}

func (x *Index) maxConns(l int) int {
	if l == 0 {
		return 2 * x.cfg.M
	}
	return x.cfg.M
}

func (x *Index) randomLevel() int {
	u := x.rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return min(int(-math.Log(u)*x.levelMul), maxLevel)
}

// selectNeighbors keeps candidates that are closer to the new node than to any already
// selected neighbor, then tops the list up with the best discarded ones.
func (x *Index) selectNeighbors(found []candidate, m int) []candidate {
	if len(found) <= m {
		return found
	}
	selected := make([]candidate, 0, m)
	discarded := make([]candidate, 0, len(found))
	for _, c := range found {
		if len(selected) == m {
			break
		}
		good := true
		for _, s := range selected {
			if x.dist(x.nodes[c.slot].vec, x.nodes[s.slot].vec) < c.dist {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}
	for _, c := range discarded {
		if len(selected) == m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

// greedy walks level l towards q and returns the closest slot reached, tombstones included.
func (x *Index) greedy(q []float32, ep uint32, l int) uint32 {
	best, bestDist := ep, x.dist(q, x.nodes[ep].vec)
	for changed := true; changed; {
		changed = false
		nd := x.nodes[best]
		if l >= len(nd.links) {
			break
		}
		for _, s := range nd.links[l] {
			if d := x.dist(q, x.nodes[s].vec); d < bestDist {
				best, bestDist, changed = s, d, true
			}
		}
	}
	return best
}

// searchLayer explores level l from ep and returns up to ef accepted candidates by
// ascending distance. Rejected nodes are still expanded.
func (x *Index) searchLayer(q []float32, ep uint32, ef, l int, accept func(*node) bool) []candidate {
	visited := newBitset(len(x.nodes))
	candidates := &minHeap{}
	results := &maxHeap{}

	visited.testAndSet(ep)
	first := candidate{slot: ep, dist: x.dist(q, x.nodes[ep].vec)}
	heap.Push(candidates, first)
	if accept(x.nodes[ep]) {
		heap.Push(results, first)
	}

	for candidates.Len() > 0 {
		cur := heap.Pop(candidates).(candidate)
		if results.Len() >= ef && cur.dist > results.peek().dist {
			break
		}
		nd := x.nodes[cur.slot]
		if l >= len(nd.links) {
			continue
		}
		for _, s := range nd.links[l] {
			if visited.testAndSet(s) {
				continue
			}
			nb := x.nodes[s]
			d := x.dist(q, nb.vec)
			if results.Len() < ef || d < results.peek().dist {
				heap.Push(candidates, candidate{slot: s, dist: d})
				if accept(nb) {
					heap.Push(results, candidate{slot: s, dist: d})
					if results.Len() > ef {
						heap.Pop(results)
					}
				}
			}
		}
	}
	return results.drain()
}

func (x *Index) graphSearch(q []float32, k int, opts SearchOptions) []candidate {
	ep := x.entry
	for l := x.topLevel; l > 0; l-- {
		ep = x.greedy(q, ep, l)
	}
	ef := max(x.cfg.Ef, k)
	if opts.Exclude != nil {
		ef++
	}
	return x.searchLayer(q, ep, ef, 0, func(nd *node) bool {
		return x.allowed(nd, opts)
	})
}

func (x *Index) flatSearch(q []float32, opts SearchOptions) []candidate {
	var out []candidate
	it := opts.Filter.Iterator()
	for it.HasNext() {
		slot, ok := x.slots[it.Next()]
		if !ok {
			continue
		}
		nd := x.nodes[slot]
		if !x.allowed(nd, opts) {
			continue
		}
		out = append(out, candidate{slot: slot, dist: x.dist(q, nd.vec)})
	}
	return out
}

func (x *Index) allowed(nd *node, opts SearchOptions) bool {
	if nd.deleted {
		return false
	}
	if opts.Exclude != nil && nd.seq == *opts.Exclude {
		return false
	}
	return opts.Filter == nil || opts.Filter.Contains(nd.seq)
}
