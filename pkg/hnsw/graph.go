// Package hnsw implements the Hierarchical Navigable Small World proximity
// graph: level assignment, layered best-first search, the neighbor-selection
// heuristic, bidirectional back-link pruning, insertion, and k-NN query.
// This is the algorithmic core the façade (pkg/index) wraps with locking,
// id-map bookkeeping, and persistence.
package hnsw

import (
	"math"
	"math/rand"
	"time"

	"github.com/orneryd/vecdex/internal/invariant"
	"github.com/orneryd/vecdex/pkg/heap"
	"github.com/orneryd/vecdex/pkg/pool"
	"github.com/orneryd/vecdex/pkg/vecmath"
)

var queryBufferPool = pool.NewTyped(
	func() []float32 { return make([]float32, 0, 64) },
	func(b []float32) []float32 { return b[:0] },
)

// Config holds the graph's tunable parameters. Defaults match the original
// source's hnsw_init: ef_search=110, ef_construct=220, M0=32.
type Config struct {
	M0          int
	EfConstruct int
	EfSearch    int
	Seed        int64 // 0 means seed from the current time
	DimsAligned uint16
	Dims        uint16
	Metric      vecmath.Metric
}

// DefaultConfig returns the original source's defaults for the given metric
// and dimensionality.
func DefaultConfig(metric vecmath.Metric, dims uint16) Config {
	return Config{
		M0:          32,
		EfConstruct: 220,
		EfSearch:    110,
		DimsAligned: vecmath.AlignDims(dims),
		Dims:        dims,
		Metric:      metric,
	}
}

// MatchResult is one search hit: an id and its distance under the index's
// metric. Unused result slots carry the sentinel {ID: 0, Distance: worst}.
type MatchResult struct {
	ID       uint64
	Distance float32
}

// Graph is the HNSW proximity graph itself: the node arena plus the dynamic
// state (top level, entry point, forward-list head) insertion and search
// maintain. It has no locking of its own — pkg/index's façade serializes
// access with a single reader-writer lock per index.
type Graph struct {
	arena *arena

	metric      vecmath.Metric
	dims        uint16
	dimsAligned uint16

	m0          int
	efConstruct int
	efSearch    int

	topLevel int
	elements int
	entry    Ref
	head     Ref

	rng *rand.Rand

	levelMultiplier float64
}

// NewGraph creates an empty graph with the given configuration.
func NewGraph(cfg Config) *Graph {
	seed := cfg.Seed
	if seed == 0 {
		seed = defaultSeed()
	}
	return &Graph{
		arena:           newArena(),
		metric:          cfg.Metric,
		dims:            cfg.Dims,
		dimsAligned:     cfg.DimsAligned,
		m0:              cfg.M0,
		efConstruct:     cfg.EfConstruct,
		efSearch:        cfg.EfSearch,
		entry:           NilRef,
		head:            NilRef,
		rng:             rand.New(rand.NewSource(seed)),
		levelMultiplier: 1.0 / math.Log(float64(cfg.M0)/2),
	}
}

// Elements returns the count of live and logically-deleted nodes.
func (g *Graph) Elements() int { return g.elements }

// TopLevel returns the highest level currently present in the graph.
func (g *Graph) TopLevel() int { return g.topLevel }

// M0 returns the current base-layer out-degree cap.
func (g *Graph) M0() int { return g.m0 }

// EfConstruct returns the current insertion search breadth.
func (g *Graph) EfConstruct() int { return g.efConstruct }

// EfSearch returns the current query search breadth.
func (g *Graph) EfSearch() int { return g.efSearch }

// Dims returns the configured (unpadded) vector dimensionality.
func (g *Graph) Dims() uint16 { return g.dims }

// DimsAligned returns the padded dimensionality vectors are stored at.
func (g *Graph) DimsAligned() uint16 { return g.dimsAligned }

// Metric returns the distance kernel this graph compares with.
func (g *Graph) Metric() vecmath.Metric { return g.metric }

// UpdateContext atomically adjusts ef_construct, ef_search, and/or M0.
// M0 changes only affect nodes allocated after the call; existing neighbor
// arrays keep their original capacity.
func (g *Graph) UpdateContext(efConstruct, efSearch, m0 int, setEfConstruct, setEfSearch, setM0 bool) {
	if setEfConstruct {
		g.efConstruct = efConstruct
	}
	if setEfSearch {
		g.efSearch = efSearch
	}
	if setM0 {
		g.m0 = m0
	}
}

// assignLevel samples a new node's top layer: an exponential distribution
// with scale 1/ln(M0/2), so the expected fraction of nodes at level >= L
// decays geometrically. U is drawn from the open interval (0,1) to avoid
// -ln(0).
func (g *Graph) assignLevel() int {
	u := g.rng.Float64()
	if u == 0 {
		u = minPositiveU
	}
	return int(-math.Log(u) * g.levelMultiplier)
}

// minPositiveU stands in for values math/rand.Float64 could return but that
// would make -log(u) blow up towards +Inf; it is smaller than any level this
// index could plausibly reach.
const minPositiveU = 1e-12

// AllocNode samples a level for id/tag/vector and allocates it in the
// arena, returning its ref. The node is not yet part of the graph until
// Insert is called on the returned ref.
func (g *Graph) AllocNode(id, tag uint64, vec []float32) Ref {
	v := MakeVector(id, tag, vec, g.dimsAligned)
	level := g.assignLevel()
	return g.arena.alloc(v, level, g.m0)
}

// Insert runs the HNSW insertion algorithm for a node previously allocated
// via AllocNode: greedy descent to the node's level, then layer-by-layer
// neighbor selection and bidirectional connection down to level 0.
func (g *Graph) Insert(ref Ref) {
	node := g.arena.get(ref)

	if g.elements == 0 {
		node.next = NilRef
		g.head = ref
		g.entry = ref
		g.topLevel = node.level
		g.elements = 1
		return
	}

	node.next = g.head
	g.head = ref

	sc := &searchContext{query: node.vector.Payload, dimsAligned: g.dimsAligned, metric: g.metric, filterAlive: false}

	entry := []Ref{g.entry}
	for l := g.topLevel; l > node.level; l-- {
		w := g.searchLayer(sc, entry, 1, l)
		invariant.PanicIf(w.Size() != 1, "hnsw: greedy descent returned %d candidates, want 1", w.Size())
		top, _ := w.Pop()
		entry = []Ref{top.Payload.(Ref)}
	}

	for l := min(g.topLevel, node.level); l >= 0; l-- {
		m := g.m0
		if l > 0 {
			m = g.m0 / 2
		}

		w := g.searchLayer(sc, entry, g.efConstruct, l)
		w = g.selectNeighbors(sc, w, m, selectHeuristic|keepPruned|extendCandidates, l)
		invariant.PanicIf(w.Size() > m, "hnsw: selected %d neighbors, want <= %d", w.Size(), m)

		entry = entry[:0]
		for w.Size() > 0 {
			item, _ := w.Pop()
			neighborRef := item.Payload.(Ref)
			entry = append(entry, neighborRef)
			g.connectTo(sc, ref, neighborRef, l, m)
		}
	}

	g.elements++
	if node.level > g.topLevel {
		g.entry = ref
		g.topLevel = node.level
	}
}

// Delete marks ref as logically deleted: it stays in the graph (and keeps
// routing traffic for other searches) but is excluded from future results.
func (g *Graph) Delete(ref Ref) {
	g.arena.get(ref).alive = false
}

// KNNSearch runs the layered greedy-descent + bottom-layer best-first
// search for the k nearest live neighbors of query.
func (g *Graph) KNNSearch(query []float32, k int) []MatchResult {
	aligned := queryBufferPool.Get()
	if cap(aligned) < int(g.dimsAligned) {
		aligned = make([]float32, g.dimsAligned)
	} else {
		aligned = aligned[:g.dimsAligned]
		for i := range aligned {
			aligned[i] = 0
		}
	}
	copy(aligned, query)
	defer queryBufferPool.Put(aligned)

	sc := &searchContext{query: aligned, dimsAligned: g.dimsAligned, metric: g.metric, filterAlive: false}

	entry := []Ref{g.entry}
	for l := g.topLevel; l > 0; l-- {
		w := g.searchLayer(sc, entry, 1, l)
		invariant.PanicIf(w.Size() != 1, "hnsw: greedy descent returned %d candidates, want 1", w.Size())
		top, _ := w.Pop()
		entry = []Ref{top.Payload.(Ref)}
	}

	sc.filterAlive = true
	ef := g.efSearch
	if 2*k > ef {
		ef = 2 * k
	}
	w := g.searchLayer(sc, entry, ef, 0)
	w = g.selectNeighbors(sc, w, k, selectSimple, 0)

	return g.drainToResults(w, k)
}

// LinearSearch scans every live node whose tag shares at least one bit with
// queryTag, maintaining a worst-top heap of the k closest. Used whenever a
// caller supplies a non-zero tag filter, since the graph's edges carry no
// tag awareness and a filtered graph walk can silently lose connectivity.
func (g *Graph) LinearSearch(queryTag uint64, query []float32, k int) []MatchResult {
	w := heap.New(heap.WorstTop, k, g.metric.IsBetter)

	for ref := g.head; ref != NilRef; {
		node := g.arena.get(ref)
		next := node.next
		if node.alive && node.vector != nil && (queryTag == 0 || queryTag&node.vector.Tag != 0) {
			d := g.metric.Compare(query, node.vector.Payload)
			w.InsertOrReplaceIfBetter(heap.Node{Distance: d, Payload: ref})
		}
		ref = next
	}

	return g.drainToResults(w, k)
}

// drainToResults pops w worst-first and writes into a descending-by-match
// result slice, padding unused slots with the sentinel.
func (g *Graph) drainToResults(w *heap.Heap, k int) []MatchResult {
	out := make([]MatchResult, k)
	for i := range out {
		out[i] = MatchResult{ID: 0, Distance: g.metric.WorstMatchValue()}
	}
	for i := w.Size() - 1; i >= 0 && i < k; i-- {
		item, err := w.Pop()
		if err != nil {
			break
		}
		ref := item.Payload.(Ref)
		v := g.arena.get(ref).vector
		out[i] = MatchResult{ID: v.ID, Distance: item.Distance}
	}
	return out
}

// Remap rebuilds an id->ref map from the forward list, used after Load to
// re-register every live node with the façade's id-map.
func (g *Graph) Remap(register func(id uint64, ref Ref)) {
	for ref := g.head; ref != NilRef; {
		node := g.arena.get(ref)
		if node.alive && node.vector != nil {
			register(node.vector.ID, ref)
		}
		ref = node.next
	}
}

// VectorAt returns the vector owned by ref, for callers (the façade, the
// persistence writer) that hold a ref and need the underlying data.
func (g *Graph) VectorAt(ref Ref) *Vector {
	return g.arena.get(ref).vector
}

// Alive reports whether ref's node is still logically present.
func (g *Graph) Alive(ref Ref) bool {
	return g.arena.get(ref).alive
}

// SetTag overwrites ref's vector tag in place.
func (g *Graph) SetTag(ref Ref, tag uint64) {
	g.arena.get(ref).vector.Tag = tag
}

// Compare computes the distance between query and ref's vector, returning
// the metric's worst-match sentinel if ref is not alive.
func (g *Graph) Compare(ref Ref, query []float32) (float32, bool) {
	node := g.arena.get(ref)
	if !node.alive {
		return g.metric.WorstMatchValue(), false
	}
	aligned := query
	if int(g.dimsAligned) > len(query) {
		aligned = make([]float32, g.dimsAligned)
		copy(aligned, query)
	}
	return g.metric.Compare(node.vector.Payload, aligned), true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func defaultSeed() int64 {
	return time.Now().UnixNano()
}
