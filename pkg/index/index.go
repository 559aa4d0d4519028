// Package index is the public façade over pkg/hnsw: it enforces the
// reader-writer locking discipline, keeps the id-map in sync with the
// graph, times every operation, and translates graph-level outcomes into
// the stable error taxonomy embedders depend on.
package index

import (
	"sync"
	"time"

	"github.com/orneryd/vecdex/internal/invariant"
	"github.com/orneryd/vecdex/internal/obslog"
	"github.com/orneryd/vecdex/pkg/hnsw"
	"github.com/orneryd/vecdex/pkg/idmap"
)

// Index is a single thread-safe ANN index. Construct it with New or Load;
// every exported method may be called concurrently. Search, Size, Contains,
// Dump, and Export share the read lock; Insert, Delete, UpdateContext,
// Import, and Close take it exclusively.
type Index struct {
	mu sync.RWMutex

	kind   Kind
	metric Metric
	dims   uint16

	graph *hnsw.Graph
	ids   *idmap.Map[hnsw.Ref]

	// statsMu guards stats independently of mu: Search, Dump, and Export
	// all record timings while holding mu only as a shared RLock, so
	// concurrent readers would otherwise race on the same opStats fields.
	statsMu sync.Mutex
	stats   Stats
	closed  bool
}

func (idx *Index) recordStat(pick func(*Stats) *opStats, d time.Duration) {
	idx.statsMu.Lock()
	defer idx.statsMu.Unlock()
	pick(&idx.stats).record(d)
}

// New creates an empty index. config may be nil to accept hnsw's defaults.
func New(kind Kind, metric Metric, dims uint16, config *Config) (*Index, error) {
	if kind != HNSW {
		return nil, newError(InvalidIndexType, "kind %d is not supported (only HNSW)", kind)
	}
	if !metric.Valid() {
		return nil, newError(InvalidMethod, "metric %d is not a recognized comparator", metric)
	}
	if dims == 0 {
		return nil, newError(InvalidDimensions, "dims must be > 0")
	}

	cfg := hnsw.DefaultConfig(metric, dims)
	if config != nil {
		if config.M0 > 0 {
			cfg.M0 = config.M0
		}
		if config.EfConstruct > 0 {
			cfg.EfConstruct = config.EfConstruct
		}
		if config.EfSearch > 0 {
			cfg.EfSearch = config.EfSearch
		}
		cfg.Seed = config.Seed
	}

	idx := &Index{
		kind:   kind,
		metric: metric,
		dims:   dims,
		graph:  hnsw.NewGraph(cfg),
		ids:    idmap.New[hnsw.Ref](0, 0),
	}
	return idx, nil
}

// Insert adds a new vector under id, rejecting zero ids, dimension
// mismatches, and duplicate ids without mutating the index.
func (idx *Index) Insert(id uint64, tag uint64, vec []float32) error {
	start := time.Now()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return newError(InvalidIndex, "index is closed")
	}
	if id == 0 {
		return newError(InvalidID, "id must be non-zero")
	}
	if len(vec) != int(idx.dims) {
		return newError(InvalidDimensions, "got %d dims, want %d", len(vec), idx.dims)
	}
	if idx.ids.Has(id) {
		return newError(DuplicatedEntry, "id %d already present", id)
	}

	ref := idx.graph.AllocNode(id, tag, vec)
	idx.graph.Insert(ref)

	// The graph insertion cannot be rolled back without risking a second
	// internal inconsistency, so a failure to register the id here is
	// treated as fatal rather than surfaced as ErrSystem.
	invariant.PanicIf(idx.ids.Has(id), "index: id %d already mapped immediately after insert", id)
	idx.ids.Insert(id, ref)

	idx.recordStat(func(s *Stats) *opStats { return &s.Insert }, time.Since(start))
	obslog.Debug("index insert", map[string]any{"id": id, "tag": tag})
	return nil
}

// Search returns the k nearest live vectors to query. If tag is non-zero
// the search restricts to vectors whose tag shares a bit with it, falling
// back to a full linear scan since the graph's edges carry no tag
// awareness.
func (idx *Index) Search(query []float32, k int, tag uint64) ([]MatchResult, error) {
	start := time.Now()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, newError(InvalidIndex, "index is closed")
	}
	if len(query) != int(idx.dims) {
		return nil, newError(InvalidDimensions, "got %d dims, want %d", len(query), idx.dims)
	}
	if idx.graph.Elements() == 0 {
		return nil, newError(IndexEmpty, "")
	}
	if k <= 0 {
		return nil, newError(InvalidArgument, "k must be > 0")
	}

	var results []MatchResult
	if tag != 0 {
		results = idx.graph.LinearSearch(tag, query, k)
	} else {
		results = idx.graph.KNNSearch(query, k)
	}

	idx.recordStat(func(s *Stats) *opStats { return &s.Search }, time.Since(start))
	return results, nil
}

// Delete logically removes id: the node stays in the graph to preserve
// routing for other searches but is excluded from future results.
func (idx *Index) Delete(id uint64) error {
	start := time.Now()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return newError(InvalidIndex, "index is closed")
	}

	ref, ok := idx.ids.Get(id)
	if !ok {
		return newError(NotFoundID, "id %d not present", id)
	}
	idx.graph.Delete(ref)
	idx.ids.Remove(id)

	idx.recordStat(func(s *Stats) *opStats { return &s.Delete }, time.Since(start))
	obslog.Debug("index delete", map[string]any{"id": id})
	return nil
}

// UpdateContext atomically adjusts ef_construct, ef_search, and/or M0,
// applying only the fields selected by mask.
func (idx *Index) UpdateContext(ctx Context, mask UpdateMode) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return newError(InvalidIndex, "index is closed")
	}

	idx.graph.UpdateContext(
		ctx.EfConstruct, ctx.EfSearch, ctx.M0,
		mask&SetEfConstruct != 0, mask&SetEfSearch != 0, mask&SetM0 != 0,
	)
	return nil
}

// Stats returns a snapshot of per-operation timing counters.
func (idx *Index) Stats() Stats {
	idx.statsMu.Lock()
	defer idx.statsMu.Unlock()
	return idx.stats
}

// Size returns the count of live and logically-deleted nodes (deletions
// are logical and do not decrement it).
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.graph.Elements()
}

// Contains reports whether id is present and alive.
func (idx *Index) Contains(id uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ids.Has(id)
}

// Close releases the index's backend state. After Close, every other
// method returns ErrInvalidIndex.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.graph = nil
	idx.ids = nil
	return nil
}
