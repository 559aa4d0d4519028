package hnsw

import "github.com/orneryd/vecdex/pkg/vecmath"

// searchContext carries the per-query working state threaded through
// searchLayer and its callers: the query vector, its aligned width, the
// comparator in use, and whether logically-deleted nodes should be
// excluded from the result set (they are always still walkable for routing).
type searchContext struct {
	query       []float32
	dimsAligned uint16
	metric      vecmath.Metric
	filterAlive bool
}

func (sc *searchContext) compare(v *Vector) float32 {
	return sc.metric.Compare(sc.query, v.Payload)
}

// neighborFlags select the neighbor-selection heuristic's behavior, mirroring
// the original's bit layout: 0x00 is the plain cutoff, 0x01 the heuristic,
// with two modifier bits layered on top.
type neighborFlags uint8

const (
	selectSimple     neighborFlags = 0x00
	selectHeuristic  neighborFlags = 0x01
	extendCandidates neighborFlags = 1 << 2
	keepPruned       neighborFlags = 1 << 3
)

func (f neighborFlags) has(bit neighborFlags) bool { return f&bit != 0 }
