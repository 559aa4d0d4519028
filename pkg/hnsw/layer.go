package hnsw

import (
	"github.com/orneryd/vecdex/pkg/heap"
	"github.com/orneryd/vecdex/pkg/pool"
)

var visitedSetPool = pool.NewTyped(
	func() map[Ref]struct{} { return make(map[Ref]struct{}, 256) },
	func(m map[Ref]struct{}) map[Ref]struct{} {
		for k := range m {
			delete(m, k)
		}
		return m
	},
)

// searchLayer runs best-first traversal of one graph layer from the given
// entry points, returning a worst-top heap of at most ef results.
//
// Two heaps and a visited set drive it: C is the best-top frontier of nodes
// still to expand (unbounded), W is the worst-top bounded result set. A node
// is admitted into C if W still has room or the node beats W's current
// worst — the classic HNSW pruning cutoff that keeps the frontier from
// exploding. Admission into W additionally respects filterAlive: dead nodes
// are always walkable (so deletion never disconnects the graph) but are
// only ever recorded as an answer when filterAlive is off.
func (g *Graph) searchLayer(sc *searchContext, entryPoints []Ref, ef, level int) *heap.Heap {
	visited := visitedSetPool.Get()
	defer visitedSetPool.Put(visited)

	c := heap.New(heap.BestTop, heap.NoLimit, sc.metric.IsBetter)
	w := heap.New(heap.WorstTop, ef, sc.metric.IsBetter)

	for _, ep := range entryPoints {
		node := g.arena.get(ep)
		if node.vector == nil {
			continue
		}
		visited[ep] = struct{}{}
		d := sc.compare(node.vector)
		_ = c.Insert(heap.Node{Distance: d, Payload: ep})
		if !sc.filterAlive || node.alive {
			_ = w.Insert(heap.Node{Distance: d, Payload: ep})
		}
	}

	for c.Size() > 0 {
		cand, err := c.Pop()
		if err != nil {
			break
		}

		if w.Size() > 0 {
			worst, _ := w.Peek()
			if w.Full() && sc.metric.IsBetter(worst.Distance, cand.Distance) {
				break
			}
		}

		candRef := cand.Payload.(Ref)
		candNode := g.arena.get(candRef)
		if level > candNode.level {
			continue
		}
		for _, n := range candNode.liveNeighbors(level) {
			if _, seen := visited[n]; seen {
				continue
			}
			neighborNode := g.arena.get(n)
			if neighborNode.vector == nil {
				continue
			}
			visited[n] = struct{}{}

			d := sc.compare(neighborNode.vector)

			admitToC := !w.Full()
			if !admitToC {
				worst, _ := w.Peek()
				admitToC = sc.metric.IsBetter(d, worst.Distance)
			}
			if admitToC {
				_ = c.Insert(heap.Node{Distance: d, Payload: n})
			}

			if sc.filterAlive && !neighborNode.alive {
				continue
			}
			if w.Full() {
				worst, _ := w.Peek()
				if sc.metric.IsBetter(d, worst.Distance) {
					_ = w.ReplaceTop(heap.Node{Distance: d, Payload: n})
				}
			} else {
				_ = w.Insert(heap.Node{Distance: d, Payload: n})
			}
		}
	}

	return w
}
