package hnsw

import (
	"github.com/orneryd/vecdex/internal/invariant"
	"github.com/orneryd/vecdex/pkg/heap"
)

// selectNeighbors trims c down to at most m entries, either via the plain
// best-first cutoff (selectSimple) or the angular-diversity heuristic.
func (g *Graph) selectNeighbors(sc *searchContext, c *heap.Heap, m int, flags neighborFlags, level int) *heap.Heap {
	if flags.has(selectHeuristic) {
		return g.selectNeighborsHeuristic(sc, c, m, flags, level)
	}
	for c.Size() > m {
		_, _ = c.Pop()
	}
	return c
}

// selectNeighborsHeuristic implements the angular-diversity rule: among the
// candidates in c (optionally extended with their own neighbors), keep a
// candidate only if it is closer to the query than to every neighbor
// already chosen. This diversifies the selected set instead of just taking
// the m closest points, which tends to cluster in one direction.
func (g *Graph) selectNeighborsHeuristic(sc *searchContext, c *heap.Heap, m int, flags neighborFlags, level int) *heap.Heap {
	w := heap.New(heap.BestTop, heap.NoLimit, sc.metric.IsBetter)
	g.fillCandidateQueue(sc, c, w, flags, level)

	var wd *heap.Heap
	if flags.has(keepPruned) {
		wd = heap.New(heap.BestTop, heap.NoLimit, sc.metric.IsBetter)
	}

	type chosen struct {
		ref  Ref
		dist float32
	}
	r := make([]chosen, 0, m)

	for w.Size() > 0 && len(r) < m {
		e, err := w.Pop()
		if err != nil {
			break
		}
		eRef := e.Payload.(Ref)
		eVec := g.arena.get(eRef).vector

		accept := true
		for _, rc := range r {
			rVec := g.arena.get(rc.ref).vector
			d := sc.metric.Compare(eVec.Payload, rVec.Payload)
			if sc.metric.IsBetter(d, e.Distance) {
				accept = false
				break
			}
		}

		if accept {
			r = append(r, chosen{ref: eRef, dist: e.Distance})
		} else if wd != nil {
			_ = wd.Insert(e)
		}
	}

	if wd != nil {
		for len(r) < m && wd.Size() > 0 {
			e, err := wd.Pop()
			if err != nil {
				break
			}
			r = append(r, chosen{ref: e.Payload.(Ref), dist: e.Distance})
		}
	}

	out := heap.New(heap.BestTop, heap.NoLimit, sc.metric.IsBetter)
	for _, rc := range r {
		_ = out.Insert(heap.Node{Distance: rc.dist, Payload: rc.ref})
	}
	return out
}

// fillCandidateQueue drains c into w, optionally extending the working set
// with every candidate's own neighbors at level (flag extendCandidates).
func (g *Graph) fillCandidateQueue(sc *searchContext, c, w *heap.Heap, flags neighborFlags, level int) {
	inW := make(map[Ref]struct{}, c.Size()*2)

	var drained []heap.Node
	for c.Size() > 0 {
		n, err := c.Pop()
		if err != nil {
			break
		}
		drained = append(drained, n)
		inW[n.Payload.(Ref)] = struct{}{}
		_ = w.Insert(n)
	}

	if !flags.has(extendCandidates) {
		return
	}
	for _, n := range drained {
		candNode := g.arena.get(n.Payload.(Ref))
		if level > candNode.level {
			continue
		}
		for _, nb := range candNode.liveNeighbors(level) {
			if _, ok := inW[nb]; ok {
				continue
			}
			inW[nb] = struct{}{}
			nbVec := g.arena.get(nb).vector
			if nbVec == nil {
				continue
			}
			d := sc.compare(nbVec)
			_ = w.Insert(heap.Node{Distance: d, Payload: nb})
		}
	}
}

// backlinkConnectWithShrink adds e to n's outgoing list at level, shrinking
// n's neighbor set via the heuristic if n is already at capacity.
//
// The effective capacity is n's physically allocated neighbor-array width
// at this level, not the caller's m: n may have been allocated under an
// earlier M0 (UpdateContext can raise M0 between insertions), and that
// array is never resized in place, so trusting the current m here would
// let the degree check pass while the array has no empty slot left.
func (g *Graph) backlinkConnectWithShrink(sc *searchContext, n, e Ref, level, m int) {
	nNode := g.arena.get(n)
	capacity := len(nNode.neighbors[level])
	if m > capacity {
		m = capacity
	}

	if int(nNode.degrees[level].out) < capacity {
		nNode.appendNeighbor(level, e)
		nNode.degrees[level].out++
		g.arena.get(e).degrees[level].in++
		return
	}

	nVec := nNode.vector
	old := nNode.clearNeighbors(level)

	w := heap.New(heap.WorstTop, m+1, sc.metric.IsBetter)
	for _, c := range old {
		cNode := g.arena.get(c)
		d := sc.metric.Compare(nVec.Payload, cNode.vector.Payload)
		_ = w.Insert(heap.Node{Distance: d, Payload: c})
		cNode.degrees[level].in--
	}
	eDist := sc.metric.Compare(nVec.Payload, g.arena.get(e).vector.Payload)
	_ = w.Insert(heap.Node{Distance: eDist, Payload: e})

	withQuery := &searchContext{query: nVec.Payload, dimsAligned: sc.dimsAligned, metric: sc.metric, filterAlive: false}
	shrunk := g.selectNeighborsHeuristic(withQuery, w, m, keepPruned, level)

	invariant.PanicIf(shrunk.Size() != m, "hnsw: backlink shrink produced %d neighbors, want %d", shrunk.Size(), m)

	for shrunk.Size() > 0 {
		item, _ := shrunk.Pop()
		ref := item.Payload.(Ref)
		nNode.appendNeighbor(level, ref)
		nNode.degrees[level].out++
		g.arena.get(ref).degrees[level].in++
	}
}

// connectTo creates the directed edge node -> n (node's out-list has room
// by construction: its out-degree starts at zero for this insertion), then
// establishes the reverse edge via backlinkConnectWithShrink.
func (g *Graph) connectTo(sc *searchContext, node, n Ref, level, m int) {
	nodeNode := g.arena.get(node)
	invariant.PanicIf(int(nodeNode.degrees[level].out) >= m, "hnsw: connectTo overflowed new node's out-list at level %d", level)
	nodeNode.appendNeighbor(level, n)
	nodeNode.degrees[level].out++
	g.arena.get(n).degrees[level].in++

	g.backlinkConnectWithShrink(sc, n, node, level, m)
}
