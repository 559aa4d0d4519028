package hnsw

import "github.com/orneryd/vecdex/internal/invariant"

// NodeExport is the persistence-layer view of one graph node: everything
// needed to reconstruct it exactly, with in-degree counters deliberately
// omitted since Load always recomputes them from the neighbor lists.
type NodeExport struct {
	Vector    *Vector
	Level     int
	Alive     bool
	Next      Ref
	Neighbors [][]Ref // one slice per level, NilRef marks an empty slot
}

// Snapshot is everything pkg/persist needs to serialize a graph: its
// dynamic routing state plus every node in arena order (arena index ==
// slice index, so a snapshot's node order doubles as the on-disk index
// space pkg/persist's offsets refer to).
type Snapshot struct {
	Head     Ref
	Entry    Ref
	TopLevel int
	Elements int
	Nodes    []NodeExport
}

// Export captures the graph's full state for serialization.
func (g *Graph) Export() Snapshot {
	nodes := make([]NodeExport, g.arena.len())
	for i := range g.arena.nodes {
		n := &g.arena.nodes[i]
		neighbors := make([][]Ref, len(n.neighbors))
		for l, slots := range n.neighbors {
			cp := make([]Ref, len(slots))
			copy(cp, slots)
			neighbors[l] = cp
		}
		nodes[i] = NodeExport{
			Vector:    n.vector,
			Level:     n.level,
			Alive:     n.alive,
			Next:      n.next,
			Neighbors: neighbors,
		}
	}
	return Snapshot{Head: g.head, Entry: g.entry, TopLevel: g.topLevel, Elements: g.elements, Nodes: nodes}
}

// LoadGraph rebuilds a graph from a previously captured Snapshot, as Load
// does after reading a dump file: in-degree counters are recomputed by
// walking every node's outgoing neighbor lists rather than trusting
// whatever was written to disk.
func LoadGraph(cfg Config, snap Snapshot) *Graph {
	g := NewGraph(cfg)
	g.head = snap.Head
	g.entry = snap.Entry
	g.topLevel = snap.TopLevel
	g.elements = snap.Elements

	nodes := make([]graphNode, len(snap.Nodes))
	for i, ne := range snap.Nodes {
		nodes[i] = graphNode{
			vector:    ne.Vector,
			level:     ne.Level,
			alive:     ne.Alive,
			next:      ne.Next,
			neighbors: ne.Neighbors,
			degrees:   make([]degree, len(ne.Neighbors)),
		}
		for l, slots := range ne.Neighbors {
			for _, ref := range slots {
				if ref != NilRef {
					nodes[i].degrees[l].out++
				}
			}
		}
	}
	g.arena = &arena{nodes: nodes}

	for i := range g.arena.nodes {
		n := &g.arena.nodes[i]
		for l, slots := range n.neighbors {
			for _, ref := range slots {
				if ref == NilRef {
					continue
				}
				invariant.PanicIf(int(ref) >= len(g.arena.nodes), "hnsw: load referenced out-of-range node %d", ref)
				g.arena.nodes[ref].degrees[l].in++
			}
		}
	}

	return g
}
