package hnsw

// Ref is an arena index standing in for the raw inter-node pointers the
// original graph used. NilRef marks an empty neighbor slot or the absence of
// an entry point/forward-list head.
type Ref uint32

const NilRef Ref = ^Ref(0)

// degree tracks a node's in/out edge counts at one level.
type degree struct {
	in  uint32
	out uint32
}

// graphNode is one node of the proximity graph. neighbors[l] holds up to M0
// slots at level 0 and M0/2 slots at every level above it; empty slots hold
// NilRef. next chains every node (dead or alive) into the forward list used
// for linear scans and persistence.
type graphNode struct {
	vector    *Vector
	level     int
	alive     bool
	degrees   []degree
	neighbors [][]Ref
	next      Ref
}

// arena owns every graphNode in an index by value, addressed by Ref.
// Replacing raw pointers with indices into a single growable slice removes
// lifetime entanglement between nodes and makes on-disk node offsets the
// same numbers used in memory.
type arena struct {
	nodes []graphNode
}

func newArena() *arena {
	return &arena{}
}

func (a *arena) get(ref Ref) *graphNode {
	return &a.nodes[ref]
}

// alloc appends a new node sized for level and M0, returning its ref.
// vector may be nil (deferred-attach, used by Import/Load) — in that case
// the caller fills it in before the node participates in any search.
func (a *arena) alloc(vector *Vector, level, m0 int) Ref {
	n := graphNode{
		vector:    vector,
		level:     level,
		alive:     true,
		degrees:   make([]degree, level+1),
		neighbors: make([][]Ref, level+1),
		next:      NilRef,
	}
	for l := range n.neighbors {
		width := m0
		if l > 0 {
			width = m0 / 2
		}
		slots := make([]Ref, width)
		for i := range slots {
			slots[i] = NilRef
		}
		n.neighbors[l] = slots
	}
	a.nodes = append(a.nodes, n)
	return Ref(len(a.nodes) - 1)
}

func (a *arena) len() int { return len(a.nodes) }

// freeSlotCount returns how many empty neighbor slots remain at level l.
func (n *graphNode) freeSlotCount(l int) int {
	free := 0
	for _, ref := range n.neighbors[l] {
		if ref == NilRef {
			free++
		}
	}
	return free
}

// appendNeighbor writes ref into the first empty slot at level l.
func (n *graphNode) appendNeighbor(l int, ref Ref) {
	for i, slot := range n.neighbors[l] {
		if slot == NilRef {
			n.neighbors[l][i] = ref
			return
		}
	}
	panic("hnsw: appendNeighbor called on a full neighbor list")
}

// liveNeighbors returns the non-empty neighbor refs at level l.
func (n *graphNode) liveNeighbors(l int) []Ref {
	out := make([]Ref, 0, len(n.neighbors[l]))
	for _, ref := range n.neighbors[l] {
		if ref != NilRef {
			out = append(out, ref)
		}
	}
	return out
}

// clearNeighbors empties level l's neighbor list, returning the refs it held.
func (n *graphNode) clearNeighbors(l int) []Ref {
	old := n.liveNeighbors(l)
	for i := range n.neighbors[l] {
		n.neighbors[l][i] = NilRef
	}
	n.degrees[l].out = 0
	return old
}
