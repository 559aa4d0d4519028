// Package heap implements the dual-mode binary heap the HNSW search and
// insertion algorithms share: a best-top heap for the candidate frontier and
// a worst-top heap for the bounded result set, both backed by the same type
// so sift-up/sift-down share one implementation and only branch on mode.
package heap

import (
	"errors"

	"github.com/orneryd/vecdex/internal/invariant"
)

// Mode selects which element sits at the root.
type Mode int

const (
	// BestTop keeps the element IsBetter prefers at the root.
	BestTop Mode = iota
	// WorstTop keeps the element IsBetter dislikes at the root — the one
	// to evict first when the heap is full.
	WorstTop
)

// NoLimit marks a heap as unbounded; it grows by doubling instead of
// rejecting inserts once at capacity.
const NoLimit = -1

const defaultCapacity = 50

var (
	// ErrFull is returned by Insert on a bounded heap already at capacity.
	ErrFull = errors.New("heap: full")
	// ErrEmpty is returned by Pop, Peek, and ReplaceTop on an empty heap.
	ErrEmpty = errors.New("heap: empty")
)

// Node is a single heap element: a distance plus an opaque payload. Payload
// is either a node reference (during traversal) or a raw id (during result
// emission) — callers type-assert it back out.
type Node struct {
	Distance float32
	Payload  any
}

// IsBetterFunc reports whether x is a better match than y. The heap uses it
// to decide both sift direction and the semantics of InsertOrReplaceIfBetter.
type IsBetterFunc func(x, y float32) bool

// Heap is an array-backed binary heap with a configurable root policy.
type Heap struct {
	mode     Mode
	capacity int // NoLimit for unbounded
	isBetter IsBetterFunc
	items    []Node
}

// New creates a heap of the given mode and capacity (NoLimit for unbounded).
func New(mode Mode, capacity int, isBetter IsBetterFunc) *Heap {
	invariant.PanicIf(isBetter == nil, "heap: isBetter comparator is nil")
	initial := capacity
	if capacity == NoLimit {
		initial = defaultCapacity
	}
	return &Heap{
		mode:     mode,
		capacity: capacity,
		isBetter: isBetter,
		items:    make([]Node, 0, initial),
	}
}

// Size returns the number of elements currently held.
func (h *Heap) Size() int { return len(h.items) }

// Cap returns the heap's configured capacity, or NoLimit if unbounded.
func (h *Heap) Cap() int { return h.capacity }

// Full reports whether the heap is at capacity. Unbounded heaps are never full.
func (h *Heap) Full() bool {
	return h.capacity != NoLimit && len(h.items) >= h.capacity
}

// Insert adds a node to the heap, growing an unbounded heap if needed.
func (h *Heap) Insert(n Node) error {
	if h.Full() {
		return ErrFull
	}
	h.items = append(h.items, n)
	h.siftUp(len(h.items) - 1)
	return nil
}

// Pop removes and returns the root.
func (h *Heap) Pop() (Node, error) {
	if len(h.items) == 0 {
		return Node{}, ErrEmpty
	}
	root := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return root, nil
}

// Peek returns the root without removing it.
func (h *Heap) Peek() (Node, error) {
	if len(h.items) == 0 {
		return Node{}, ErrEmpty
	}
	return h.items[0], nil
}

// ReplaceTop overwrites the root with n and restores the heap invariant.
// The heap must be non-empty.
func (h *Heap) ReplaceTop(n Node) error {
	if len(h.items) == 0 {
		return ErrEmpty
	}
	h.items[0] = n
	if len(h.items) > 1 {
		h.siftDown(0)
	}
	return nil
}

// InsertOrReplaceIfBetter inserts n if there is room; otherwise, if n is a
// better match than the current root, replaces the root with n. Returns
// true if the heap's contents changed.
func (h *Heap) InsertOrReplaceIfBetter(n Node) bool {
	if !h.Full() {
		_ = h.Insert(n)
		return true
	}
	root, err := h.Peek()
	invariant.PanicIf(err != nil, "heap: full heap reported empty on peek")
	if h.isBetter(n.Distance, root.Distance) {
		_ = h.ReplaceTop(n)
		return true
	}
	return false
}

// rootWins reports whether, for this heap's mode, the element at index i
// should sit above the element at index j in the ordering the mode wants.
func (h *Heap) rootWins(i, j int) bool {
	if h.mode == BestTop {
		return h.isBetter(h.items[i].Distance, h.items[j].Distance)
	}
	return !h.isBetter(h.items[i].Distance, h.items[j].Distance)
}

func (h *Heap) siftUp(i int) {
	for i != 0 {
		p := parent(i)
		if h.rootWins(i, p) {
			h.items[i], h.items[p] = h.items[p], h.items[i]
			i = p
		} else {
			break
		}
	}
}

func (h *Heap) siftDown(i int) {
	n := len(h.items)
	for {
		l, r := leftChild(i), rightChild(i)
		target := i
		if l < n && h.rootWins(l, target) {
			target = l
		}
		if r < n && h.rootWins(r, target) {
			target = r
		}
		if target == i {
			break
		}
		h.items[i], h.items[target] = h.items[target], h.items[i]
		i = target
	}
}

func parent(i int) int     { return (i - 1) / 2 }
func leftChild(i int) int  { return 2*i + 1 }
func rightChild(i int) int { return 2*i + 2 }
