package hnsw

import (
	"math/rand"
	"testing"

	"github.com/orneryd/vecdex/pkg/vecmath"
)

func newTestGraph(dims uint16) *Graph {
	cfg := DefaultConfig(vecmath.L2Squared, dims)
	cfg.Seed = 42
	cfg.M0 = 8
	cfg.EfConstruct = 32
	cfg.EfSearch = 16
	return NewGraph(cfg)
}

func randomVector(r *rand.Rand, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func TestInsertAndSearchFindsExactMatch(t *testing.T) {
	g := newTestGraph(8)
	r := rand.New(rand.NewSource(1))

	var target []float32
	for i := 0; i < 200; i++ {
		v := randomVector(r, 8)
		ref := g.AllocNode(uint64(i+1), 0, v)
		g.Insert(ref)
		if i == 100 {
			target = v
		}
	}

	results := g.KNNSearch(target, 5)
	if results[0].Distance != 0 {
		t.Fatalf("expected exact match at distance 0, got %v", results[0].Distance)
	}
}

func TestInsertSingleNodeBootstrap(t *testing.T) {
	g := newTestGraph(4)
	ref := g.AllocNode(1, 0, []float32{1, 2, 3, 4})
	g.Insert(ref)

	if g.Elements() != 1 {
		t.Fatalf("expected 1 element, got %d", g.Elements())
	}
	if g.entry != ref || g.head != ref {
		t.Fatalf("expected entry/head to be the sole node")
	}
}

func TestDeleteExcludesFromResultsButKeepsRouting(t *testing.T) {
	g := newTestGraph(4)
	r := rand.New(rand.NewSource(2))

	var refs []Ref
	for i := 0; i < 50; i++ {
		v := randomVector(r, 4)
		ref := g.AllocNode(uint64(i+1), 0, v)
		g.Insert(ref)
		refs = append(refs, ref)
	}

	target := g.VectorAt(refs[10]).Payload
	g.Delete(refs[10])

	results := g.KNNSearch(target, 10)
	for _, res := range results {
		if res.ID == g.VectorAt(refs[10]).ID {
			t.Fatalf("deleted node %d appeared in results", res.ID)
		}
	}
	if g.Elements() != 50 {
		t.Fatalf("delete should not change element count, got %d", g.Elements())
	}
}

func TestLinearSearchRespectsTagFilter(t *testing.T) {
	g := newTestGraph(4)
	r := rand.New(rand.NewSource(3))

	const tagA = uint64(1) << 0
	const tagB = uint64(1) << 1

	for i := 0; i < 20; i++ {
		v := randomVector(r, 4)
		tag := tagA
		if i%2 == 0 {
			tag = tagB
		}
		ref := g.AllocNode(uint64(i+1), tag, v)
		g.Insert(ref)
	}

	results := g.LinearSearch(tagA, randomVector(r, 4), 5)
	for _, res := range results {
		if res.ID == 0 {
			continue
		}
		if res.ID%2 == 1 {
			t.Fatalf("result id %d should not match tagA-only filter (odd ids got tagB)", res.ID)
		}
	}
}

func TestLinearSearchZeroTagMatchesEverything(t *testing.T) {
	g := newTestGraph(4)
	r := rand.New(rand.NewSource(4))

	for i := 0; i < 10; i++ {
		ref := g.AllocNode(uint64(i+1), uint64(i+1), randomVector(r, 4))
		g.Insert(ref)
	}

	results := g.LinearSearch(0, randomVector(r, 4), 10)
	count := 0
	for _, res := range results {
		if res.ID != 0 {
			count++
		}
	}
	if count != 10 {
		t.Fatalf("expected all 10 nodes matched by zero tag filter, got %d", count)
	}
}

func TestAssignLevelDistributionIsNonNegativeAndMostlyZero(t *testing.T) {
	g := newTestGraph(4)
	zero := 0
	maxLevel := 0
	const trials = 2000
	for i := 0; i < trials; i++ {
		l := g.assignLevel()
		if l < 0 {
			t.Fatalf("assignLevel returned negative level %d", l)
		}
		if l == 0 {
			zero++
		}
		if l > maxLevel {
			maxLevel = l
		}
	}
	if zero < trials/2 {
		t.Fatalf("expected a majority of samples at level 0, got %d/%d", zero, trials)
	}
	if zero == trials {
		t.Fatalf("expected some samples above level 0 (U must cover the full (0,1) range), got all %d at level 0", trials)
	}
	if maxLevel == 0 {
		t.Fatalf("expected at least one sample above level 0 across %d trials", trials)
	}
}

func TestDegreeCountersStayWithinCapacity(t *testing.T) {
	g := newTestGraph(4)
	r := rand.New(rand.NewSource(5))

	var refs []Ref
	for i := 0; i < 100; i++ {
		ref := g.AllocNode(uint64(i+1), 0, randomVector(r, 4))
		g.Insert(ref)
		refs = append(refs, ref)
	}

	for _, ref := range refs {
		node := g.arena.get(ref)
		for l, d := range node.degrees {
			m := g.m0
			if l > 0 {
				m = g.m0 / 2
			}
			if int(d.out) > m {
				t.Fatalf("node out-degree %d exceeds capacity %d at level %d", d.out, m, l)
			}
		}
	}
}

func TestUpdateContextAppliesSelectively(t *testing.T) {
	g := newTestGraph(4)
	g.UpdateContext(999, 0, 0, true, false, false)
	if g.efConstruct != 999 {
		t.Fatalf("expected efConstruct updated to 999, got %d", g.efConstruct)
	}
	if g.efSearch != 16 {
		t.Fatalf("efSearch should be untouched, got %d", g.efSearch)
	}
}

func TestRaisingM0MidConstructionDoesNotPanicOnExistingNodes(t *testing.T) {
	g := newTestGraph(4)
	r := rand.New(rand.NewSource(7))

	// Fill level 0 out-degree to the original M0=8 cap for a batch of nodes.
	for i := 0; i < 60; i++ {
		ref := g.AllocNode(uint64(i+1), 0, randomVector(r, 4))
		g.Insert(ref)
	}

	g.UpdateContext(0, 0, 64, false, false, true)

	// Inserting more nodes under the raised M0 must not panic when
	// backlinking into a node whose neighbor array is still sized for the
	// original, smaller M0.
	for i := 60; i < 120; i++ {
		ref := g.AllocNode(uint64(i+1), 0, randomVector(r, 4))
		g.Insert(ref)
	}

	if g.Elements() != 120 {
		t.Fatalf("expected 120 elements, got %d", g.Elements())
	}
}

func TestRemapRegistersOnlyLiveNodes(t *testing.T) {
	g := newTestGraph(4)
	r := rand.New(rand.NewSource(6))

	var refs []Ref
	for i := 0; i < 10; i++ {
		ref := g.AllocNode(uint64(i+1), 0, randomVector(r, 4))
		g.Insert(ref)
		refs = append(refs, ref)
	}
	g.Delete(refs[3])

	seen := map[uint64]Ref{}
	g.Remap(func(id uint64, ref Ref) {
		seen[id] = ref
	})

	if len(seen) != 9 {
		t.Fatalf("expected 9 live nodes remapped, got %d", len(seen))
	}
	if _, ok := seen[g.VectorAt(refs[3]).ID]; ok {
		t.Fatalf("deleted node should not be remapped")
	}
}
