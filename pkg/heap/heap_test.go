package heap

import "testing"

func lessIsBetter(x, y float32) bool { return x < y }
func moreIsBetter(x, y float32) bool { return x > y }

func TestBestTopOrdering(t *testing.T) {
	h := New(BestTop, NoLimit, lessIsBetter)
	for _, d := range []float32{5, 3, 8, 1, 9, 2} {
		if err := h.Insert(Node{Distance: d}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	var popped []float32
	for h.Size() > 0 {
		n, err := h.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		popped = append(popped, n.Distance)
	}
	want := []float32{1, 2, 3, 5, 8, 9}
	for i, w := range want {
		if popped[i] != w {
			t.Errorf("pop order[%d] = %v, want %v (full: %v)", i, popped[i], w, popped)
		}
	}
}

func TestWorstTopOrdering(t *testing.T) {
	h := New(WorstTop, NoLimit, lessIsBetter)
	for _, d := range []float32{5, 3, 8, 1, 9, 2} {
		_ = h.Insert(Node{Distance: d})
	}
	root, err := h.Peek()
	if err != nil || root.Distance != 9 {
		t.Errorf("worst-top root = %v, err=%v, want 9", root.Distance, err)
	}
}

func TestBoundedHeapFull(t *testing.T) {
	h := New(BestTop, 3, lessIsBetter)
	for i := 0; i < 3; i++ {
		if err := h.Insert(Node{Distance: float32(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if !h.Full() {
		t.Fatal("expected heap to be full")
	}
	if err := h.Insert(Node{Distance: 99}); err != ErrFull {
		t.Errorf("insert on full heap = %v, want ErrFull", err)
	}
}

func TestUnboundedGrowsPastDefaultCapacity(t *testing.T) {
	h := New(BestTop, NoLimit, lessIsBetter)
	for i := 0; i < defaultCapacity*3; i++ {
		if err := h.Insert(Node{Distance: float32(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if h.Size() != defaultCapacity*3 {
		t.Errorf("size = %d, want %d", h.Size(), defaultCapacity*3)
	}
}

func TestInsertOrReplaceIfBetter(t *testing.T) {
	// worst-top heap keeps the best k results: replace the current worst
	// only if the newcomer is a better match.
	h := New(WorstTop, 2, moreIsBetter)
	_ = h.Insert(Node{Distance: 0.9})
	_ = h.Insert(Node{Distance: 0.5})

	changed := h.InsertOrReplaceIfBetter(Node{Distance: 0.3})
	if changed {
		t.Error("worse candidate should not have replaced the root")
	}
	root, _ := h.Peek()
	if root.Distance != 0.5 {
		t.Errorf("root after rejected replace = %v, want 0.5", root.Distance)
	}

	changed = h.InsertOrReplaceIfBetter(Node{Distance: 0.95})
	if !changed {
		t.Error("better candidate should have replaced the root")
	}
	root, _ = h.Peek()
	if root.Distance != 0.9 {
		t.Errorf("root after accepted replace = %v, want 0.9", root.Distance)
	}
}

func TestPeekAndPopOnEmptyHeap(t *testing.T) {
	h := New(BestTop, NoLimit, lessIsBetter)
	if _, err := h.Peek(); err != ErrEmpty {
		t.Errorf("peek on empty = %v, want ErrEmpty", err)
	}
	if _, err := h.Pop(); err != ErrEmpty {
		t.Errorf("pop on empty = %v, want ErrEmpty", err)
	}
}

func TestReplaceTopRestoresInvariant(t *testing.T) {
	h := New(BestTop, NoLimit, lessIsBetter)
	for _, d := range []float32{1, 2, 3, 4, 5} {
		_ = h.Insert(Node{Distance: d})
	}
	if err := h.ReplaceTop(Node{Distance: 100}); err != nil {
		t.Fatalf("replace top: %v", err)
	}
	root, _ := h.Peek()
	if root.Distance != 2 {
		t.Errorf("root after replacing best with worst = %v, want 2", root.Distance)
	}
}

func TestPayloadRoundTrips(t *testing.T) {
	type ref struct{ id uint64 }
	h := New(BestTop, NoLimit, lessIsBetter)
	_ = h.Insert(Node{Distance: 1, Payload: ref{id: 42}})
	n, err := h.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	got, ok := n.Payload.(ref)
	if !ok || got.id != 42 {
		t.Errorf("payload = %#v, want ref{42}", n.Payload)
	}
}
