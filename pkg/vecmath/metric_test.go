package vecmath

import (
	"math"
	"testing"
)

func TestCompareL2Squared(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit offset", []float32{0, 0}, []float32{1, 0}, 1},
		{"symmetric", []float32{3, 4}, []float32{0, 0}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := L2Squared.Compare(tt.a, tt.b)
			if got != tt.expected {
				t.Errorf("L2Squared.Compare(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
			reverse := L2Squared.Compare(tt.b, tt.a)
			if reverse != got {
				t.Errorf("L2Squared.Compare not symmetric: %v vs %v", got, reverse)
			}
		})
	}
}

func TestCompareCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := Cosine.Compare(a, b); math.Abs(float64(got)-1.0) > 1e-6 {
		t.Errorf("identical vectors cosine = %v, want ~1.0", got)
	}

	orth := []float32{0, 1, 0}
	if got := Cosine.Compare(a, orth); math.Abs(float64(got)) > 1e-6 {
		t.Errorf("orthogonal vectors cosine = %v, want ~0", got)
	}

	zero := []float32{0, 0, 0}
	if got := Cosine.Compare(a, zero); got != 0 {
		t.Errorf("zero-vector cosine = %v, want 0", got)
	}
}

func TestIsBetterOrdering(t *testing.T) {
	if !L2Squared.IsBetter(1, 2) {
		t.Error("L2Squared: smaller distance should be better")
	}
	if L2Squared.IsBetter(2, 1) {
		t.Error("L2Squared: larger distance should not be better")
	}
	if !Cosine.IsBetter(0.9, 0.1) {
		t.Error("Cosine: larger similarity should be better")
	}
	if !Dot.IsBetter(5, -5) {
		t.Error("Dot: larger product should be better")
	}
}

func TestWorstMatchValueLosesEveryComparison(t *testing.T) {
	candidates := []float32{-1000, -1, 0, 1, 1000}
	for _, m := range []Metric{L2Squared, Cosine, Dot} {
		worst := m.WorstMatchValue()
		for _, c := range candidates {
			if m.IsBetter(worst, c) {
				t.Errorf("%v: worst match value %v beat candidate %v", m, worst, c)
			}
		}
	}
}

func TestAlignDims(t *testing.T) {
	cases := map[uint16]uint16{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 128: 128, 130: 132}
	for in, want := range cases {
		if got := AlignDims(in); got != want {
			t.Errorf("AlignDims(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	got := Normalize(v)
	for i, x := range got {
		if x != 0 {
			t.Errorf("Normalize(zero)[%d] = %v, want 0", i, x)
		}
	}
}

func TestMetricValid(t *testing.T) {
	if !L2Squared.Valid() || !Cosine.Valid() || !Dot.Valid() {
		t.Error("defined metrics should be valid")
	}
	if Metric(99).Valid() {
		t.Error("undefined metric should not be valid")
	}
}
