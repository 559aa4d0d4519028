package index

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, dims uint16) *Index {
	t.Helper()
	idx, err := New(HNSW, L2Squared, dims, &Config{Seed: 7, M0: 8, EfConstruct: 32, EfSearch: 16})
	require.NoError(t, err)
	return idx
}

func TestNewRejectsUnsupportedKind(t *testing.T) {
	_, err := New(Flat, L2Squared, 4, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidIndexType))
}

func TestNewRejectsZeroDims(t *testing.T) {
	_, err := New(HNSW, L2Squared, 0, nil)
	require.True(t, errors.Is(err, ErrInvalidDimensions))
}

func TestSearchOnEmptyIndexReturnsErrIndexEmpty(t *testing.T) {
	idx := newTestIndex(t, 4)
	_, err := idx.Search([]float32{0, 0, 0, 0}, 5, 0)
	require.True(t, errors.Is(err, ErrIndexEmpty))
}

func TestInsertDuplicateRejected(t *testing.T) {
	idx := newTestIndex(t, 4)
	require.NoError(t, idx.Insert(7, 0, []float32{1, 2, 3, 4}))
	err := idx.Insert(7, 0, []float32{1, 2, 3, 4})
	require.True(t, errors.Is(err, ErrDuplicatedEntry))
	require.Equal(t, 1, idx.Size())
}

func TestInsertRejectsZeroID(t *testing.T) {
	idx := newTestIndex(t, 4)
	err := idx.Insert(0, 0, []float32{1, 2, 3, 4})
	require.True(t, errors.Is(err, ErrInvalidID))
}

func TestInsertRejectsWrongDimensions(t *testing.T) {
	idx := newTestIndex(t, 4)
	err := idx.Insert(1, 0, []float32{1, 2, 3})
	require.True(t, errors.Is(err, ErrInvalidDimensions))
}

func TestSingleElementSearchReturnsClosestMatchFirst(t *testing.T) {
	idx := newTestIndex(t, 4)
	require.NoError(t, idx.Insert(1, 0, []float32{1, 0, 0, 0}))

	results, err := idx.Search([]float32{0.9, 0, 0, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, uint64(1), results[0].ID)
	require.InDelta(t, 0.01, results[0].Distance, 1e-6)
	require.Equal(t, uint64(0), results[1].ID)
	require.Equal(t, uint64(0), results[2].ID)
}

func TestDeleteHidesFromResultsButPreservesSize(t *testing.T) {
	idx := newTestIndex(t, 4)
	r := rand.New(rand.NewSource(11))
	for i := 1; i <= 100; i++ {
		v := []float32{r.Float32(), r.Float32(), r.Float32(), r.Float32()}
		require.NoError(t, idx.Insert(uint64(i), 0, v))
	}

	require.NoError(t, idx.Delete(42))
	require.Equal(t, 100, idx.Size())
	require.False(t, idx.Contains(42))

	results, err := idx.Search([]float32{0.5, 0.5, 0.5, 0.5}, 100, 0)
	require.NoError(t, err)
	for _, res := range results {
		require.NotEqual(t, uint64(42), res.ID)
	}
}

func TestDeleteUnknownIDReturnsErrNotFoundID(t *testing.T) {
	idx := newTestIndex(t, 4)
	err := idx.Delete(99)
	require.True(t, errors.Is(err, ErrNotFoundID))
}

func TestDeleteThenReinsertSucceeds(t *testing.T) {
	idx := newTestIndex(t, 4)
	require.NoError(t, idx.Insert(5, 0, []float32{1, 1, 1, 1}))
	require.NoError(t, idx.Delete(5))
	require.NoError(t, idx.Insert(5, 0, []float32{2, 2, 2, 2}))
	require.True(t, idx.Contains(5))
}

func TestTagFilteredSearchRestrictsToMatchingTags(t *testing.T) {
	idx := newTestIndex(t, 4)
	r := rand.New(rand.NewSource(12))
	for i := uint64(1); i <= 1000; i++ {
		v := []float32{r.Float32(), r.Float32(), r.Float32(), r.Float32()}
		tag := uint64(1) << (i % 4)
		require.NoError(t, idx.Insert(i, tag, v))
	}

	results, err := idx.Search([]float32{0.5, 0.5, 0.5, 0.5}, 10, 0b0101)
	require.NoError(t, err)
	for _, res := range results {
		if res.ID == 0 {
			continue
		}
		require.Contains(t, []uint64{0, 2}, res.ID%4)
	}
}

func TestUpdateContextAppliesSelectedFieldsOnly(t *testing.T) {
	idx := newTestIndex(t, 4)
	require.NoError(t, idx.UpdateContext(Context{EfSearch: 500}, SetEfSearch))
	require.Equal(t, 500, idx.graph.EfSearch())
	require.Equal(t, 32, idx.graph.EfConstruct())
	require.Equal(t, 8, idx.graph.M0())
}

func TestStatsRecordsSuccessfulOperations(t *testing.T) {
	idx := newTestIndex(t, 4)
	require.NoError(t, idx.Insert(1, 0, []float32{1, 2, 3, 4}))
	_, err := idx.Search([]float32{1, 2, 3, 4}, 1, 0)
	require.NoError(t, err)

	stats := idx.Stats()
	require.EqualValues(t, 1, stats.Insert.Count)
	require.EqualValues(t, 1, stats.Search.Count)
}

func TestConcurrentSearchesRecordStatsWithoutRacing(t *testing.T) {
	idx := newTestIndex(t, 4)
	r := rand.New(rand.NewSource(9))
	for i := 0; i < 50; i++ {
		v := make([]float32, 4)
		for j := range v {
			v[j] = r.Float32()
		}
		require.NoError(t, idx.Insert(uint64(i+1), 0, v))
	}

	const goroutines = 16
	done := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, err := idx.Search([]float32{0.1, 0.2, 0.3, 0.4}, 5, 0)
			require.NoError(t, err)
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}

	require.EqualValues(t, goroutines, idx.Stats().Search.Count)
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	idx := newTestIndex(t, 4)
	require.NoError(t, idx.Close())
	err := idx.Insert(1, 0, []float32{1, 2, 3, 4})
	require.True(t, errors.Is(err, ErrInvalidIndex))
}
