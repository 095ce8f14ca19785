package kmeans

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palettecam/internal/worker"
)

func TestAccumulate_MatchesSerial(t *testing.T) {
	const n, k, dim = 10000, 7, 3
	pts, err := NewPoints(randomPixels(n, 21), dim)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(4, 4))
	labels := make([]int, n)
	for i := range labels {
		labels[i] = rng.IntN(k)
	}

	wantCounts := make([]int, k)
	wantSums := make([]float64, k*dim)
	for i, l := range labels {
		wantCounts[l]++
		for d, v := range pts.At(i) {
			wantSums[l*dim+d] += float64(v)
		}
	}

	part := worker.NewPartitioner(8, 16)
	ranges := part.Split(n)
	acc := newAccumulator(k, dim, len(ranges))

	// A second pass must rebuild the totals rather than add to them.
	for pass := 0; pass < 2; pass++ {
		require.NoError(t, accumulate(context.Background(), acc, part, ranges, pts, labels))
		assert.Equal(t, wantCounts, acc.counts)
		assert.Equal(t, wantSums, acc.sums)
	}
}

func TestAccumulate_MergesInSlotOrder(t *testing.T) {
	const n, k, dim = 4096, 3, 2
	rng := rand.New(rand.NewPCG(8, 8))
	data := make([]float64, n*dim)
	for i := range data {
		data[i] = rng.NormFloat64() * 1e6
	}
	pts, err := NewPoints(data, dim)
	require.NoError(t, err)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = rng.IntN(k)
	}

	part := worker.NewPartitioner(16, 32)
	ranges := part.Split(n)
	require.Len(t, ranges, 16)

	want := make([]float64, k*dim)
	for _, rg := range ranges {
		local := make([]float64, k*dim)
		for i := rg.Lo; i < rg.Hi; i++ {
			for d, v := range pts.At(i) {
				local[labels[i]*dim+d] += v
			}
		}
		for i, v := range local {
			want[i] += v
		}
	}

	acc := newAccumulator(k, dim, len(ranges))
	for pass := 0; pass < 20; pass++ {
		require.NoError(t, accumulate(context.Background(), acc, part, ranges, pts, labels))
		require.Equal(t, want, acc.sums, "pass %d", pass)
	}
}

func TestUpdate_StarvedKeepsCoordinates(t *testing.T) {
	pts, err := NewPoints([]float64{0, 0, 2, 2}, 2)
	require.NoError(t, err)

	r := newTestRun(t, New[float64](WithWorkers(2), WithMinPartition(1)), pts, 2)
	copy(r.centroids, []float64{0, 0, 42, -7})
	r.acc.counts[0] = 2
	r.acc.sums[0], r.acc.sums[1] = 2, 2

	starved, err := r.update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, starved)
	assert.Equal(t, []float64{1, 1, 42, -7}, r.centroids)
}

func TestChanged(t *testing.T) {
	pts, err := NewPoints([]float64{0, 0}, 2)
	require.NoError(t, err)

	r := newTestRun(t, New[float64](), pts, 2)
	copy(r.prev, []float64{1, 2, 3, 4})
	copy(r.centroids, r.prev)

	moved, err := r.changed(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)

	r.centroids[3] = math.Nextafter(4, 5)
	moved, err = r.changed(context.Background())
	require.NoError(t, err)
	assert.True(t, moved)

	r.tolerance = 1e-6
	moved, err = r.changed(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestNearest_TieGoesToLowestIndex(t *testing.T) {
	centroids := []float64{
		5, 5,
		1, 1,
		-1, -1,
		1, 1,
	}
	j, d := nearest([]int{0, 0}, centroids, 2)
	assert.Equal(t, 1, j)
	assert.InDelta(t, 2, d, 1e-12)

	j, _ = nearest([]int{1, 1}, centroids, 2)
	assert.Equal(t, 1, j)
}

func TestAssign_Inertia(t *testing.T) {
	pts, err := NewPoints([]int{0, 0, 3, 4, 10, 10}, 2)
	require.NoError(t, err)

	r := newTestRun(t, New[int](WithWorkers(3), WithMinPartition(1)), pts, 2)
	copy(r.centroids, []float64{0, 0, 10, 10})

	inertia, err := r.assign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1}, r.labels)
	assert.InDelta(t, 25.0, inertia, 1e-12)
}
