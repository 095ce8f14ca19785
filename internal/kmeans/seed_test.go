package kmeans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRun[T Scalar](t *testing.T, e *Engine[T], pts Points[T], k int) *run[T] {
	t.Helper()
	r, release, err := e.newRun(pts, k, make([]int, pts.Len()))
	require.NoError(t, err)
	t.Cleanup(release)
	return r
}

func TestPick(t *testing.T) {
	w := []float64{0, 1, 299, 21}
	assert.Equal(t, 0, pick(w, 0))
	assert.Equal(t, 1, pick(w, 0.5))
	assert.Equal(t, 1, pick(w, 1))
	assert.Equal(t, 2, pick(w, 1.0001))
	assert.Equal(t, 2, pick(w, 300))
	assert.Equal(t, 3, pick(w, 320))
	assert.Equal(t, 3, pick(w, 1e9))
}

func TestSeed_FirstIsPointZero(t *testing.T) {
	pts, err := NewPoints(randomPixels(200, 3), 3)
	require.NoError(t, err)

	r := newTestRun(t, parallelEngine[uint8](WithSeed(1)), pts, 4)
	require.NoError(t, r.seed(context.Background()))

	p0 := pts.At(0)
	assert.Equal(t, []float64{float64(p0[0]), float64(p0[1]), float64(p0[2])}, r.centroids[:3])

	// Every seed is a copy of some input point.
	for j := 0; j < 4; j++ {
		c := r.centroids[j*3 : (j+1)*3]
		found := false
		for i := 0; i < pts.Len() && !found; i++ {
			found = sqDist(pts.At(i), c) == 0
		}
		assert.True(t, found, "seed %d is not an input point", j)
	}
}

func TestSeed_PrefersDistantPoints(t *testing.T) {
	data := make([]uint8, 0, 103*3)
	for i := 0; i < 100; i++ {
		data = append(data, uint8(i%3), uint8(i%2), uint8(i%4))
	}
	for i := 0; i < 3; i++ {
		data = append(data, 200, 200, uint8(200+i))
	}
	pts, err := NewPoints(data, 3)
	require.NoError(t, err)

	const trials = 400
	distant := 0
	for seed := uint64(0); seed < trials; seed++ {
		r := newTestRun(t, New[uint8](WithSeed(seed)), pts, 2)
		require.NoError(t, r.seed(context.Background()))
		if r.centroids[3] >= 200 {
			distant++
		}
	}
	assert.GreaterOrEqual(t, float64(distant)/trials, 0.95)
}

func TestSeed_IdenticalPoints(t *testing.T) {
	pts, err := NewPoints([]float64{3, 3, 3, 3, 3, 3, 3, 3}, 2)
	require.NoError(t, err)

	r := newTestRun(t, New[float64](WithSeed(2)), pts, 3)
	require.NoError(t, r.seed(context.Background()))
	assert.Equal(t, []float64{3, 3, 3, 3, 3, 3}, r.centroids)
}

func TestSeed_DoesNotModifyPoints(t *testing.T) {
	data := randomPixels(500, 12)
	orig := append([]uint8(nil), data...)
	pts, err := NewPoints(data, 3)
	require.NoError(t, err)

	_, err = parallelEngine[uint8](WithSeed(3)).Run(context.Background(), pts, 5)
	require.NoError(t, err)
	assert.Equal(t, orig, data)
}

func TestSeed_RandomFirstStaysInRange(t *testing.T) {
	pts, err := NewPoints(randomPixels(50, 4), 3)
	require.NoError(t, err)

	for seed := uint64(0); seed < 20; seed++ {
		r := newTestRun(t, New[uint8](WithSeed(seed), WithFirstCentroid(FirstCentroidRandom)), pts, 3)
		require.NoError(t, r.seed(context.Background()))
		for _, c := range r.centroids {
			assert.True(t, c >= 0 && c <= 255)
		}
	}
}
