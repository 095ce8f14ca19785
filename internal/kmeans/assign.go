package kmeans

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"palettecam/internal/worker"
)

// assign labels every point with its nearest centroid and returns the sum of squared
// distances from each point to its assigned centroid.
func (r *run[T]) assign(ctx context.Context) (float64, error) {
	err := r.part.Run(ctx, r.pointRanges, func(slot int, rg worker.Range) error {
		var inertia float64
		for i := rg.Lo; i < rg.Hi; i++ {
			best, sq := nearest(r.pts.At(i), r.centroids, r.dim)
			r.labels[i] = best
			inertia += sq
		}
		r.partials[slot] = inertia
		return nil
	})
	if err != nil {
		return 0, err
	}
	return floats.Sum(r.partials), nil
}

// nearest returns the index of the centroid closest to p and the squared distance to it.
// Centroids are scanned in ascending order with a strict comparison, so the lowest index
// wins a tie.
func nearest[T Scalar](p []T, centroids []float64, dim int) (int, float64) {
	best := 0
	bestDist, bestSq := math.Inf(1), math.Inf(1)
	for j, lo := 0, 0; lo < len(centroids); j, lo = j+1, lo+dim {
		sq := sqDist(p, centroids[lo:lo+dim])
		if dist := math.Sqrt(sq); dist < bestDist {
			bestDist, bestSq = dist, sq
			best = j
		}
	}
	return best, bestSq
}
