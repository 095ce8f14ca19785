package kmeans

import (
	"context"
	"math"
	"sync/atomic"

	"palettecam/internal/worker"
)

// update replaces every centroid with the mean of its points and returns the clusters
// that received none. A starved centroid keeps its previous coordinates.
func (r *run[T]) update(ctx context.Context) ([]int, error) {
	counts, sums := r.acc.counts, r.acc.sums
	err := r.part.Run(ctx, r.centroidRanges, func(_ int, rg worker.Range) error {
		for idx := rg.Lo; idx < rg.Hi; idx++ {
			if c := counts[idx/r.dim]; c > 0 {
				r.centroids[idx] = sums[idx] / float64(c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var starved []int
	for j, c := range counts {
		if c == 0 {
			starved = append(starved, j)
		}
	}
	return starved, nil
}

// changed reports whether any coordinate of r.centroids differs from r.prev.
func (r *run[T]) changed(ctx context.Context) (bool, error) {
	var moved atomic.Bool
	err := r.part.Run(ctx, r.centroidRanges, func(_ int, rg worker.Range) error {
		for idx := rg.Lo; idx < rg.Hi; idx++ {
			if differs(r.prev[idx], r.centroids[idx], r.tolerance) {
				moved.Store(true)
				return nil
			}
		}
		return nil
	})
	return moved.Load(), err
}

func differs(prev, next, tol float64) bool {
	if tol > 0 {
		return math.Abs(next-prev) > tol
	}
	return prev != next
}
