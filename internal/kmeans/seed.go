package kmeans

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"palettecam/internal/worker"
)

// seed fills r.centroids with k starting points using distance-weighted sampling.
//
// Each new seed is the first point whose running sum of squared distances to the
// nearest chosen seed reaches a uniform draw in [0, total). If rounding leaves the
// running sum short of the draw, the last point is taken.
func (r *run[T]) seed(ctx context.Context) error {
	first := 0
	if r.first == FirstCentroidRandom {
		first = r.rng.IntN(r.n)
	}
	c0 := r.centroids[:r.dim]
	setCentroid(c0, r.pts.At(first))

	err := r.part.Run(ctx, r.pointRanges, func(_ int, rg worker.Range) error {
		for i := rg.Lo; i < rg.Hi; i++ {
			r.minDist[i] = sqDist(r.pts.At(i), c0)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for j := 1; j < r.k; j++ {
		total, err := r.totalMinDist(ctx)
		if err != nil {
			return err
		}
		next := pick(r.minDist, r.rng.Float64()*total)

		cj := r.centroids[j*r.dim : (j+1)*r.dim]
		setCentroid(cj, r.pts.At(next))
		if j == r.k-1 {
			break
		}

		err = r.part.Run(ctx, r.pointRanges, func(_ int, rg worker.Range) error {
			for i := rg.Lo; i < rg.Hi; i++ {
				if d := sqDist(r.pts.At(i), cj); d < r.minDist[i] {
					r.minDist[i] = d
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run[T]) totalMinDist(ctx context.Context) (float64, error) {
	err := r.part.Run(ctx, r.pointRanges, func(slot int, rg worker.Range) error {
		r.partials[slot] = floats.Sum(r.minDist[rg.Lo:rg.Hi])
		return nil
	})
	if err != nil {
		return 0, err
	}
	return floats.Sum(r.partials), nil
}

// pick walks the cumulative weights in index order and returns the first index whose
// cumulative weight reaches target, or the last index.
func pick(weights []float64, target float64) int {
	var cum float64
	for i, w := range weights {
		cum += w
		if cum >= target {
			return i
		}
	}
	return len(weights) - 1
}
