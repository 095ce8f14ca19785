package kmeans

import (
	"context"
	"sync"

	"palettecam/internal/worker"
)

// accumulator holds per-cluster counts and per-dimension sums for one iteration.
type accumulator struct {
	k, dim int

	mu     sync.Mutex
	counts []int
	sums   []float64

	// local[slot] is private to the worker that owns the slot.
	local []partial
}

type partial struct {
	counts []int
	sums   []float64
}

func newAccumulator(k, dim, slots int) *accumulator {
	a := &accumulator{
		k:      k,
		dim:    dim,
		counts: make([]int, k),
		sums:   make([]float64, k*dim),
		local:  make([]partial, slots),
	}
	for i := range a.local {
		a.local[i] = partial{counts: make([]int, k), sums: make([]float64, k*dim)}
	}
	return a
}

func (a *accumulator) reset() {
	clear(a.counts)
	clear(a.sums)
}

// merge folds one worker's partial into the shared totals.
func (a *accumulator) merge(p *partial) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for j, c := range p.counts {
		a.counts[j] += c
	}
	for i, s := range p.sums {
		a.sums[i] += s
	}
}

// accumulate resets the totals and rebuilds them from labels. Each worker fills only its
// own partial; the partials are then merged in slot order, one lock per slot, so the
// float sums do not depend on which worker finishes first.
func accumulate[T Scalar](ctx context.Context, a *accumulator, part *worker.Partitioner, ranges []worker.Range, pts Points[T], labels []int) error {
	a.reset()
	err := part.Run(ctx, ranges, func(slot int, rg worker.Range) error {
		p := &a.local[slot]
		clear(p.counts)
		clear(p.sums)
		for i := rg.Lo; i < rg.Hi; i++ {
			c := labels[i]
			p.counts[c]++
			sums := p.sums[c*a.dim : (c+1)*a.dim]
			for d, v := range pts.At(i) {
				sums[d] += float64(v)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for slot := range ranges {
		a.merge(&a.local[slot])
	}
	return nil
}
