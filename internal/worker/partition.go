package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultMinChunk is the smallest number of indices worth handing to a goroutine.
const DefaultMinChunk = 2048

// Range is the half-open index interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

// Len returns the number of indices in the range.
func (r Range) Len() int { return r.Hi - r.Lo }

// Split divides [0, n) into at most parts contiguous ranges whose sizes differ by at most one.
func Split(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}

	ranges := make([]Range, parts)
	size, rem := n/parts, n%parts
	lo := 0
	for i := range ranges {
		hi := lo + size
		if i < rem {
			hi++
		}
		ranges[i] = Range{Lo: lo, Hi: hi}
		lo = hi
	}
	return ranges
}

// Partitioner runs fork-join passes over index ranges.
// It holds no per-call state and is safe for concurrent use.
type Partitioner struct {
	workers  int
	minChunk int
}

// NewPartitioner returns a partitioner using up to workers goroutines per pass.
// workers <= 0 selects GOMAXPROCS; minChunk <= 0 selects DefaultMinChunk.
func NewPartitioner(workers, minChunk int) *Partitioner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if minChunk <= 0 {
		minChunk = DefaultMinChunk
	}
	return &Partitioner{workers: workers, minChunk: minChunk}
}

// Workers returns the maximum number of goroutines used by a pass.
func (p *Partitioner) Workers() int { return p.workers }

// Split partitions [0, n) into no more than Workers() ranges of at least minChunk indices
// (except when n itself is smaller).
func (p *Partitioner) Split(n int) []Range {
	parts := (n + p.minChunk - 1) / p.minChunk
	if parts > p.workers {
		parts = p.workers
	}
	return Split(n, parts)
}

// Run calls fn once per range and waits for all of them. slot is the index of the range
// in ranges, so callers can keep slot-private state without locking.
// The first error cancels the remaining ranges that have not started yet.
func (p *Partitioner) Run(ctx context.Context, ranges []Range, fn func(slot int, r Range) error) error {
	switch len(ranges) {
	case 0:
		return ctx.Err()
	case 1:
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, ranges[0])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for slot, r := range ranges {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(slot, r)
		})
	}
	return g.Wait()
}
