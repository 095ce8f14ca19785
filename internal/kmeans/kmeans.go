package kmeans

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"palettecam/internal/worker"
)

// Engine clusters point buffers of channel type T.
// It is safe for concurrent use; runs share nothing but the options.
type Engine[T Scalar] struct {
	opts Options
	part *worker.Partitioner
	log  *zap.Logger
}

// New creates an Engine from DefaultOptions modified by opts.
func New[T Scalar](opts ...Option) *Engine[T] {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[T]{
		opts: o,
		part: worker.NewPartitioner(o.Workers, o.MinPartition),
		log:  o.Logger,
	}
}

// Options returns the engine configuration.
func (e *Engine[T]) Options() Options { return e.opts }

// OutputLen is the length of the combined buffer RunInto fills: n labels followed by
// k*dim centroid coordinates.
func OutputLen(n, k, dim int) (int, error) {
	kd, ok := checkedMul(k, dim)
	if !ok {
		return 0, fmt.Errorf("%w: k*dim overflows (k=%d, dim=%d)", ErrAllocation, k, dim)
	}
	total, ok := checkedAdd(n, kd)
	if !ok {
		return 0, fmt.Errorf("%w: n+k*dim overflows (n=%d, k*dim=%d)", ErrAllocation, n, kd)
	}
	return total, nil
}

// Run clusters pts into k clusters and returns the result with a freshly allocated
// combined buffer behind Result.Labels.
func (e *Engine[T]) Run(ctx context.Context, pts Points[T], k int) (*Result, error) {
	if err := validate(pts, k); err != nil {
		e.finish(pts, k, nil, time.Now(), err)
		return nil, err
	}
	size, err := OutputLen(pts.Len(), k, pts.Dim())
	if err != nil {
		e.finish(pts, k, nil, time.Now(), err)
		return nil, err
	}
	var out []int
	if err := allocate(func() { out = make([]int, size) }); err != nil {
		e.finish(pts, k, nil, time.Now(), err)
		return nil, err
	}
	return e.RunInto(ctx, pts, k, out)
}

// RunInto clusters pts into k clusters and writes the labels of the N points followed by
// the K*D final centroid coordinates, truncated to int, into out. len(out) must equal
// OutputLen(N, k, D). The labels in the returned Result alias out[:N].
func (e *Engine[T]) RunInto(ctx context.Context, pts Points[T], k int, out []int) (*Result, error) {
	start := time.Now()
	res, err := e.runInto(ctx, pts, k, out)
	e.finish(pts, k, res, start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine[T]) runInto(ctx context.Context, pts Points[T], k int, out []int) (*Result, error) {
	if err := validate(pts, k); err != nil {
		return nil, err
	}
	n, dim := pts.Len(), pts.Dim()
	want, err := OutputLen(n, k, dim)
	if err != nil {
		return nil, err
	}
	if len(out) != want {
		return nil, &ArgumentError{
			Name:   "output length",
			Value:  len(out),
			Reason: fmt.Sprintf("want n+k*dim = %d", want),
		}
	}

	r, release, err := e.newRun(pts, k, out[:n])
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.seed(ctx); err != nil {
		return nil, err
	}
	copy(r.prev, r.centroids)

	res := &Result{Labels: out[:n], K: k, Dim: dim}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inertia, err := r.assign(ctx)
		if err != nil {
			return nil, err
		}
		if err := accumulate(ctx, r.acc, r.part, r.pointRanges, pts, r.labels); err != nil {
			return nil, err
		}
		starved, err := r.update(ctx)
		if err != nil {
			return nil, err
		}
		changed, err := r.changed(ctx)
		if err != nil {
			return nil, err
		}
		copy(r.prev, r.centroids)

		res.Iterations++
		res.Inertia = append(res.Inertia, inertia)
		res.Starved = starved
		e.opts.Observer.ObserveIteration(res.Iterations, inertia, len(starved))

		if !changed {
			res.Converged = true
			break
		}
		if e.opts.MaxIterations > 0 && res.Iterations >= e.opts.MaxIterations {
			break
		}
	}

	res.Centroids = append([]float64(nil), r.centroids...)
	tail := out[n:]
	for i, c := range r.centroids {
		tail[i] = int(c)
	}
	return res, nil
}

func (e *Engine[T]) finish(pts Points[T], k int, res *Result, start time.Time, err error) {
	stats := RunStats{
		N:        pts.Len(),
		K:        k,
		Dim:      pts.Dim(),
		Duration: time.Since(start),
		Err:      err,
	}
	if res != nil {
		stats.Iterations = res.Iterations
		stats.Converged = res.Converged
		stats.Starved = len(res.Starved)
	}
	e.opts.Observer.ObserveRun(stats)

	if err != nil {
		e.log.Debug("kmeans run failed",
			zap.Int("n", stats.N), zap.Int("k", k), zap.Int("dim", stats.Dim), zap.Error(err))
		return
	}
	e.log.Debug("kmeans run",
		zap.Int("n", stats.N),
		zap.Int("k", k),
		zap.Int("dim", stats.Dim),
		zap.Int("iterations", stats.Iterations),
		zap.Bool("converged", stats.Converged),
		zap.Int("starved", stats.Starved),
		zap.Duration("elapsed", stats.Duration),
	)
}

func validate[T Scalar](pts Points[T], k int) error {
	if pts.Dim() <= 0 {
		return &ArgumentError{Name: "dim", Value: pts.Dim(), Reason: "must be positive"}
	}
	if k <= 0 {
		return &ArgumentError{Name: "k", Value: k, Reason: "must be positive"}
	}
	if pts.Len() == 0 {
		return &ArgumentError{Name: "n", Value: 0, Reason: fmt.Sprintf("cannot seed %d clusters from no points", k)}
	}
	return nil
}

// run is the working state of one clustering call.
type run[T Scalar] struct {
	pts       Points[T]
	n, k, dim int

	centroids []float64
	prev      []float64
	labels    []int
	minDist   []float64
	partials  []float64
	acc       *accumulator

	part           *worker.Partitioner
	pointRanges    []worker.Range
	centroidRanges []worker.Range

	rng       *rand.Rand
	first     FirstCentroid
	tolerance float64
}

// workingSet estimates the bytes newRun allocates.
func workingSet(n, k, dim, slots int) (int64, bool) {
	kd, ok := checkedMul(k, dim)
	if !ok {
		return 0, false
	}
	perAcc, ok := checkedAdd(k, kd)
	if !ok {
		return 0, false
	}
	accs, ok := checkedMul(perAcc, slots+1)
	if !ok {
		return 0, false
	}
	words := n + slots
	for _, v := range []int{kd, kd, accs} {
		if words, ok = checkedAdd(words, v); !ok {
			return 0, false
		}
	}
	bytes, ok := checkedMul(words, 8)
	return int64(bytes), ok
}

func (e *Engine[T]) newRun(pts Points[T], k int, labels []int) (*run[T], func(), error) {
	n, dim := pts.Len(), pts.Dim()
	pointRanges := e.part.Split(n)
	slots := len(pointRanges)

	bytes, ok := workingSet(n, k, dim, slots)
	if !ok {
		return nil, nil, fmt.Errorf("%w: working set overflows (n=%d, k=%d, dim=%d)", ErrAllocation, n, k, dim)
	}
	release := func() {}
	if b := e.opts.Budget; b != nil {
		if !b.TryAcquireMemory(bytes) {
			return nil, nil, fmt.Errorf("%w: budget refused %d bytes", ErrAllocation, bytes)
		}
		release = func() { b.ReleaseMemory(bytes) }
	}

	r := &run[T]{
		pts:            pts,
		n:              n,
		k:              k,
		dim:            dim,
		labels:         labels,
		part:           e.part,
		pointRanges:    pointRanges,
		centroidRanges: e.part.Split(k * dim),
		rng:            rand.New(e.opts.Source()),
		first:          e.opts.FirstCentroid,
		tolerance:      e.opts.Tolerance,
	}
	err := allocate(func() {
		r.centroids = make([]float64, k*dim)
		r.prev = make([]float64, k*dim)
		r.minDist = make([]float64, n)
		r.partials = make([]float64, slots)
		r.acc = newAccumulator(k, dim, slots)
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return r, release, nil
}
