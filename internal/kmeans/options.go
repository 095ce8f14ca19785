package kmeans

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// FirstCentroid selects how the first seed centroid is picked.
type FirstCentroid int

const (
	// FirstCentroidIndex always seeds cluster 0 with point 0. Runs are reproducible
	// for a fixed random source.
	FirstCentroidIndex FirstCentroid = iota
	// FirstCentroidRandom draws the first seed uniformly, as canonical k-means++ does.
	FirstCentroidRandom
)

func (f FirstCentroid) String() string {
	switch f {
	case FirstCentroidIndex:
		return "index"
	case FirstCentroidRandom:
		return "random"
	default:
		return "unknown"
	}
}

// seedStream is the PCG stream used by WithSeed.
const seedStream = 0x9e3779b97f4a7c15

// Observer receives per-iteration and per-run statistics.
// Implementations must be safe for concurrent use when one Engine serves several goroutines.
type Observer interface {
	// ObserveIteration is called after every completed iteration with the assignment
	// objective (sum of squared distances to the assigned centroids) and the number of
	// clusters that received no points.
	ObserveIteration(iteration int, inertia float64, starved int)

	// ObserveRun is called once per run, including rejected and failed runs.
	ObserveRun(stats RunStats)
}

// RunStats summarizes one run for an Observer.
type RunStats struct {
	N, K, Dim  int
	Iterations int
	Converged  bool
	Starved    int
	Duration   time.Duration
	Err        error
}

// NoopObserver discards all statistics.
type NoopObserver struct{}

func (NoopObserver) ObserveIteration(int, float64, int) {}
func (NoopObserver) ObserveRun(RunStats)                {}

// Budget reserves memory for the working set of a run.
type Budget interface {
	TryAcquireMemory(bytes int64) bool
	ReleaseMemory(bytes int64)
}

// Options configures an Engine.
type Options struct {
	// Workers is the maximum number of goroutines per pass (default GOMAXPROCS).
	Workers int

	// MinPartition is the smallest number of points handed to one goroutine.
	MinPartition int

	// FirstCentroid selects the first seed (default FirstCentroidIndex).
	FirstCentroid FirstCentroid

	// MaxIterations caps the refinement loop. 0 runs until the centroids stop changing.
	MaxIterations int

	// Tolerance is the largest per-coordinate change still treated as "unchanged".
	// 0 requires exact equality.
	Tolerance float64

	// Source returns a fresh random source for each run.
	Source func() rand.Source

	Observer Observer
	Budget   Budget
	Logger   *zap.Logger
}

// DefaultOptions returns the reference configuration: fixed first seed, exact
// convergence, no iteration cap and a freshly seeded source per run.
func DefaultOptions() Options {
	return Options{
		FirstCentroid: FirstCentroidIndex,
		Source: func() rand.Source {
			return rand.NewPCG(rand.Uint64(), rand.Uint64())
		},
		Observer: NoopObserver{},
		Logger:   zap.NewNop(),
	}
}

// Option mutates Options.
type Option func(*Options)

// WithWorkers sets the number of goroutines per pass.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithMinPartition sets the minimum partition size in points.
func WithMinPartition(n int) Option {
	return func(o *Options) { o.MinPartition = n }
}

// WithFirstCentroid sets the first-seed policy.
func WithFirstCentroid(f FirstCentroid) Option {
	return func(o *Options) { o.FirstCentroid = f }
}

// WithMaxIterations caps the number of iterations.
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithTolerance relaxes the convergence test to |old-new| <= tol.
func WithTolerance(tol float64) Option {
	return func(o *Options) { o.Tolerance = tol }
}

// WithSeed makes every run draw from the same PCG sequence.
func WithSeed(seed uint64) Option {
	return func(o *Options) {
		o.Source = func() rand.Source { return rand.NewPCG(seed, seedStream) }
	}
}

// WithSource sets the per-run random source factory.
func WithSource(fn func() rand.Source) Option {
	return func(o *Options) {
		if fn != nil {
			o.Source = fn
		}
	}
}

// WithObserver sets the statistics observer.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithBudget limits the memory a run may reserve.
func WithBudget(b Budget) Option {
	return func(o *Options) { o.Budget = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
