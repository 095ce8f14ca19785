package kmeans

import "fmt"

// Result is the outcome of one run.
type Result struct {
	// Labels holds the cluster of every point, each in [0, K).
	Labels []int
	// Centroids holds K blocks of Dim coordinates at full precision.
	Centroids []float64

	K, Dim     int
	Iterations int
	// Converged is false only when MaxIterations stopped the loop.
	Converged bool
	// Starved lists the clusters that received no points in the last iteration.
	Starved []int
	// Inertia is the sum of squared point-to-centroid distances of every assignment pass.
	Inertia []float64
}

// Centroid returns the coordinates of cluster j.
func (r *Result) Centroid(j int) []float64 {
	return r.Centroids[j*r.Dim : (j+1)*r.Dim]
}

// Counts returns the number of points per cluster.
func (r *Result) Counts() []int {
	counts := make([]int, r.K)
	for _, l := range r.Labels {
		counts[l]++
	}
	return counts
}

// Pack writes the labels followed by the truncated centroid coordinates into out,
// which must have length len(Labels)+K*Dim.
func (r *Result) Pack(out []int) error {
	n := len(r.Labels)
	if want := n + len(r.Centroids); len(out) != want {
		return &ArgumentError{Name: "output length", Value: len(out), Reason: fmt.Sprintf("want %d", want)}
	}
	copy(out, r.Labels)
	for i, c := range r.Centroids {
		out[n+i] = int(c)
	}
	return nil
}
