package kmeans

import "fmt"

// Scalar is a channel value type a point buffer can hold.
type Scalar interface {
	~uint8 | ~uint16 | ~uint32 | ~int | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Points is a read-only view over N points of dimension D stored back to back.
// The backing slice stays owned by the caller.
type Points[T Scalar] struct {
	data []T
	dim  int
}

// NewPoints wraps data as points of dimension dim.
func NewPoints[T Scalar](data []T, dim int) (Points[T], error) {
	if dim <= 0 {
		return Points[T]{}, &ArgumentError{Name: "dim", Value: dim, Reason: "must be positive"}
	}
	if len(data)%dim != 0 {
		return Points[T]{}, &ArgumentError{
			Name:   "data",
			Value:  len(data),
			Reason: fmt.Sprintf("length is not a multiple of dim %d", dim),
		}
	}
	return Points[T]{data: data, dim: dim}, nil
}

// Len returns the number of points.
func (p Points[T]) Len() int {
	if p.dim == 0 {
		return 0
	}
	return len(p.data) / p.dim
}

// Dim returns the number of channels per point.
func (p Points[T]) Dim() int { return p.dim }

// At returns the channels of point i. The slice aliases the caller's buffer.
func (p Points[T]) At(i int) []T {
	lo := i * p.dim
	return p.data[lo : lo+p.dim : lo+p.dim]
}

// sqDist is the squared Euclidean distance between a point and a centroid.
func sqDist[T Scalar](p []T, c []float64) float64 {
	var s float64
	for d, v := range p {
		diff := float64(v) - c[d]
		s += diff * diff
	}
	return s
}

func setCentroid[T Scalar](dst []float64, p []T) {
	for d, v := range p {
		dst[d] = float64(v)
	}
}
