package kmeans

import (
	"errors"
	"fmt"
	"math"
	"runtime"
)

var (
	// ErrInvalidArgument is returned when a run is rejected before doing any work.
	ErrInvalidArgument = errors.New("kmeans: invalid argument")

	// ErrAllocation is returned when the working buffers of a run cannot be obtained.
	// The output buffer of a failed run is not valid.
	ErrAllocation = errors.New("kmeans: allocation failed")
)

// ArgumentError describes a rejected parameter.
//
// errors.Is(err, ErrInvalidArgument) reports true for every ArgumentError.
type ArgumentError struct {
	Name   string
	Value  int
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("kmeans: invalid %s %d: %s", e.Name, e.Value, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

func checkedMul(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

func checkedAdd(a, b int) (int, bool) {
	if a > math.MaxInt-b {
		return 0, false
	}
	return a + b, true
}

// allocate runs fn and turns a runtime allocation panic (e.g. makeslice: len out of range)
// into ErrAllocation.
func allocate(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			re, ok := rec.(runtime.Error)
			if !ok {
				panic(rec)
			}
			err = fmt.Errorf("%w: %v", ErrAllocation, re)
		}
	}()
	fn()
	return nil
}
