package session

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"palettecam/internal/imageproc"
)

// Loop runs exactly one quantization per displayed frame, paced to a frame rate.
// Commands may arrive from other goroutines between frames.
type Loop struct {
	mu        sync.Mutex
	session   *Session
	quantizer *imageproc.Quantizer
	limiter   *rate.Limiter
	frames    int
}

// NewLoop creates a loop. fps <= 0 disables pacing.
func NewLoop(s *Session, q *imageproc.Quantizer, fps float64) *Loop {
	limit := rate.Inf
	if fps > 0 && !math.IsInf(fps, 1) {
		limit = rate.Limit(fps)
	}
	return &Loop{session: s, quantizer: q, limiter: rate.NewLimiter(limit, 1)}
}

// Apply executes cmd before the next frame.
func (l *Loop) Apply(cmd Command) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session.Apply(cmd)
}

// State returns the current K and viewport.
func (l *Loop) State() (int, Viewport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session.K(), l.session.Viewport()
}

// Frames returns the number of frames quantized so far.
func (l *Loop) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Next waits for the frame slot, scales frame to the viewport and quantizes it. The
// returned frame holds the recolored pixels and may share memory with frame.
func (l *Loop) Next(ctx context.Context, frame imageproc.Frame) (imageproc.Frame, *imageproc.Analysis, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return imageproc.Frame{}, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	view := l.session.Viewport()
	scaled := imageproc.ScaleNearest(frame, view.Width, view.Height)
	out, err := l.session.Buffer(scaled.Pixels())
	if err != nil {
		return imageproc.Frame{}, nil, err
	}
	a, err := l.quantizer.Quantize(ctx, scaled, l.session.K(), out)
	if err != nil {
		return imageproc.Frame{}, nil, err
	}
	l.frames++
	return scaled, a, nil
}
