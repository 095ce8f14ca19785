package imageproc

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"palettecam/internal/kmeans"
)

// Quantizer reduces RGB frames to a k-color palette.
type Quantizer struct {
	engine *kmeans.Engine[uint8]
	log    *zap.Logger
}

// NewQuantizer wraps engine. A nil engine uses kmeans defaults.
func NewQuantizer(engine *kmeans.Engine[uint8], logger *zap.Logger) *Quantizer {
	if engine == nil {
		engine = kmeans.New[uint8]()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quantizer{engine: engine, log: logger}
}

// BufferLen is the length of the buffer Quantize needs for a frame of pixels points.
func BufferLen(pixels, k int) (int, error) {
	return kmeans.OutputLen(pixels, k, 3)
}

// Quantize clusters every pixel of f into k colors and recolors f in place with the color
// of its cluster. out receives the labels followed by the truncated centroids and must
// have length BufferLen(f.Pixels(), k).
func (q *Quantizer) Quantize(ctx context.Context, f Frame, k int, out []int) (*Analysis, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	pts, err := kmeans.NewPoints(f.rgb(), 3)
	if err != nil {
		return nil, err
	}
	res, err := q.engine.RunInto(ctx, pts, k, out)
	if err != nil {
		return nil, fmt.Errorf("error clustering frame: %w", err)
	}

	n := f.Pixels()
	palette := paletteFromBuffer(out[n:], k)
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Stride:]
		labels := out[y*f.Width : (y+1)*f.Width]
		for x, l := range labels {
			c := palette[l]
			row[x*3], row[x*3+1], row[x*3+2] = c[0], c[1], c[2]
		}
	}

	if len(res.Starved) > 0 {
		q.log.Debug("clusters left empty", zap.Int("k", k), zap.Ints("starved", res.Starved))
	}
	return newAnalysis(palette, res.Counts(), res.Iterations, res.Converged), nil
}

// Analyze computes the palette of f without modifying it. When sampleSize is positive
// and smaller than the frame, only sampleSize random pixels drawn from rng are clustered.
func (q *Quantizer) Analyze(ctx context.Context, f Frame, k, sampleSize int, rng *rand.Rand) (*Analysis, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	data := f.rgb()
	if sampleSize > 0 && sampleSize < f.Pixels() {
		data = Sample(f, sampleSize, rng)
	}
	pts, err := kmeans.NewPoints(data, 3)
	if err != nil {
		return nil, err
	}
	res, err := q.engine.Run(ctx, pts, k)
	if err != nil {
		return nil, fmt.Errorf("error clustering frame: %w", err)
	}

	palette := make([][3]uint8, k)
	for j := range palette {
		palette[j] = toColor(res.Centroid(j))
	}
	return newAnalysis(palette, res.Counts(), res.Iterations, res.Converged), nil
}

// Sample returns n pixels of f picked uniformly with replacement.
func Sample(f Frame, n int, rng *rand.Rand) []uint8 {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	total := f.Pixels()
	sample := make([]uint8, 0, n*3)
	for i := 0; i < n; i++ {
		idx := rng.IntN(total)
		base := (idx/f.Width)*f.Stride + (idx%f.Width)*3
		sample = append(sample, f.Pix[base], f.Pix[base+1], f.Pix[base+2])
	}
	return sample
}

func paletteFromBuffer(tail []int, k int) [][3]uint8 {
	palette := make([][3]uint8, k)
	for j := range palette {
		for d := 0; d < 3; d++ {
			palette[j][d] = clampChannel(tail[j*3+d])
		}
	}
	return palette
}

func toColor(c []float64) [3]uint8 {
	return [3]uint8{clampChannel(int(c[0])), clampChannel(int(c[1])), clampChannel(int(c[2]))}
}

func clampChannel(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}
