package video

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palettecam/internal/imageproc"
	"palettecam/internal/kmeans"
)

// rawVideo builds n frames whose left quarter is dark and the rest bright.
func rawVideo(n, width, height int) []byte {
	buf := make([]byte, 0, n*width*height*3)
	for f := 0; f < n; f++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if x < width/4 {
					buf = append(buf, 10, 10, uint8(10+f))
				} else {
					buf = append(buf, 240, 230, uint8(200+f))
				}
			}
		}
	}
	return buf
}

func newTestProcessor(t *testing.T, cfg Config) *FrameProcessor {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	q := imageproc.NewQuantizer(kmeans.New[uint8](kmeans.WithSeed(1), kmeans.WithWorkers(2)), nil)
	return NewFrameProcessor(cfg, q, nil)
}

func TestSplitFrames(t *testing.T) {
	frames, err := SplitFrames(make([]byte, 2*3*3+5), 3, 1)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
	assert.Len(t, frames[1], 9)
	assert.Equal(t, 9, cap(frames[0]))

	_, err = SplitFrames(nil, 0, 4)
	assert.Error(t, err)
}

func TestProcessBuffer(t *testing.T) {
	dir := t.TempDir()
	fp := newTestProcessor(t, Config{
		OutputDir:          dir,
		SampleEveryNFrames: 5,
		K:                  2,
		Workers:            2,
		DebugEvery:         2,
	})
	require.NotEqual(t, uuid.Nil, fp.RunID())

	require.NoError(t, fp.ProcessBuffer(context.Background(), rawVideo(5, 16, 8), 16, 8, 25))

	results := fp.Results()
	require.Len(t, results, 5)
	for i, r := range results {
		// a raw dump holds consecutive frames whatever the sample rate
		assert.Equal(t, i, r.FrameNumber)
		assert.InDelta(t, float64(i)/25, r.Timestamp, 1e-12)
		assert.Equal(t, fp.RunID().String(), r.RunID)
		require.Len(t, r.Analysis.Colors, 2)
		assert.InDelta(t, 0.75, r.Analysis.Proportions[0], 1e-9)
	}

	data, err := os.ReadFile(filepath.Join(dir, ResultsFile))
	require.NoError(t, err)
	var saved []FrameResult
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Len(t, saved, 5)
	assert.Equal(t, results[3].Analysis.Hex, saved[3].Analysis.Hex)

	for _, name := range []string{"frame_0000.png", "frame_0002.png", "frame_0004.png"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "frame_0001.png"))
}

func TestProcessBuffer_Sampled(t *testing.T) {
	fp := newTestProcessor(t, Config{K: 2, PixelsPerFrame: 64, Workers: 3})
	require.NoError(t, fp.ProcessBuffer(context.Background(), rawVideo(3, 16, 8), 16, 8, 0))

	results := fp.Results()
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Zero(t, r.Timestamp)
		assert.InDelta(t, 1.0, r.Analysis.Proportions[0]+r.Analysis.Proportions[1], 1e-9)
	}
}

func TestProcessBuffer_FrameErrorsAreSkipped(t *testing.T) {
	fp := newTestProcessor(t, Config{K: 0, Workers: 1})
	require.NoError(t, fp.ProcessBuffer(context.Background(), rawVideo(2, 4, 4), 4, 4, 30))
	assert.Empty(t, fp.Results())
}

func TestProcessBuffer_Canceled(t *testing.T) {
	fp := newTestProcessor(t, Config{K: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fp.ProcessBuffer(ctx, rawVideo(2, 4, 4), 4, 4, 30)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fp.Results())
}

func TestFrameBufferPool(t *testing.T) {
	p := NewFrameBufferPool(12, 2)
	a, b := p.Get(), p.Get()
	assert.Len(t, a.data, 12)
	assert.NotSame(t, a, b)

	p.Put(a)
	assert.Same(t, a, p.Get())
}
