package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"palettecam/internal/ffmpeg"
	"palettecam/internal/imageproc"
	"palettecam/internal/worker"
)

// ResultsFile is the name of the report written to the output directory.
const ResultsFile = "analysis_results.json"

// FrameResult stores the palette of one processed frame.
type FrameResult struct {
	RunID       string              `json:"run_id"`
	FrameNumber int                 `json:"frame_number"`
	Timestamp   float64             `json:"timestamp"`
	Analysis    *imageproc.Analysis `json:"analysis"`
}

// FrameBuffer is a reusable frame plus the clustering buffer sized for it.
type FrameBuffer struct {
	data []byte
	out  []int
}

// FrameBufferPool manages a pool of frame buffers to minimize GC pressure.
type FrameBufferPool struct {
	pool chan *FrameBuffer
}

// NewFrameBufferPool creates poolSize buffers of bufferSize bytes.
func NewFrameBufferPool(bufferSize, poolSize int) *FrameBufferPool {
	pool := make(chan *FrameBuffer, poolSize)
	for i := 0; i < poolSize; i++ {
		pool <- &FrameBuffer{data: make([]byte, bufferSize)}
	}
	return &FrameBufferPool{pool: pool}
}

// Get blocks until a buffer is free.
func (p *FrameBufferPool) Get() *FrameBuffer {
	return <-p.pool
}

// Put returns a buffer to the pool.
func (p *FrameBufferPool) Put(buffer *FrameBuffer) {
	p.pool <- buffer
}

// Config configures a FrameProcessor.
type Config struct {
	VideoURL  string
	OutputDir string
	TimeRange *ffmpeg.TimeRange

	SampleEveryNFrames int
	// PixelsPerFrame clusters a random sample instead of the whole frame. 0 clusters
	// every pixel and recolors the frame.
	PixelsPerFrame int
	K              int

	// Width and Height scale frames before clustering. 0 keeps the source size.
	Width  int
	Height int

	// Workers is the number of frames clustered concurrently.
	Workers int
	// DebugEvery saves a PNG every N frames. 0 disables debug images.
	DebugEvery int
}

type frameSource interface {
	FrameSize() int
	ReadFrame(buf []byte) error
}

// FrameProcessor extracts frames from a video and computes their palettes.
type FrameProcessor struct {
	cfg       Config
	quantizer *imageproc.Quantizer
	log       *zap.Logger
	runID     uuid.UUID

	width     int
	height    int
	framerate float64
	offset    float64
	// frameStep is the number of source frames between two decoded frames.
	frameStep int

	results      []FrameResult
	resultsMutex sync.Mutex
}

// NewFrameProcessor creates a processor. Every call gets a new run ID.
func NewFrameProcessor(cfg Config, q *imageproc.Quantizer, logger *zap.Logger) *FrameProcessor {
	if cfg.SampleEveryNFrames < 1 {
		cfg.SampleEveryNFrames = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.New()
	return &FrameProcessor{
		cfg:       cfg,
		quantizer: q,
		log:       logger.With(zap.String("run_id", runID.String())),
		runID:     runID,
	}
}

// RunID identifies the results of this processor.
func (fp *FrameProcessor) RunID() uuid.UUID { return fp.runID }

// ProcessFrames probes the video, decodes it through ffmpeg and analyzes every sampled frame.
func (fp *FrameProcessor) ProcessFrames(ctx context.Context) error {
	if !strings.Contains(fp.cfg.VideoURL, "://") {
		if _, err := os.Stat(fp.cfg.VideoURL); err != nil {
			return fmt.Errorf("cannot access video file '%s': %w", fp.cfg.VideoURL, err)
		}
	}

	fp.log.Info("getting video information", zap.String("video", fp.cfg.VideoURL))
	info, err := ffmpeg.Probe(ctx, fp.cfg.VideoURL)
	if err != nil {
		return fmt.Errorf("error getting video info: %w", err)
	}
	fp.log.Info("video probed",
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Float64("fps", info.FrameRate),
		zap.Bool("hdr", info.HDR),
	)
	if info.HDR {
		fp.log.Warn("HDR content detected, palettes are computed on untonemapped rgb24")
	}

	fp.width, fp.height = info.Width, info.Height
	if fp.cfg.Width > 0 && fp.cfg.Height > 0 {
		fp.width, fp.height = fp.cfg.Width, fp.cfg.Height
	}
	fp.framerate = info.FrameRate
	fp.frameStep = fp.cfg.SampleEveryNFrames
	if tr := fp.cfg.TimeRange; tr != nil && tr.Start != "" {
		if fp.offset, err = ffmpeg.ParseTime(tr.Start); err != nil {
			return err
		}
	}

	stream, err := ffmpeg.Start(ctx, ffmpeg.Options{
		URL:                fp.cfg.VideoURL,
		Width:              fp.width,
		Height:             fp.height,
		SampleEveryNFrames: fp.cfg.SampleEveryNFrames,
		TimeRange:          fp.cfg.TimeRange,
	}, fp.log)
	if err != nil {
		return fmt.Errorf("error creating FFmpeg process: %w", err)
	}

	procErr := fp.process(ctx, stream)
	if err := stream.Close(); err != nil && procErr == nil {
		fp.log.Warn("ffmpeg exited with error", zap.Error(err))
	}
	return procErr
}

// ProcessBuffer analyzes a raw rgb24 dump of width x height frames recorded at framerate.
// Every frame of the dump is analyzed and numbered consecutively; SampleEveryNFrames only
// applies to decoded video.
func (fp *FrameProcessor) ProcessBuffer(ctx context.Context, buffer []byte, width, height int, framerate float64) error {
	frames, err := SplitFrames(buffer, width, height)
	if err != nil {
		return err
	}
	fp.width, fp.height, fp.framerate = width, height, framerate
	fp.frameStep = 1
	return fp.process(ctx, &sliceSource{frames: frames, frameSize: width * height * 3})
}

func (fp *FrameProcessor) process(ctx context.Context, src frameSource) error {
	if err := os.MkdirAll(fp.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	startTime := time.Now()

	pool, err := worker.NewFramePool(fp.cfg.Workers, fp.log)
	if err != nil {
		return err
	}
	defer pool.Release()

	// one buffer per worker plus one being filled by the reader
	bufferPool := NewFrameBufferPool(src.FrameSize(), fp.cfg.Workers+1)

	frameCount := 0
	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		buffer := bufferPool.Get()
		if err := src.ReadFrame(buffer.data); err != nil {
			bufferPool.Put(buffer)
			if !errors.Is(err, io.EOF) {
				readErr = fmt.Errorf("error reading frame %d: %w", frameCount, err)
			}
			break
		}

		frameNum := frameCount
		err := pool.Submit(func() {
			defer bufferPool.Put(buffer)
			fp.handleFrame(ctx, frameNum, buffer)
		})
		if err != nil {
			bufferPool.Put(buffer)
			readErr = err
			break
		}
		frameCount++
	}
	pool.Wait()

	if err := fp.writeResults(); err != nil {
		return err
	}
	fp.log.Info("processing complete",
		zap.Int("frames", frameCount),
		zap.Int("analyzed", len(fp.Results())),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return readErr
}

func (fp *FrameProcessor) handleFrame(ctx context.Context, frameNum int, buffer *FrameBuffer) {
	frame := imageproc.Frame{Pix: buffer.data, Width: fp.width, Height: fp.height, Stride: fp.width * 3}

	var (
		analysis *imageproc.Analysis
		err      error
	)
	if fp.cfg.PixelsPerFrame > 0 {
		rng := rand.New(rand.NewPCG(rand.Uint64(), uint64(frameNum)))
		analysis, err = fp.quantizer.Analyze(ctx, frame, fp.cfg.K, fp.cfg.PixelsPerFrame, rng)
	} else {
		size, sizeErr := imageproc.BufferLen(frame.Pixels(), fp.cfg.K)
		if sizeErr != nil {
			fp.log.Error("error analyzing frame", zap.Int("frame", frameNum), zap.Error(sizeErr))
			return
		}
		if len(buffer.out) != size {
			buffer.out = make([]int, size)
		}
		analysis, err = fp.quantizer.Quantize(ctx, frame, fp.cfg.K, buffer.out)
	}
	if err != nil {
		fp.log.Error("error analyzing frame", zap.Int("frame", frameNum), zap.Error(err))
		return
	}

	if fp.cfg.DebugEvery > 0 && frameNum%fp.cfg.DebugEvery == 0 {
		fp.log.Info("processed frames", zap.Int("frame", frameNum))
		if err := fp.saveDebugImage(frameNum, frame, analysis); err != nil {
			fp.log.Warn("error saving debug image", zap.Error(err))
		}
	}

	number := frameNum * fp.frameStep
	result := FrameResult{
		RunID:       fp.runID.String(),
		FrameNumber: number,
		Analysis:    analysis,
	}
	if fp.framerate > 0 {
		result.Timestamp = fp.offset + float64(number)/fp.framerate
	}

	fp.resultsMutex.Lock()
	fp.results = append(fp.results, result)
	fp.resultsMutex.Unlock()
}

// saveDebugImage writes the frame with its palette swatches as a PNG.
func (fp *FrameProcessor) saveDebugImage(frameNum int, frame imageproc.Frame, a *imageproc.Analysis) error {
	img := frame.ToRGBA()
	imageproc.DrawSwatches(img, a.Colors, min(imageproc.DefaultSwatchSize, frame.Height))

	outputPath := filepath.Join(fp.cfg.OutputDir, fmt.Sprintf("frame_%04d.png", frameNum))
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating debug image file: %w", err)
	}
	defer file.Close()
	return png.Encode(file, img)
}

func (fp *FrameProcessor) writeResults() error {
	results := fp.Results()
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling results: %w", err)
	}
	resultsFile := filepath.Join(fp.cfg.OutputDir, ResultsFile)
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return fmt.Errorf("error writing results file: %w", err)
	}
	fp.log.Info("results saved", zap.String("path", resultsFile))
	return nil
}

// Results returns a copy of the analyzed frames ordered by frame number.
func (fp *FrameProcessor) Results() []FrameResult {
	fp.resultsMutex.Lock()
	defer fp.resultsMutex.Unlock()

	resultsCopy := make([]FrameResult, len(fp.results))
	copy(resultsCopy, fp.results)
	sort.Slice(resultsCopy, func(i, j int) bool {
		return resultsCopy[i].FrameNumber < resultsCopy[j].FrameNumber
	})
	return resultsCopy
}
