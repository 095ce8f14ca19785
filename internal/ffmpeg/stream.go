package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// TimeRange limits processing to [Start, End). Either bound may be empty.
type TimeRange struct {
	Start string
	End   string
}

// Options configures a raw rgb24 decode.
type Options struct {
	URL string
	// Width and Height scale the output. Both are required by Start.
	Width  int
	Height int
	// FPS resamples the output rate. 0 keeps the source rate.
	FPS float64
	// SampleEveryNFrames keeps one input frame out of N. Values below 2 keep all.
	SampleEveryNFrames int
	TimeRange          *TimeRange
}

// Args builds the ffmpeg command line for opts.
func Args(opts Options) ([]string, error) {
	args := []string{"-loglevel", "info", "-nostdin"}

	if tr := opts.TimeRange; tr != nil {
		var start float64
		if tr.Start != "" {
			s, err := ParseTime(tr.Start)
			if err != nil {
				return nil, err
			}
			start = s
			args = append(args, "-ss", tr.Start)
		}
		if tr.End != "" {
			end, err := ParseTime(tr.End)
			if err != nil {
				return nil, err
			}
			if end <= start {
				return nil, fmt.Errorf("end %s is not after start %s", tr.End, tr.Start)
			}
			args = append(args, "-t", fmt.Sprintf("%.3f", end-start))
		}
	}

	args = append(args, "-probesize", "32M", "-analyzeduration", "10M")
	if isNetwork(opts.URL) {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "10",
		)
	}
	args = append(args, "-i", opts.URL)

	var filters []string
	if opts.SampleEveryNFrames > 1 {
		filters = append(filters, fmt.Sprintf("select=not(mod(n\\,%d))", opts.SampleEveryNFrames))
	}
	if opts.FPS > 0 {
		filters = append(filters, "fps="+strconv.FormatFloat(opts.FPS, 'f', -1, 64))
	}
	if opts.Width > 0 && opts.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d:flags=neighbor", opts.Width, opts.Height))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	if opts.SampleEveryNFrames > 1 {
		args = append(args, "-vsync", "vfr")
	}

	return append(args,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	), nil
}

func isNetwork(url string) bool {
	for _, scheme := range []string{"http://", "https://", "rtmp://", "rtsp://"} {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}

// Stream reads fixed-size rgb24 frames from a running ffmpeg process.
type Stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	width  int
	height int
	log    *zap.Logger
	stderr chan struct{}
}

// Start spawns ffmpeg for opts. The process is killed when ctx is canceled.
func Start(ctx context.Context, opts Options, logger *zap.Logger) (*Stream, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", opts.Width, opts.Height)
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in $PATH: %w", err)
	}
	args, err := Args(opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("starting ffmpeg", zap.Strings("args", args))
	return start(exec.CommandContext(ctx, "ffmpeg", args...), opts.Width, opts.Height, logger)
}

func start(cmd *exec.Cmd, width, height int, logger *zap.Logger) (*Stream, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting ffmpeg: %w", err)
	}

	s := &Stream{
		cmd:    cmd,
		stdout: stdout,
		width:  width,
		height: height,
		log:    logger,
		stderr: make(chan struct{}),
	}
	go s.logStderr(stderr)
	return s, nil
}

func (s *Stream) logStderr(r io.Reader) {
	defer close(s.stderr)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.log.Debug("ffmpeg", zap.String("line", scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("error reading ffmpeg output", zap.Error(err))
	}
}

func (s *Stream) Width() int  { return s.width }
func (s *Stream) Height() int { return s.height }

// FrameSize is the byte size of one frame.
func (s *Stream) FrameSize() int { return s.width * s.height * 3 }

// ReadFrame fills buf with the next frame. It returns io.EOF at the end of the stream and
// io.ErrUnexpectedEOF when the stream ends inside a frame.
func (s *Stream) ReadFrame(buf []byte) error {
	if len(buf) != s.FrameSize() {
		return fmt.Errorf("frame buffer has %d bytes, want %d", len(buf), s.FrameSize())
	}
	_, err := io.ReadFull(s.stdout, buf)
	return err
}

// Close stops reading and waits for the process to exit.
func (s *Stream) Close() error {
	_ = s.stdout.Close()
	<-s.stderr
	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !exitErr.Exited() {
		// killed after we stopped reading
		return nil
	}
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w", err)
	}
	return nil
}
