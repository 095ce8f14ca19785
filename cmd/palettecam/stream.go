package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
	"unicode"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"palettecam/internal/ffmpeg"
	"palettecam/internal/imageproc"
	"palettecam/internal/metrics"
	"palettecam/internal/session"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream [url]",
		Short: "Quantize a live stream frame by frame",
		Long: `Decode a live source with ffmpeg and quantize every displayed frame.

Palette size and viewport are changed at runtime by typing on stdin:
  +  increase k        -  decrease k (minimum 1)
  m  widen viewport    n  heighten viewport
  j  narrow viewport   k  shorten viewport`,
		Args: cobra.ExactArgs(1),
		RunE: runStream,
	}
	cmd.Flags().Int("source-width", 640, "Decode width")
	cmd.Flags().Int("source-height", 480, "Decode height")
	cmd.Flags().Int("width", 320, "Initial viewport width")
	cmd.Flags().Int("height", 240, "Initial viewport height")
	cmd.Flags().Float64("fps", 30, "Frames quantized per second (0 = as fast as decoded)")
	cmd.Flags().String("out", "", "Write quantized rgb24 frames to this file, - for stdout")
	cmd.Flags().Int("report-every", 30, "Log the palette every N frames")
	cmd.Flags().Bool("metrics", false, "Serve Prometheus metrics")
	cmd.Flags().String("metrics-addr", ":2112", "Metrics listen address")
	return cmd
}

func runStream(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	srcW, _ := cmd.Flags().GetInt("source-width")
	srcH, _ := cmd.Flags().GetInt("source-height")
	stream, err := ffmpeg.Start(ctx, ffmpeg.Options{URL: args[0], Width: srcW, Height: srcH}, a.log)
	if err != nil {
		return err
	}
	defer stream.Close()

	if a.cfg.Metrics.Enabled {
		stop := serveMetrics(a)
		defer stop()
	}

	out, closeOut, err := openFrameWriter(cmd)
	if err != nil {
		return err
	}
	defer closeOut()

	sess := session.New(a.cfg.Clustering.K, session.Viewport{Width: a.cfg.Video.Width, Height: a.cfg.Video.Height}, a.log)
	loop := session.NewLoop(sess, a.quantizer(), a.cfg.Video.FPS)
	go readCommands(cmd.InOrStdin(), loop, a.log)

	reportEvery, _ := cmd.Flags().GetInt("report-every")
	buf := make([]byte, stream.FrameSize())
	for {
		if err := stream.ReadFrame(buf); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			return fmt.Errorf("error reading frame: %w", err)
		}

		frame := imageproc.Frame{Pix: buf, Width: srcW, Height: srcH, Stride: srcW * 3}
		quantized, analysis, err := loop.Next(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		if out != nil {
			if _, err := out.Write(quantized.Pix); err != nil {
				return fmt.Errorf("error writing frame: %w", err)
			}
		}
		if n := loop.Frames(); reportEvery > 0 && n%reportEvery == 0 {
			a.log.Info("palette",
				zap.Int("frame", n),
				zap.Int("k", len(analysis.Colors)),
				zap.Int("width", quantized.Width),
				zap.Int("height", quantized.Height),
				zap.Strings("colors", analysis.Hex),
				zap.Int64("memory_bytes", a.resources.MemoryUsage()),
			)
		}
	}

	a.log.Info("stream finished", zap.Int("frames", loop.Frames()))
	return nil
}

// readCommands applies the single-key commands typed on r until r is closed.
func readCommands(r io.Reader, loop *session.Loop, log *zap.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, key := range scanner.Text() {
			if unicode.IsSpace(key) {
				continue
			}
			cmd, err := session.ParseCommand(string(key))
			if err != nil {
				log.Warn("ignoring input", zap.Error(err))
				continue
			}
			loop.Apply(cmd)
		}
	}
}

func openFrameWriter(cmd *cobra.Command) (io.Writer, func(), error) {
	path, _ := cmd.Flags().GetString("out")
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		w := bufio.NewWriter(cmd.OutOrStdout())
		return w, func() { _ = w.Flush() }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating %s: %w", path, err)
	}
	w := bufio.NewWriter(file)
	return w, func() {
		_ = w.Flush()
		_ = file.Close()
	}, nil
}

func serveMetrics(a *app) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.log.Info("metrics available", zap.String("addr", a.cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server error", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
