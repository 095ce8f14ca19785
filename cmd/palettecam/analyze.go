package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"palettecam/internal/ffmpeg"
	"palettecam/internal/video"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [video]",
		Short: "Compute the palette of every Nth frame of a video",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().String("output", "./results", "Directory to save analysis results")
	cmd.Flags().String("start", "", "Start time (format: HH:MM:SS)")
	cmd.Flags().String("end", "", "End time (format: HH:MM:SS)")
	cmd.Flags().Int("sample-rate", 5, "Process every Nth frame")
	cmd.Flags().Int("pixels", 0, "Cluster this many random pixels per frame (0 = every pixel)")
	cmd.Flags().Int("frame-workers", 2, "Frames clustered concurrently")
	cmd.Flags().Int("debug-every", 100, "Save a quantized PNG every N frames (0 = never)")
	cmd.Flags().Int("width", 0, "Scale frames to this width (0 = source size)")
	cmd.Flags().Int("height", 0, "Scale frames to this height (0 = source size)")
	cmd.Flags().Bool("raw", false, "Input is a raw rgb24 dump of --width x --height frames")
	cmd.Flags().Float64("fps", 0, "Frame rate of a raw input")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	vcfg := a.cfg.Video
	pcfg := video.Config{
		VideoURL:           args[0],
		OutputDir:          a.cfg.Output.Dir,
		SampleEveryNFrames: vcfg.SampleEveryNFrames,
		PixelsPerFrame:     vcfg.PixelsPerFrame,
		K:                  a.cfg.Clustering.K,
		Workers:            vcfg.FrameWorkers,
		DebugEvery:         a.cfg.Output.DebugEvery,
	}
	if cmd.Flags().Changed("width") && cmd.Flags().Changed("height") {
		pcfg.Width, pcfg.Height = vcfg.Width, vcfg.Height
	}
	if vcfg.Start != "" || vcfg.End != "" {
		pcfg.TimeRange = &ffmpeg.TimeRange{Start: vcfg.Start, End: vcfg.End}
	}

	processor := video.NewFrameProcessor(pcfg, a.quantizer(), a.log)
	a.log.Info("starting analysis", zap.String("video", args[0]), zap.Stringer("run_id", processor.RunID()))

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		if pcfg.Width == 0 || pcfg.Height == 0 {
			return fmt.Errorf("--raw requires --width and --height")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading raw video: %w", err)
		}
		fps, _ := cmd.Flags().GetFloat64("fps")
		err = processor.ProcessBuffer(cmd.Context(), data, pcfg.Width, pcfg.Height, fps)
		if err != nil {
			return fmt.Errorf("error processing video: %w", err)
		}
	} else if err := processor.ProcessFrames(cmd.Context()); err != nil {
		return fmt.Errorf("error processing video: %w", err)
	}

	results := processor.Results()
	a.log.Info("analysis complete", zap.Int("frames", len(results)))
	if len(results) > 0 {
		first := results[0]
		a.log.Info("first frame",
			zap.Int("frame", first.FrameNumber),
			zap.Float64("timestamp", first.Timestamp),
			zap.Strings("palette", first.Analysis.Hex),
		)
	}
	return nil
}
