package main

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"palettecam/internal/imageproc"
)

func newQuantizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quantize [image]",
		Short: "Quantize a PNG or JPEG image to a k-color palette",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuantize,
	}
	cmd.Flags().String("out", "", "Output PNG (default <image>_k<k>.png)")
	cmd.Flags().String("palette", "", "Write the palette as JSON to this file (default stdout)")
	cmd.Flags().Bool("swatches", true, "Draw palette swatches along the bottom edge")
	cmd.Flags().Int("width", 0, "Scale the image to this width before clustering")
	cmd.Flags().Int("height", 0, "Scale the image to this height before clustering")
	return cmd
}

func runQuantize(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	input := args[0]
	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("error opening image: %w", err)
	}
	img, _, err := image.Decode(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("error decoding image: %w", err)
	}

	frame := imageproc.FromImage(img)
	if cmd.Flags().Changed("width") || cmd.Flags().Changed("height") {
		frame = imageproc.ScaleNearest(frame, a.cfg.Video.Width, a.cfg.Video.Height)
	}

	k := a.cfg.Clustering.K
	size, err := imageproc.BufferLen(frame.Pixels(), k)
	if err != nil {
		return err
	}
	analysis, err := a.quantizer().Quantize(cmd.Context(), frame, k, make([]int, size))
	if err != nil {
		return err
	}
	a.log.Info("image quantized",
		zap.String("image", input),
		zap.Int("k", k),
		zap.Int("iterations", analysis.Iterations),
		zap.Strings("palette", analysis.Hex),
	)

	out := frame.ToRGBA()
	if swatches, _ := cmd.Flags().GetBool("swatches"); swatches {
		imageproc.DrawSwatches(out, analysis.Colors, min(imageproc.DefaultSwatchSize, frame.Height))
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		outPath = fmt.Sprintf("%s_k%d.png", strings.TrimSuffix(input, filepath.Ext(input)), k)
	}
	if err := writePNG(outPath, out); err != nil {
		return err
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling palette: %w", err)
	}
	if palettePath, _ := cmd.Flags().GetString("palette"); palettePath != "" {
		return os.WriteFile(palettePath, data, 0o644)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	return file.Close()
}
