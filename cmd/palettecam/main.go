// Package main provides the palettecam CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := newRootCmd()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		fmt.Fprintln(os.Stderr, "Received termination signal, shutting down...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "palettecam",
		Short: "Reduce images, videos and live streams to k-color palettes",
		Long: `palettecam clusters the pixels of every frame with a parallel k-means++ engine,
recolors the frame with its palette and reports the dominant colors.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (.yaml, .yml or .toml)")
	flags.IntP("k", "k", 0, "Number of palette colors")
	flags.Int("workers", 0, "Goroutines per clustering pass (0 = GOMAXPROCS)")
	flags.Int("max-iterations", 0, "Iteration cap (0 = run until converged)")
	flags.Float64("tolerance", 0, "Per-coordinate convergence tolerance (0 = exact)")
	flags.String("first-centroid", "", "First seed policy: index or random")
	flags.Uint64("seed", 0, "Random seed (0 = fresh seed per run)")
	flags.String("memory-limit", "", "Memory budget for clustering runs, e.g. 256MB")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")
	flags.String("log-file", "", "Write logs to a rotated file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "palettecam v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(newQuantizeCmd(), newAnalyzeCmd(), newStreamCmd())
	return rootCmd
}
