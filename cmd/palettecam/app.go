package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"palettecam/internal/config"
	"palettecam/internal/imageproc"
	"palettecam/internal/kmeans"
	"palettecam/internal/logging"
	"palettecam/internal/metrics"
	"palettecam/internal/resource"
)

// app holds what every subcommand needs.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	resources *resource.Controller
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlags(cmd.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("error registering metrics: %w", err)
	}

	limit, err := cfg.Resources.MemoryLimitBytes()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		log:       logger,
		registry:  registry,
		collector: collector,
		resources: resource.NewController(resource.Config{MemoryLimitBytes: limit}),
	}, nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			apply()
		}
	}
	set("k", func() { cfg.Clustering.K, _ = fs.GetInt("k") })
	set("workers", func() { cfg.Clustering.Workers, _ = fs.GetInt("workers") })
	set("max-iterations", func() { cfg.Clustering.MaxIterations, _ = fs.GetInt("max-iterations") })
	set("tolerance", func() { cfg.Clustering.Tolerance, _ = fs.GetFloat64("tolerance") })
	set("first-centroid", func() { cfg.Clustering.FirstCentroid, _ = fs.GetString("first-centroid") })
	set("seed", func() { cfg.Clustering.Seed, _ = fs.GetUint64("seed") })
	set("memory-limit", func() { cfg.Resources.MemoryLimit, _ = fs.GetString("memory-limit") })
	set("log-level", func() { cfg.Log.Level, _ = fs.GetString("log-level") })
	set("log-format", func() { cfg.Log.Format, _ = fs.GetString("log-format") })
	set("log-file", func() { cfg.Log.Filename, _ = fs.GetString("log-file") })

	set("width", func() { cfg.Video.Width, _ = fs.GetInt("width") })
	set("height", func() { cfg.Video.Height, _ = fs.GetInt("height") })
	set("fps", func() { cfg.Video.FPS, _ = fs.GetFloat64("fps") })
	set("sample-rate", func() { cfg.Video.SampleEveryNFrames, _ = fs.GetInt("sample-rate") })
	set("pixels", func() { cfg.Video.PixelsPerFrame, _ = fs.GetInt("pixels") })
	set("start", func() { cfg.Video.Start, _ = fs.GetString("start") })
	set("end", func() { cfg.Video.End, _ = fs.GetString("end") })
	set("frame-workers", func() { cfg.Video.FrameWorkers, _ = fs.GetInt("frame-workers") })
	set("output", func() { cfg.Output.Dir, _ = fs.GetString("output") })
	set("debug-every", func() { cfg.Output.DebugEvery, _ = fs.GetInt("debug-every") })
	set("metrics", func() { cfg.Metrics.Enabled, _ = fs.GetBool("metrics") })
	set("metrics-addr", func() { cfg.Metrics.Addr, _ = fs.GetString("metrics-addr") })
}

func (a *app) engineOptions() []kmeans.Option {
	c := a.cfg.Clustering
	opts := []kmeans.Option{
		kmeans.WithWorkers(c.Workers),
		kmeans.WithMinPartition(c.MinPartition),
		kmeans.WithMaxIterations(c.MaxIterations),
		kmeans.WithTolerance(c.Tolerance),
		kmeans.WithObserver(a.collector),
		kmeans.WithBudget(a.resources),
		kmeans.WithLogger(a.log),
	}
	if c.FirstCentroid == kmeans.FirstCentroidRandom.String() {
		opts = append(opts, kmeans.WithFirstCentroid(kmeans.FirstCentroidRandom))
	}
	if c.Seed != 0 {
		opts = append(opts, kmeans.WithSeed(c.Seed))
	}
	return opts
}

func (a *app) quantizer() *imageproc.Quantizer {
	return imageproc.NewQuantizer(kmeans.New[uint8](a.engineOptions()...), a.log)
}

func (a *app) close() {
	_ = a.log.Sync()
}
