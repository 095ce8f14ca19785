// Package config loads palettecam settings from YAML or TOML files.
//
// Values start from Default(), are overlaid by the file given to Load and are
// finally overridden by command line flags. Always call Validate before use.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Clustering Clustering `yaml:"clustering" toml:"clustering"`
	Video      Video      `yaml:"video" toml:"video"`
	Output     Output     `yaml:"output" toml:"output"`
	Log        Log        `yaml:"log" toml:"log"`
	Metrics    Metrics    `yaml:"metrics" toml:"metrics"`
	Resources  Resources  `yaml:"resources" toml:"resources"`
}

// Clustering configures the k-means engine.
type Clustering struct {
	// K is the initial number of palette colors.
	K int `yaml:"k" toml:"k"`
	// Workers bounds the goroutines per pass. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers" toml:"workers"`
	// MinPartition is the smallest slice of points given to one goroutine.
	MinPartition int `yaml:"min_partition" toml:"min_partition"`
	// MaxIterations caps the refinement loop. 0 means no cap.
	MaxIterations int `yaml:"max_iterations" toml:"max_iterations"`
	// Tolerance relaxes the convergence test. 0 means exact equality.
	Tolerance float64 `yaml:"tolerance" toml:"tolerance"`
	// FirstCentroid is "index" or "random".
	FirstCentroid string `yaml:"first_centroid" toml:"first_centroid"`
	// Seed fixes the random source. 0 draws a fresh seed per run.
	Seed uint64 `yaml:"seed" toml:"seed"`
}

// Video configures the frame source.
type Video struct {
	Width  int     `yaml:"width" toml:"width"`
	Height int     `yaml:"height" toml:"height"`
	FPS    float64 `yaml:"fps" toml:"fps"`
	// SampleEveryNFrames keeps one frame out of N when analyzing files.
	SampleEveryNFrames int `yaml:"sample_every_n_frames" toml:"sample_every_n_frames"`
	// PixelsPerFrame samples random pixels instead of clustering the full frame. 0 disables sampling.
	PixelsPerFrame int    `yaml:"pixels_per_frame" toml:"pixels_per_frame"`
	Start          string `yaml:"start" toml:"start"`
	End            string `yaml:"end" toml:"end"`
	// FrameWorkers is the number of frames clustered concurrently.
	FrameWorkers int `yaml:"frame_workers" toml:"frame_workers"`
}

// Output configures result files.
type Output struct {
	Dir string `yaml:"dir" toml:"dir"`
	// DebugEvery writes a quantized PNG every N processed frames. 0 disables it.
	DebugEvery int `yaml:"debug_every" toml:"debug_every"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	// Filename enables rotation through lumberjack. Empty logs to stderr.
	Filename   string `yaml:"filename" toml:"filename"`
	MaxSize    int    `yaml:"max_size" toml:"max_size"`
	MaxDays    int    `yaml:"max_days" toml:"max_days"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
}

// Resources limits the memory clustering runs may reserve.
type Resources struct {
	// MemoryLimit accepts "1024", "64KB", "256MB", "1GB" or "unlimited".
	MemoryLimit string `yaml:"memory_limit" toml:"memory_limit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Clustering: Clustering{
			K:             2,
			MinPartition:  2048,
			FirstCentroid: "index",
		},
		Video: Video{
			Width:              320,
			Height:             240,
			FPS:                30,
			SampleEveryNFrames: 5,
			FrameWorkers:       2,
		},
		Output: Output{
			Dir:        "./results",
			DebugEvery: 100,
		},
		Log: Log{
			Level:   "info",
			Format:  "console",
			MaxSize: 512,
		},
		Metrics: Metrics{
			Addr: ":2112",
		},
		Resources: Resources{
			MemoryLimit: "unlimited",
		},
	}
}

// Load reads path on top of Default. The decoder is chosen by file extension.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing yaml config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing toml config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Clustering.K <= 0 {
		return fmt.Errorf("invalid k: %d", c.Clustering.K)
	}
	if c.Clustering.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Clustering.Workers)
	}
	if c.Clustering.MaxIterations < 0 {
		return fmt.Errorf("invalid max iterations: %d", c.Clustering.MaxIterations)
	}
	if c.Clustering.Tolerance < 0 {
		return fmt.Errorf("invalid tolerance: %g", c.Clustering.Tolerance)
	}
	switch c.Clustering.FirstCentroid {
	case "", "index", "random":
	default:
		return fmt.Errorf("invalid first centroid policy %q", c.Clustering.FirstCentroid)
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("invalid viewport: %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS < 0 {
		return fmt.Errorf("invalid fps: %g", c.Video.FPS)
	}
	if c.Video.SampleEveryNFrames <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Video.SampleEveryNFrames)
	}
	if c.Video.FrameWorkers <= 0 {
		return fmt.Errorf("invalid frame workers: %d", c.Video.FrameWorkers)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if _, err := c.Resources.MemoryLimitBytes(); err != nil {
		return err
	}
	return nil
}

// MemoryLimitBytes parses MemoryLimit. 0 means unlimited.
func (r Resources) MemoryLimitBytes() (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(r.MemoryLimit))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0, nil
	}

	num := strings.TrimSuffix(s, "B")
	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(num, "K"):
		multiplier = 1 << 10
	case strings.HasSuffix(num, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(num, "G"):
		multiplier = 1 << 30
	case strings.HasSuffix(num, "T"):
		multiplier = 1 << 40
	}
	if multiplier > 1 {
		num = num[:len(num)-1]
	}

	val, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil || val < 0 || val > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("invalid memory limit %q", r.MemoryLimit)
	}
	return val * multiplier, nil
}
