// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"blurengine/internal/adjust"
	"blurengine/internal/dedup"
	"blurengine/internal/diag"
	"blurengine/internal/interpolation"
	"blurengine/internal/video"
	"blurengine/internal/weighting"
)

// Config is the complete render configuration.
type Config struct {
	Blur          BlurConfig          `yaml:"blur"`
	Interpolation InterpolationConfig `yaml:"interpolation"`
	Deduplication DedupConfig         `yaml:"deduplication"`
	Timescale     TimescaleConfig     `yaml:"timescale"`
	Filters       FiltersConfig       `yaml:"filters"`
	Rendering     RenderingConfig     `yaml:"rendering"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// BlurConfig controls the temporal blend stage.
type BlurConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Amount    float64 `yaml:"amount"`
	OutputFPS string  `yaml:"output_fps"`
	Weighting string  `yaml:"weighting"`
	Gamma     float64 `yaml:"gamma"`

	GaussianMean   float64   `yaml:"gaussian_mean"`
	GaussianStdDev float64   `yaml:"gaussian_std_dev"`
	GaussianBound  []float64 `yaml:"gaussian_bound"`
	PyramidReverse bool      `yaml:"pyramid_reverse"`
}

// InterpolationConfig selects the frame synthesis backend and the
// frame-rate interpolation target.
type InterpolationConfig struct {
	Enabled      bool    `yaml:"enabled"`
	FPS          string  `yaml:"fps"`
	Method       string  `yaml:"method"`
	Model        string  `yaml:"model"`
	ModelsDir    string  `yaml:"models_dir"`
	GPU          bool    `yaml:"gpu"`
	GPUIndex     int     `yaml:"gpu_index"`
	Preset       string  `yaml:"preset"`
	BlockSize    int     `yaml:"block_size"`
	SearchRadius int     `yaml:"search_radius"`
	Masking      float64 `yaml:"masking"`
}

// DedupConfig controls duplicate frame filling.
type DedupConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Method    string  `yaml:"method"`
	Threshold float64 `yaml:"threshold"`
	// Range bounds the anchor distance of a run, -1 for unbounded.
	Range int `yaml:"range"`
}

// TimescaleConfig re-times the stream before and after frame-rate interpolation.
type TimescaleConfig struct {
	Enabled bool    `yaml:"enabled"`
	Input   float64 `yaml:"input"`
	Output  float64 `yaml:"output"`
	// AudioPitch lets the output timescale shift audio pitch along with
	// speed. When false the pitch is kept and only the tempo changes.
	AudioPitch bool `yaml:"audio_pitch"`
}

// FiltersConfig holds the colour controls applied last.
type FiltersConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Brightness float64 `yaml:"brightness"`
	Saturation float64 `yaml:"saturation"`
	Contrast   float64 `yaml:"contrast"`
}

// RenderingConfig controls the worker pool and the encoder.
type RenderingConfig struct {
	// Workers is the render concurrency, 0 for one per CPU.
	Workers   int    `yaml:"workers"`
	Quality   int    `yaml:"quality"`
	Container string `yaml:"container"`
	Codec     string `yaml:"codec"`
	Debug     bool   `yaml:"debug"`
	TempDir   string `yaml:"temp_dir"`
}

// LoggingConfig mirrors diag.LogConfig.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var containerPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// Default returns the configuration used when no file is given.
func Default() *Config {
	interp := interpolation.GetDefaultConfig()
	return &Config{
		Blur: BlurConfig{
			Enabled:        true,
			Amount:         1,
			OutputFPS:      "60",
			Weighting:      string(weighting.Equal),
			Gamma:          1,
			GaussianMean:   2,
			GaussianStdDev: 2,
			GaussianBound:  []float64{0, 2},
		},
		Interpolation: InterpolationConfig{
			Enabled:      true,
			FPS:          "5x",
			Method:       interp.Method,
			Model:        interp.Model,
			ModelsDir:    interp.ModelsDir,
			GPU:          interp.UseGPU,
			GPUIndex:     interp.GPUDevice,
			Preset:       interp.Preset,
			BlockSize:    interp.BlockSize,
			SearchRadius: interp.SearchRadius,
			Masking:      interp.Masking,
		},
		Deduplication: DedupConfig{
			Enabled:   true,
			Method:    dedup.MethodRun,
			Threshold: 0.1,
			Range:     -1,
		},
		Timescale: TimescaleConfig{Input: 1, Output: 1},
		Filters:   FiltersConfig{Brightness: 1, Saturation: 1, Contrast: 1},
		Rendering: RenderingConfig{
			Quality:   16,
			Container: "mp4",
			Codec:     "libx264",
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %v: %w", err, diag.ErrInvalidArgument)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating or truncating path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks every section, including disabled ones. The backend
// settings are only checked when a stage that needs a backend is enabled.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil: %w", diag.ErrInvalidArgument)
	}

	if !finite(cfg.Blur.Amount) || cfg.Blur.Amount < 0 {
		return invalid("blur.amount must be a non-negative number, got %v", cfg.Blur.Amount)
	}
	if !finite(cfg.Blur.Gamma) || cfg.Blur.Gamma <= 0 {
		return invalid("blur.gamma must be positive, got %v", cfg.Blur.Gamma)
	}
	if rate, err := video.ParseRational(cfg.Blur.OutputFPS); err != nil || !rate.Positive() {
		return invalid("blur.output_fps %q is not a positive rate", cfg.Blur.OutputFPS)
	}
	if _, err := cfg.WeightShape(); err != nil {
		return fmt.Errorf("blur.weighting: %w", err)
	}

	if _, err := interpolation.ParseTargetRate(cfg.Interpolation.FPS, video.R(1, 1)); err != nil {
		return fmt.Errorf("interpolation.fps: %w", err)
	}
	if cfg.Interpolation.Enabled || cfg.Deduplication.Enabled {
		if err := interpolation.ValidateConfig(cfg.Backend()); err != nil {
			return fmt.Errorf("interpolation: %w", err)
		}
	}

	switch cfg.Deduplication.Method {
	case dedup.MethodRun, dedup.MethodPair:
	default:
		return invalid("deduplication.method %q (valid: %s, %s)", cfg.Deduplication.Method, dedup.MethodRun, dedup.MethodPair)
	}
	if !finite(cfg.Deduplication.Threshold) || cfg.Deduplication.Threshold < 0 || cfg.Deduplication.Threshold > 1 {
		return invalid("deduplication.threshold must be within [0, 1], got %v", cfg.Deduplication.Threshold)
	}
	if cfg.Deduplication.Range < -1 || cfg.Deduplication.Range == 0 {
		return invalid("deduplication.range must be -1 or positive, got %d", cfg.Deduplication.Range)
	}

	for name, v := range map[string]float64{"input": cfg.Timescale.Input, "output": cfg.Timescale.Output} {
		if !finite(v) || v <= 0 {
			return invalid("timescale.%s must be positive, got %v", name, v)
		}
	}

	raw := adjust.Levels{Brightness: cfg.Filters.Brightness, Contrast: cfg.Filters.Contrast, Saturation: cfg.Filters.Saturation}
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("filters: %w", err)
	}

	if cfg.Rendering.Workers < 0 {
		return invalid("rendering.workers must not be negative, got %d", cfg.Rendering.Workers)
	}
	if cfg.Rendering.Quality < 0 || cfg.Rendering.Quality > 51 {
		return invalid("rendering.quality must be within 0-51, got %d", cfg.Rendering.Quality)
	}
	if !containerPattern.MatchString(cfg.Rendering.Container) {
		return invalid("rendering.container %q must be a lowercase extension", cfg.Rendering.Container)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format %q (valid: console, json)", cfg.Logging.Format)
	}
	return nil
}

// WeightShape parses the blur weighting and applies the gaussian and
// pyramid parameters.
func (c *Config) WeightShape() (weighting.Shape, error) {
	shape, err := weighting.ParseShape(c.Blur.Weighting)
	if err != nil {
		return weighting.Shape{}, err
	}
	if len(c.Blur.GaussianBound) != 2 {
		return weighting.Shape{}, invalid("gaussian bound needs two values, got %d", len(c.Blur.GaussianBound))
	}
	shape.Mean = c.Blur.GaussianMean
	shape.StdDev = c.Blur.GaussianStdDev
	shape.Bound = [2]float64{c.Blur.GaussianBound[0], c.Blur.GaussianBound[1]}
	shape.Reverse = c.Blur.PyramidReverse
	return shape, nil
}

// OutputRate returns the blur output rate.
func (c *Config) OutputRate() (video.Rational, error) {
	return video.ParseRational(c.Blur.OutputFPS)
}

// Backend returns the interpolation backend configuration.
func (c *Config) Backend() *interpolation.InterpolationConfig {
	base := interpolation.GetDefaultConfig()
	base.Method = c.Interpolation.Method
	base.Model = c.Interpolation.Model
	base.ModelsDir = c.Interpolation.ModelsDir
	base.UseGPU = c.Interpolation.GPU
	base.GPUDevice = c.Interpolation.GPUIndex
	base.Preset = c.Interpolation.Preset
	base.BlockSize = c.Interpolation.BlockSize
	base.SearchRadius = c.Interpolation.SearchRadius
	base.Masking = c.Interpolation.Masking
	if c.Rendering.TempDir != "" {
		base.TempDir = c.Rendering.TempDir
	}
	return base
}

// Levels returns the filter levels, neutral when filters are disabled.
func (c *Config) Levels() adjust.Levels {
	if !c.Filters.Enabled {
		return adjust.Levels{Brightness: 1, Contrast: 1, Saturation: 1}
	}
	return adjust.Levels{
		Brightness: c.Filters.Brightness,
		Contrast:   c.Filters.Contrast,
		Saturation: c.Filters.Saturation,
	}
}

// Workers returns the render concurrency.
func (c *Config) Workers() int {
	if c.Rendering.Workers > 0 {
		return c.Rendering.Workers
	}
	return runtime.NumCPU()
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() diag.LogConfig {
	return diag.LogConfig{Level: c.Logging.Level, Format: c.Logging.Format}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, diag.ErrInvalidArgument)...)
}
