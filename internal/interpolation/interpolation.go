// internal/interpolation/interpolation.go
package interpolation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"blurengine/internal/diag"
	"blurengine/internal/ffmpeg"
	"blurengine/internal/video"
)

// InterpolationConfig holds configuration for frame synthesis backends
type InterpolationConfig struct {
	Method       string // rife, svp, legacy or blend
	Model        string // RIFE model id, resolved under ModelsDir
	ModelsDir    string
	UseGPU       bool
	GPUDevice    int
	Preset       string  // motion preset for svp/legacy
	BlockSize    int     // motion block size (4, 8, 16 or 32)
	SearchRadius int     // motion search radius, 0 = preset default
	Masking      float64 // scene change masking threshold, 0-100
	TempDir      string
	RifeBinary   string
	FFmpegBinary string
}

// Anchors are the two source frames a gap is synthesized between.
type Anchors struct {
	First *video.Frame
	Last  *video.Frame
}

// Frames returns the anchors as a slice.
func (a Anchors) Frames() []*video.Frame {
	return []*video.Frame{a.First, a.Last}
}

// Requirements is what a backend declares about its inputs and outputs.
type Requirements struct {
	// Format is the color representation Interpolate expects and returns.
	Format video.ColorFormat
	// Device names the accelerator the backend runs on, e.g. "cpu" or "vulkan:0".
	Device string
	// LeadingEcho is set when the backend returns the first anchor as its
	// first output frame ahead of the synthesized ones.
	LeadingEcho bool
}

// Backend synthesizes count frames strictly between two anchors at the
// evenly spaced phases k/(count+1).
type Backend interface {
	Name() string
	Requirements() Requirements
	Interpolate(ctx context.Context, anchors Anchors, count int) ([]*video.Frame, error)
}

// Factory builds a backend from a validated config.
type Factory func(cfg *InterpolationConfig, exec ffmpeg.CommandExecutor, temp *TempFileManager) (Backend, error)

// Backends maps a method name to its constructor.
var Backends = map[string]Factory{
	"rife":   newRife,
	"svp":    newSVP,
	"legacy": newLegacy,
	"blend":  newCrossfade,
}

// InterpolationModels defines the known RIFE models
var InterpolationModels = map[string]string{
	"rife-v4.6":      "v4.6 (Highest Quality, Slower)",
	"rife-v4.4":      "v4.4 (Balanced Quality/Speed)",
	"rife-v4.0":      "v4.0 (Fastest, Lower Quality)",
	"rife-v4.6-lite": "v4.6 Lite (Optimized for Diffusion Videos)",
}

// MotionPreset is a starting point for the motion-compensated backends.
type MotionPreset struct {
	Name         string
	Description  string
	SearchRadius int
	VSBMC        bool // variable-size block motion compensation
}

// MotionPresets defines the selectable motion presets
var MotionPresets = map[string]MotionPreset{
	"weak": {
		Name:         "Weak",
		Description:  "Short vectors, fewest artifacts",
		SearchRadius: 16,
	},
	"default": {
		Name:         "Default",
		Description:  "Balanced search with block refinement",
		SearchRadius: 32,
		VSBMC:        true,
	},
	"smooth": {
		Name:         "Smooth",
		Description:  "Long vectors for fast motion",
		SearchRadius: 64,
		VSBMC:        true,
	},
}

var validBlockSizes = map[int]bool{4: true, 8: true, 16: true, 32: true}

// NewBackend validates cfg and builds the selected backend. Model and tool
// resolution happen here, so a missing asset fails before any frame is requested.
func NewBackend(cfg *InterpolationConfig, exec ffmpeg.CommandExecutor, temp *TempFileManager) (Backend, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	factory, ok := Backends[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("unknown interpolation method %q (valid: %s): %w",
			cfg.Method, strings.Join(Methods(), ", "), diag.ErrInvalidArgument)
	}
	if exec == nil {
		exec = ffmpeg.NewSystemExecutor()
	}
	if temp == nil {
		temp = NewTempFileManager(cfg.TempDir)
	}
	return factory(cfg, exec, temp)
}

// Methods lists the registered backend names.
func Methods() []string {
	names := make([]string, 0, len(Backends))
	for name := range Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelResolver maps model ids to directories under Dir.
type ModelResolver struct {
	Dir string
}

// Resolve returns the directory for model. An absolute or relative path to
// an existing directory is accepted as is.
func (r ModelResolver) Resolve(model string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("no model configured: %w", diag.ErrModelNotFound)
	}
	candidates := []string{filepath.Join(r.Dir, model)}
	if filepath.IsAbs(model) || strings.ContainsRune(model, os.PathSeparator) {
		candidates = append([]string{model}, candidates...)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("model %q not found in %s: %w", model, r.Dir, diag.ErrModelNotFound)
}

// ValidateConfig validates interpolation configuration
func ValidateConfig(config *InterpolationConfig) error {
	if config == nil {
		return fmt.Errorf("interpolation config is nil: %w", diag.ErrInvalidArgument)
	}

	if _, exists := Backends[config.Method]; !exists {
		return fmt.Errorf("invalid interpolation method: %s: %w", config.Method, diag.ErrInvalidArgument)
	}

	switch config.Method {
	case "svp", "legacy":
		if _, exists := MotionPresets[config.Preset]; !exists {
			return fmt.Errorf("invalid motion preset: %s: %w", config.Preset, diag.ErrInvalidArgument)
		}
		if !validBlockSizes[config.BlockSize] {
			return fmt.Errorf("invalid block size %d (valid: 4, 8, 16, 32): %w", config.BlockSize, diag.ErrInvalidArgument)
		}
		if config.SearchRadius < 0 {
			return fmt.Errorf("search radius must not be negative: %w", diag.ErrInvalidArgument)
		}
		if config.Masking < 0 || config.Masking > 100 {
			return fmt.Errorf("masking %.1f must be between 0 and 100: %w", config.Masking, diag.ErrInvalidArgument)
		}
	case "rife":
		if config.Model == "" {
			return fmt.Errorf("rife requires a model: %w", diag.ErrInvalidArgument)
		}
	}

	// Validate GPU settings
	if config.UseGPU && config.GPUDevice < 0 {
		return fmt.Errorf("invalid GPU device ID: %d: %w", config.GPUDevice, diag.ErrInvalidArgument)
	}

	return nil
}

// GetDefaultConfig returns default interpolation configuration
func GetDefaultConfig() *InterpolationConfig {
	return &InterpolationConfig{
		Method:       "svp",
		Model:        "rife-v4.6",
		ModelsDir:    "models",
		UseGPU:       true,
		GPUDevice:    0,
		Preset:       "weak",
		BlockSize:    8,
		SearchRadius: 0,
		Masking:      10,
		TempDir:      os.TempDir(),
		RifeBinary:   "rife-ncnn-vulkan",
		FFmpegBinary: "ffmpeg",
	}
}

// GetModelInfo returns information about available interpolation models
func GetModelInfo() map[string]string {
	return InterpolationModels
}

// GetMotionPresets returns available motion presets
func GetMotionPresets() map[string]MotionPreset {
	return MotionPresets
}

// requireTool fails construction when an external tool is missing.
func requireTool(exec ffmpeg.CommandExecutor, name string) error {
	if !exec.IsAvailable(name) {
		return fmt.Errorf("interpolation tool %q not found in PATH: %w", name, diag.ErrModelNotFound)
	}
	return nil
}

func checkAnchors(anchors Anchors, count int) error {
	if anchors.First == nil || anchors.Last == nil {
		return fmt.Errorf("missing anchor frame: %w", diag.ErrInvalidArgument)
	}
	if !anchors.First.SameShape(anchors.Last) {
		return fmt.Errorf("anchors differ in shape: %w", diag.ErrInvalidArgument)
	}
	if count <= 0 {
		return fmt.Errorf("target count %d: %w", count, diag.ErrInvalidArgument)
	}
	return nil
}
