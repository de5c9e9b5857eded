// internal/interpolation/rife.go
package interpolation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"blurengine/internal/ffmpeg"
	"blurengine/internal/video"
)

// rifeBackend drives rife-ncnn-vulkan over a two-frame PNG directory.
type rifeBackend struct {
	binary    string
	modelPath string
	gpu       int
	exec      ffmpeg.CommandExecutor
	temp      *TempFileManager
}

func newRife(cfg *InterpolationConfig, exec ffmpeg.CommandExecutor, temp *TempFileManager) (Backend, error) {
	modelPath, err := ModelResolver{Dir: cfg.ModelsDir}.Resolve(cfg.Model)
	if err != nil {
		return nil, err
	}
	binary := cfg.RifeBinary
	if binary == "" {
		binary = "rife-ncnn-vulkan"
	}
	if err := requireTool(exec, binary); err != nil {
		return nil, err
	}
	gpu := -1
	if cfg.UseGPU {
		gpu = cfg.GPUDevice
	}
	return &rifeBackend{binary: binary, modelPath: modelPath, gpu: gpu, exec: exec, temp: temp}, nil
}

func (r *rifeBackend) Name() string { return "rife" }

func (r *rifeBackend) Requirements() Requirements {
	device := "cpu"
	if r.gpu >= 0 {
		device = "vulkan:" + strconv.Itoa(r.gpu)
	}
	return Requirements{Format: video.RGBS, Device: device, LeadingEcho: true}
}

// Interpolate asks rife for 2*(count+1) frames over the two-frame input,
// which puts frame k at phase k/(count+1). Frame 0 echoes the first anchor.
func (r *rifeBackend) Interpolate(ctx context.Context, anchors Anchors, count int) ([]*video.Frame, error) {
	if err := checkAnchors(anchors, count); err != nil {
		return nil, err
	}

	dir, err := r.temp.NewCallDir("rife")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inDir := filepath.Join(dir, "in")
	outDir := filepath.Join(dir, "out")
	for _, d := range []string{inDir, outDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %v", d, err)
		}
	}
	for i, f := range anchors.Frames() {
		if err := video.WritePNG(filepath.Join(inDir, fmt.Sprintf("frame_%06d.png", i)), f); err != nil {
			return nil, err
		}
	}

	args := []string{
		"-i", inDir,
		"-o", outDir,
		"-n", strconv.Itoa(2 * (count + 1)),
		"-m", r.modelPath,
		"-g", strconv.Itoa(r.gpu),
		"-f", "frame_%06d.png",
	}
	if _, err := r.exec.Execute(ctx, r.binary, args...); err != nil {
		return nil, err
	}
	return readFrameDir(outDir)
}

// readFrameDir decodes every PNG in dir in file name order.
func readFrameDir(dir string) ([]*video.Frame, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %v", err)
	}
	sort.Strings(paths)

	frames := make([]*video.Frame, 0, len(paths))
	for _, p := range paths {
		f, err := video.ReadPNG(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}
