// internal/interpolation/motion.go
package interpolation

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"blurengine/internal/ffmpeg"
	"blurengine/internal/video"
)

// rawPixelFormat is the ffmpeg name of the planar layout written by writeRaw.
const rawPixelFormat = "yuv444p16le"

// motionBackend runs ffmpeg's minterpolate filter on a raw two-frame clip.
// The svp variant analyses vectors in both directions and blends
// overlapping blocks adaptively; the legacy variant is the older bilateral
// single-pass mode.
type motionBackend struct {
	name   string
	binary string
	filter string
	exec   ffmpeg.CommandExecutor
	temp   *TempFileManager
}

func newSVP(cfg *InterpolationConfig, exec ffmpeg.CommandExecutor, temp *TempFileManager) (Backend, error) {
	preset := MotionPresets[cfg.Preset]
	opts := []string{
		"mi_mode=mci",
		"mc_mode=aobmc",
		"me_mode=bidir",
		"me=epzs",
		"mb_size=" + strconv.Itoa(cfg.BlockSize),
		"search_param=" + strconv.Itoa(searchRadius(cfg, preset)),
		"scd=fdiff",
		"scd_threshold=" + strconv.FormatFloat(cfg.Masking, 'f', -1, 64),
	}
	if preset.VSBMC {
		opts = append(opts, "vsbmc=1")
	}
	return newMotion("svp", cfg, exec, temp, opts)
}

func newLegacy(cfg *InterpolationConfig, exec ffmpeg.CommandExecutor, temp *TempFileManager) (Backend, error) {
	preset := MotionPresets[cfg.Preset]
	opts := []string{
		"mi_mode=mci",
		"mc_mode=obmc",
		"me_mode=bilat",
		"mb_size=" + strconv.Itoa(cfg.BlockSize),
		"search_param=" + strconv.Itoa(searchRadius(cfg, preset)),
		"scd=none",
	}
	return newMotion("legacy", cfg, exec, temp, opts)
}

func newMotion(name string, cfg *InterpolationConfig, exec ffmpeg.CommandExecutor, temp *TempFileManager, opts []string) (Backend, error) {
	binary := cfg.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	if err := requireTool(exec, binary); err != nil {
		return nil, err
	}
	return &motionBackend{
		name:   name,
		binary: binary,
		filter: strings.Join(opts, ":"),
		exec:   exec,
		temp:   temp,
	}, nil
}

func searchRadius(cfg *InterpolationConfig, preset MotionPreset) int {
	if cfg.SearchRadius > 0 {
		return cfg.SearchRadius
	}
	return preset.SearchRadius
}

func (m *motionBackend) Name() string { return m.name }

func (m *motionBackend) Requirements() Requirements {
	return Requirements{Format: video.YUV444, Device: "cpu", LeadingEcho: true}
}

// Interpolate plays the anchors at 1 fps and resamples to count+1 fps, so
// output frame k sits at phase k/(count+1) and frame 0 echoes the first anchor.
func (m *motionBackend) Interpolate(ctx context.Context, anchors Anchors, count int) ([]*video.Frame, error) {
	if err := checkAnchors(anchors, count); err != nil {
		return nil, err
	}

	dir, err := m.temp.NewCallDir(m.name)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "anchors.yuv")
	out := filepath.Join(dir, "interpolated.yuv")
	if err := writeRaw(in, anchors.Frames()); err != nil {
		return nil, err
	}

	w, h := anchors.First.Width, anchors.First.Height
	args := []string{
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", rawPixelFormat,
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-framerate", "1",
		"-i", in,
		"-vf", fmt.Sprintf("minterpolate=fps=%d:%s", count+1, m.filter),
		"-f", "rawvideo",
		"-pix_fmt", rawPixelFormat,
		"-y", out,
	}
	if _, err := m.exec.Execute(ctx, m.binary, args...); err != nil {
		return nil, err
	}
	return readRaw(out, w, h)
}

// writeRaw stores frames as consecutive planar 16-bit little endian YUV444.
func writeRaw(path string, frames []*video.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	for _, f := range frames {
		if f.Format != video.YUV444 {
			file.Close()
			return fmt.Errorf("raw frames must be YUV444, got %s", f.Format)
		}
		for _, plane := range f.Planes {
			for _, v := range plane {
				var sample uint16
				switch {
				case v >= 1:
					sample = 0xffff
				case v > 0:
					sample = uint16(v*0xffff + 0.5)
				}
				if err := binary.Write(w, binary.LittleEndian, sample); err != nil {
					file.Close()
					return err
				}
			}
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// readRaw decodes every complete frame in a planar 16-bit YUV444 file.
func readRaw(path string, width, height int) ([]*video.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := bufio.NewReader(file)
	samples := width * height
	buf := make([]uint16, samples)
	var frames []*video.Frame
	for {
		f := video.NewFrame(width, height, video.YUV444)
		for p := range f.Planes {
			if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
				if err == io.EOF && p == 0 {
					return frames, nil
				}
				return nil, fmt.Errorf("truncated raw frame %d: %v", len(frames), err)
			}
			for i, s := range buf {
				f.Planes[p][i] = float32(s) / 0xffff
			}
		}
		frames = append(frames, f)
	}
}
