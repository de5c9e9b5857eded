// internal/ffmpeg/ffmpeg.go
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"

	"blurengine/internal/diag"
	"blurengine/internal/video"
)

// FramePattern names the PNG files of an extracted or rendered frame sequence.
const FramePattern = "frame_%06d.png"

// MinMajorVersion is the oldest ffmpeg release with the minterpolate options used here.
const MinMajorVersion = 4

var versionPattern = regexp.MustCompile(`ffmpeg version n?(\d+)\.(\d+)`)

// CheckVersion returns the installed ffmpeg version and fails when it is
// missing or older than MinMajorVersion.
func CheckVersion(ctx context.Context, exec CommandExecutor) (string, error) {
	if !exec.IsAvailable("ffmpeg") {
		return "", fmt.Errorf("ffmpeg not found in PATH")
	}
	out, err := exec.Execute(ctx, "ffmpeg", "-version")
	if err != nil {
		return "", fmt.Errorf("failed to run ffmpeg: %w", err)
	}
	m := versionPattern.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognised ffmpeg version output")
	}
	major, _ := strconv.Atoi(string(m[1]))
	version := string(m[1]) + "." + string(m[2])
	if major < MinMajorVersion {
		return version, fmt.Errorf("ffmpeg %s is too old, version %d or newer is required", version, MinMajorVersion)
	}
	return version, nil
}

// FramePath returns the path of frame n inside dir.
func FramePath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf(FramePattern, n))
}

// ExtractFrames decodes every video frame of input into 16-bit PNGs in dir
// and returns how many were written.
func ExtractFrames(ctx context.Context, exec CommandExecutor, input, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create frame directory: %v", err)
	}
	args := []string{
		"-v", "error",
		"-i", input,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-pix_fmt", "rgb48be",
		"-start_number", "0",
		"-y", filepath.Join(dir, FramePattern),
	}
	if _, err := exec.Execute(ctx, "ffmpeg", args...); err != nil {
		return 0, fmt.Errorf("failed to extract frames: %w", err)
	}
	n, err := countFrames(dir)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("no frames decoded from %s: %w", input, diag.ErrInvalidArgument)
	}
	return n, nil
}

func countFrames(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return 0, fmt.Errorf("failed to list frames: %v", err)
	}
	return len(paths), nil
}

// DirSource is a video.Source over a directory of numbered PNG frames.
// Frames are decoded on request, in any order.
type DirSource struct {
	dir    string
	length int
	rate   video.Rational
}

// NewDirSource indexes the frames in dir. The sequence must start at 0 and
// have no holes.
func NewDirSource(dir string, rate video.Rational) (*DirSource, error) {
	if !rate.Positive() {
		return nil, fmt.Errorf("frame rate %s: %w", rate, diag.ErrInvalidArgument)
	}
	n, err := countFrames(dir)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		if _, err := os.Stat(FramePath(dir, n-1)); err != nil {
			return nil, fmt.Errorf("frame sequence in %s is not numbered from 0: %v", dir, err)
		}
	}
	return &DirSource{dir: dir, length: n, rate: rate}, nil
}

func (s *DirSource) Len() int             { return s.length }
func (s *DirSource) Rate() video.Rational { return s.rate }

func (s *DirSource) Frame(ctx context.Context, n int) (*video.Frame, error) {
	if err := video.CheckIndex(s, n); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := video.ReadPNG(FramePath(s.dir, n))
	if err != nil {
		return nil, err
	}
	return f.WithIndex(n), nil
}

// WriteFrame stores f in dir under its index.
func WriteFrame(dir string, f *video.Frame) error {
	return video.WritePNG(FramePath(dir, f.Index), f)
}

// DefaultSampleRate is assumed when the input's audio rate is unknown.
const DefaultSampleRate = 48000

// EncodeOptions controls reassembly of rendered frames into a video.
type EncodeOptions struct {
	Binary string // defaults to ffmpeg
	Rate   video.Rational
	CRF    int
	Audio  string // file to take the audio track from, empty for none
	Codec  string // defaults to libx264

	// InputTimescale and OutputTimescale retime the audio the same way the
	// frames were retimed. Zero means 1.
	InputTimescale  float64
	OutputTimescale float64
	// AudioPitch lets the output timescale shift pitch instead of keeping it.
	AudioPitch bool
	SampleRate int // of the audio track, defaults to DefaultSampleRate
}

// AudioFilters returns the -af chain that retimes the audio track to match
// the timescaled video, or "" when the audio plays at its own speed.
func AudioFilters(opts EncodeOptions) string {
	in, out := opts.InputTimescale, opts.OutputTimescale
	if in <= 0 {
		in = 1
	}
	if out <= 0 {
		out = 1
	}
	rate := opts.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	// Resampling changes speed and pitch together. Only one asetrate may
	// appear in the chain, so both factors share it.
	factor := 1 / in
	if opts.AudioPitch {
		factor *= out
	}
	var filters []string
	if factor != 1 {
		filters = append(filters, fmt.Sprintf("asetrate=%d*%s", rate, formatFactor(factor)))
	}
	if !opts.AudioPitch && out != 1 {
		filters = append(filters, atempo(out)...)
	}
	if len(filters) == 0 {
		return ""
	}
	filters = append(filters, fmt.Sprintf("aresample=%d", rate))
	return strings.Join(filters, ",")
}

// atempo accepts factors in 0.5-100, so larger changes are chained.
func atempo(t float64) []string {
	var filters []string
	for t < 0.5 {
		filters = append(filters, "atempo=0.5")
		t /= 0.5
	}
	for t > 100 {
		filters = append(filters, "atempo=100")
		t /= 100
	}
	return append(filters, "atempo="+formatFactor(t))
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'g', 8, 64)
}

// Reassemble encodes the frame sequence in dir into output.
func Reassemble(ctx context.Context, exec CommandExecutor, dir, output string, opts EncodeOptions) error {
	if !opts.Rate.Positive() {
		return fmt.Errorf("output rate %s: %w", opts.Rate, diag.ErrInvalidArgument)
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("crf %d outside 0-51: %w", opts.CRF, diag.ErrInvalidArgument)
	}
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	codec := opts.Codec
	if codec == "" {
		codec = "libx264"
	}

	args := []string{
		"-v", "error",
		"-framerate", opts.Rate.String(),
		"-start_number", "0",
		"-i", filepath.Join(dir, FramePattern),
	}
	if opts.Audio != "" {
		args = append(args, "-i", opts.Audio, "-map", "0:v:0", "-map", "1:a:0?")
		if af := AudioFilters(opts); af != "" {
			args = append(args, "-af", af)
		}
		args = append(args, "-c:a", "aac", "-shortest")
	}
	args = append(args,
		"-c:v", codec,
		"-crf", strconv.Itoa(opts.CRF),
		"-pix_fmt", "yuv420p",
		"-y", output,
	)
	if _, err := exec.Execute(ctx, binary, args...); err != nil {
		return fmt.Errorf("ffmpeg encoding failed: %w", err)
	}
	return nil
}

// NewProgressBar returns the render progress bar.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
}
