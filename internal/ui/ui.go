// internal/ui/ui.go
package ui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"blurengine/internal/config"
	"blurengine/internal/interpolation"
	"blurengine/internal/pipeline"
	"blurengine/internal/video"
	"blurengine/internal/weighting"
)

var (
	infoStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#111827"))

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Italic(true)
)

// UserInteraction is the prompt surface used by CollectSettings.
type UserInteraction interface {
	PromptForString(label string, defaultValue string, validator func(string) error) (string, error)
	PromptForSelect(label string, items []string) (string, error)
	PromptForConfirm(label string) (bool, error)
}

type row struct {
	label string
	value string
}

func renderRows(rows []row) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = labelStyle.Render(r.label) + " " + valueStyle.Render(r.value)
	}
	return infoStyle.Render(strings.Join(lines, "\n"))
}

// VideoInfo renders the probed input properties.
func VideoInfo(info *video.VideoInfo) string {
	frames := "Unknown"
	if info.FrameCount > 0 {
		frames = strconv.Itoa(info.FrameCount)
	}
	return renderRows([]row{
		{"📁 File:", filepath.Base(info.Filepath)},
		{"📊 Size:", FormatFileSize(info.FileSize)},
		{"📐 Dimensions:", fmt.Sprintf("%dx%d", info.Width, info.Height)},
		{"🎬 Format:", info.Format},
		{"🎞️  Frame rate:", formatRate(info.FrameRate)},
		{"🔢 Frames:", frames},
		{"⚡ Bitrate:", formatBitrate(info.Bitrate)},
		{"⏱️  Duration:", FormatDuration(info.Duration)},
	})
}

// Settings renders a summary of the enabled stages.
func Settings(cfg *config.Config) string {
	off := offStyle.Render("off")
	rows := []row{{"🧹 Deduplication:", off}, {"🔀 Interpolation:", off}, {"⏳ Timescale:", off}, {"🌫️  Blur:", off}, {"🎨 Filters:", off}}
	if cfg.Deduplication.Enabled {
		rows[0].value = fmt.Sprintf("%s, threshold %g", cfg.Deduplication.Method, cfg.Deduplication.Threshold)
	}
	if cfg.Interpolation.Enabled {
		rows[1].value = fmt.Sprintf("%s to %s", cfg.Interpolation.Method, cfg.Interpolation.FPS)
	}
	if cfg.Timescale.Enabled {
		rows[2].value = fmt.Sprintf("in %gx, out %gx", cfg.Timescale.Input, cfg.Timescale.Output)
		if cfg.Timescale.AudioPitch {
			rows[2].value += ", pitched audio"
		}
	}
	if cfg.Blur.Enabled {
		rows[3].value = fmt.Sprintf("%g at %s fps, %s, gamma %g", cfg.Blur.Amount, cfg.Blur.OutputFPS, cfg.Blur.Weighting, cfg.Blur.Gamma)
	}
	if cfg.Filters.Enabled {
		rows[4].value = fmt.Sprintf("brightness %g, contrast %g, saturation %g", cfg.Filters.Brightness, cfg.Filters.Contrast, cfg.Filters.Saturation)
	}
	if cfg.Deduplication.Enabled || cfg.Interpolation.Enabled {
		rows = append(rows, row{"🧠 Backend:", backendDetail(cfg)})
	}
	rows = append(rows,
		row{"💾 Output:", fmt.Sprintf("%s, crf %d", cfg.Rendering.Container, cfg.Rendering.Quality)},
		row{"🧵 Workers:", strconv.Itoa(cfg.Workers())},
	)
	return renderRows(rows)
}

// backendDetail describes the model or motion preset behind the chosen method.
func backendDetail(cfg *config.Config) string {
	switch cfg.Interpolation.Method {
	case "rife":
		if desc, ok := interpolation.GetModelInfo()[cfg.Interpolation.Model]; ok {
			return "rife " + desc
		}
		return "rife " + cfg.Interpolation.Model
	case "svp", "legacy":
		if preset, ok := interpolation.GetMotionPresets()[cfg.Interpolation.Preset]; ok {
			return fmt.Sprintf("%s, %s preset (%s)", cfg.Interpolation.Method, preset.Name, preset.Description)
		}
	}
	return cfg.Interpolation.Method
}

// Result renders the render summary.
func Result(res *pipeline.Result) string {
	return renderRows([]row{
		{"🎞️  Frames:", fmt.Sprintf("%d in, %d out", res.InputFrames, res.OutputFrames)},
		{"⚡ Output rate:", formatRate(res.OutputRate)},
		{"✨ Interpolated:", strconv.FormatUint(res.Metrics.FramesInterpolated, 10)},
		{"🌫️  Blended:", strconv.FormatUint(res.Metrics.FramesBlended, 10)},
		{"⚠️  Contained failures:", strconv.FormatUint(res.Metrics.ContainedFailures, 10)},
		{"⏱️  Time:", res.Elapsed.Round(10 * time.Millisecond).String()},
	})
}

// CollectSettings asks for the most common options and writes the answers
// into cfg.
func CollectSettings(u UserInteraction, cfg *config.Config) error {
	method, err := u.PromptForSelect("Interpolation method", interpolation.Methods())
	if err != nil {
		return err
	}
	cfg.Interpolation.Method = method

	if cfg.Interpolation.Enabled, err = u.PromptForConfirm("Interpolate to a higher frame rate?"); err != nil {
		return err
	}
	if cfg.Interpolation.Enabled {
		fps, err := u.PromptForString("Interpolated fps", cfg.Interpolation.FPS, func(s string) error {
			_, err := interpolation.ParseTargetRate(s, video.R(1, 1))
			return err
		})
		if err != nil {
			return err
		}
		cfg.Interpolation.FPS = fps
	}

	if cfg.Blur.Enabled, err = u.PromptForConfirm("Apply motion blur?"); err != nil {
		return err
	}
	if cfg.Blur.Enabled {
		amount, err := u.PromptForString("Blur amount", strconv.FormatFloat(cfg.Blur.Amount, 'g', -1, 64), validateNonNegative)
		if err != nil {
			return err
		}
		cfg.Blur.Amount, _ = strconv.ParseFloat(amount, 64)

		if cfg.Blur.OutputFPS, err = u.PromptForString("Output fps", cfg.Blur.OutputFPS, func(s string) error {
			r, err := video.ParseRational(s)
			if err == nil && !r.Positive() {
				return fmt.Errorf("fps must be positive")
			}
			return err
		}); err != nil {
			return err
		}

		if cfg.Blur.Weighting, err = u.PromptForSelect("Blur weighting", namedWeightings()); err != nil {
			return err
		}
	}
	return config.Validate(cfg)
}

// namedWeightings lists the shapes that need no further input.
func namedWeightings() []string {
	var names []string
	for _, k := range weighting.Kinds() {
		if k != string(weighting.CustomWeight) && k != string(weighting.CustomFunction) {
			names = append(names, k)
		}
	}
	return names
}

func validateNonNegative(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	if v < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// FormatFileSize converts bytes to human-readable format
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration converts seconds to MM:SS format
func FormatDuration(seconds float64) string {
	totalSeconds := int(seconds)
	minutes := totalSeconds / 60
	remainingSeconds := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d", minutes, remainingSeconds)
}

func formatBitrate(bitrate int64) string {
	if bitrate == 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%.1f kbps", float64(bitrate)/1000)
}

func formatRate(r video.Rational) string {
	if !r.Positive() {
		return "Unknown"
	}
	if r.Den == 1 {
		return r.String() + " fps"
	}
	return fmt.Sprintf("%s (%.3f) fps", r, r.Float64())
}
