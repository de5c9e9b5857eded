// internal/video/info.go
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

type VideoInfo struct {
	Filepath   string
	FileSize   int64
	Width      int
	Height     int
	Duration   float64
	Format     string
	Bitrate    int64
	FrameRate  Rational
	FrameCount int
	HasAudio   bool
	SampleRate int // of the first audio stream, 0 when unknown
}

type FFProbeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Duration   string `json:"duration"`
		CodecType  string `json:"codec_type"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Bitrate  string `json:"bit_rate"`
		Format   string `json:"format_name"`
	} `json:"format"`
}

// Runner executes an external command and returns its stdout. The
// Execute method of a command executor satisfies it.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// GetVideoInfo probes path with ffprobe through run. A nil run executes
// ffprobe directly.
func GetVideoInfo(ctx context.Context, run Runner, filepath string) (*VideoInfo, error) {
	// Get file size
	fileInfo, err := os.Stat(filepath)
	if err != nil {
		return nil, err
	}
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		}
	}

	output, err := run(ctx, "ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to run ffprobe: %v", err)
	}

	info, err := ParseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	info.Filepath = filepath
	info.FileSize = fileInfo.Size()
	return info, nil
}

// ParseProbeOutput decodes `ffprobe -print_format json -show_format -show_streams`.
func ParseProbeOutput(output []byte) (*VideoInfo, error) {
	var probe FFProbeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %v", err)
	}

	info := &VideoInfo{Format: probe.Format.Format}

	foundVideo := false
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			if rate, err := ParseRational(stream.RFrameRate); err == nil && rate.Positive() {
				info.FrameRate = rate
			}
			if n, err := strconv.Atoi(stream.NbFrames); err == nil {
				info.FrameCount = n
			}
		case "audio":
			if !info.HasAudio {
				info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
			}
			info.HasAudio = true
		}
	}
	if !foundVideo {
		return nil, fmt.Errorf("no video stream found")
	}

	if probe.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = duration
		}
	}

	if probe.Format.Bitrate != "" {
		if bitrate, err := strconv.ParseInt(probe.Format.Bitrate, 10, 64); err == nil {
			info.Bitrate = bitrate
		}
	}

	// Estimate the frame count when the container does not store it
	if info.FrameCount == 0 && info.Duration > 0 && info.FrameRate.Positive() {
		info.FrameCount = int(info.Duration * info.FrameRate.Float64())
	}

	return info, nil
}
