package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blurengine/internal/diag"
	"blurengine/internal/mocks"
	"blurengine/internal/video"
)

// TestCheckVersion tests FFmpeg availability and version detection
func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*mocks.MockCommandExecutor)
		wantVersion string
		expectError bool
		description string
	}{
		{
			name: "FFmpeg available",
			setupMock: func(m *mocks.MockCommandExecutor) {
				m.Responses["ffmpeg -version"] = []byte("ffmpeg version 6.1.1 Copyright (c) 2000-2023")
			},
			wantVersion: "6.1",
			description: "FFmpeg is properly installed",
		},
		{
			name: "Git build",
			setupMock: func(m *mocks.MockCommandExecutor) {
				m.Responses["ffmpeg -version"] = []byte("ffmpeg version n4.4.2-0ubuntu0.22.04.1")
			},
			wantVersion: "4.4",
			description: "Distribution builds prefix the version with n",
		},
		{
			name: "FFmpeg not installed",
			setupMock: func(m *mocks.MockCommandExecutor) {
				m.AvailableCommands["ffmpeg"] = false
			},
			expectError: true,
			description: "FFmpeg is not installed",
		},
		{
			name: "FFmpeg version too old",
			setupMock: func(m *mocks.MockCommandExecutor) {
				m.Responses["ffmpeg -version"] = []byte("ffmpeg version 2.8.0")
			},
			wantVersion: "2.8",
			expectError: true,
			description: "FFmpeg version is too old",
		},
		{
			name: "Garbage output",
			setupMock: func(m *mocks.MockCommandExecutor) {
				m.Responses["ffmpeg -version"] = []byte("command not recognised")
			},
			expectError: true,
			description: "Output without a version line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCmd := mocks.NewMockCommandExecutor()
			tt.setupMock(mockCmd)

			version, err := CheckVersion(context.Background(), mockCmd)
			if (err != nil) != tt.expectError {
				t.Errorf("CheckVersion() error = %v, expectError %v (%s)", err, tt.expectError, tt.description)
			}
			if version != tt.wantVersion {
				t.Errorf("CheckVersion() = %q, want %q", version, tt.wantVersion)
			}
		})
	}
}

// TestExtractFrames tests decoding a video into a PNG sequence
func TestExtractFrames(t *testing.T) {
	t.Run("Writes Sequence", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "frames")
		mockCmd := mocks.NewMockCommandExecutor()
		mockCmd.Handlers["ffmpeg"] = func(args []string) ([]byte, error) {
			pattern := args[len(args)-1]
			for i := 0; i < 3; i++ {
				f := video.Filled(4, 4, video.RGBS, float32(i)/2)
				if err := video.WritePNG(FramePath(filepath.Dir(pattern), i), f); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}

		n, err := ExtractFrames(context.Background(), mockCmd, "input.mp4", dir)
		if err != nil {
			t.Fatalf("ExtractFrames failed: %v", err)
		}
		if n != 3 {
			t.Errorf("ExtractFrames returned %d, want 3", n)
		}

		cmd := mockCmd.Calls()[0]
		for _, want := range []string{"-i input.mp4", "-pix_fmt rgb48be", "-start_number 0", FramePattern} {
			if !strings.Contains(cmd, want) {
				t.Errorf("Command %q is missing %q", cmd, want)
			}
		}
	})

	t.Run("No Frames", func(t *testing.T) {
		mockCmd := mocks.NewMockCommandExecutor()
		if _, err := ExtractFrames(context.Background(), mockCmd, "empty.mp4", t.TempDir()); !errors.Is(err, diag.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Decoder Failure", func(t *testing.T) {
		mockCmd := mocks.NewMockCommandExecutor()
		mockCmd.Errors["ffmpeg"] = errors.New("moov atom not found")
		_, err := ExtractFrames(context.Background(), mockCmd, "broken.mp4", t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "moov atom") {
			t.Errorf("Expected decoder error to propagate, got %v", err)
		}
	})
}

// TestDirSource tests random access over a frame directory
func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		if err := WriteFrame(dir, video.Filled(2, 2, video.Gray, float32(i)/4).WithIndex(i)); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	src, err := NewDirSource(dir, video.R(30000, 1001))
	if err != nil {
		t.Fatalf("NewDirSource failed: %v", err)
	}
	if src.Len() != 4 || src.Rate() != video.R(30000, 1001) {
		t.Errorf("got %d frames at %s", src.Len(), src.Rate())
	}

	for _, n := range []int{3, 0, 2} {
		f, err := src.Frame(context.Background(), n)
		if err != nil {
			t.Fatalf("Frame(%d) failed: %v", n, err)
		}
		if f.Index != n || f.Format != video.Gray {
			t.Errorf("Frame(%d) = index %d format %s", n, f.Index, f.Format)
		}
		if want := float32(n) / 4; f.Planes[0][0]-want > 1e-4 || want-f.Planes[0][0] > 1e-4 {
			t.Errorf("Frame(%d) = %v, want %v", n, f.Planes[0][0], want)
		}
	}

	if _, err := src.Frame(context.Background(), 4); !errors.Is(err, diag.ErrInvalidArgument) {
		t.Errorf("Expected out of range frame to fail, got %v", err)
	}

	t.Run("Holes Rejected", func(t *testing.T) {
		holes := t.TempDir()
		WriteFrame(holes, video.Filled(1, 1, video.Gray, 0).WithIndex(1))
		if _, err := NewDirSource(holes, video.R(30, 1)); err == nil {
			t.Error("Expected a sequence not starting at 0 to be rejected")
		}
	})

	t.Run("Invalid Rate", func(t *testing.T) {
		if _, err := NewDirSource(dir, video.Rational{}); !errors.Is(err, diag.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})
}

// TestReassemble tests the encoder argument construction
func TestReassemble(t *testing.T) {
	tests := []struct {
		name           string
		opts           EncodeOptions
		expectError    bool
		contains       []string
		doesNotContain []string
	}{
		{
			name:           "Video Only",
			opts:           EncodeOptions{Rate: video.R(60, 1), CRF: 18},
			contains:       []string{"-framerate 60", "-c:v libx264", "-crf 18", "-pix_fmt yuv420p", "-y out.mp4"},
			doesNotContain: []string{"-c:a"},
		},
		{
			name:     "With Audio",
			opts:     EncodeOptions{Rate: video.R(60000, 1001), CRF: 23, Audio: "input.mp4"},
			contains: []string{"-framerate 60000/1001", "-i input.mp4", "-map 1:a:0?", "-c:a aac", "-shortest"},
		},
		{
			name:     "Custom Codec",
			opts:     EncodeOptions{Rate: video.R(30, 1), CRF: 0, Codec: "libx265"},
			contains: []string{"-c:v libx265", "-crf 0"},
		},
		{
			name:        "Invalid CRF",
			opts:        EncodeOptions{Rate: video.R(30, 1), CRF: 52},
			expectError: true,
		},
		{
			name:        "Invalid Rate",
			opts:        EncodeOptions{CRF: 20},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCmd := mocks.NewMockCommandExecutor()
			err := Reassemble(context.Background(), mockCmd, "frames", "out.mp4", tt.opts)
			if tt.expectError {
				if !errors.Is(err, diag.ErrInvalidArgument) {
					t.Errorf("Expected ErrInvalidArgument, got %v", err)
				}
				if len(mockCmd.Calls()) != 0 {
					t.Error("ffmpeg must not run with invalid options")
				}
				return
			}
			if err != nil {
				t.Fatalf("Reassemble failed: %v", err)
			}
			cmd := mockCmd.Calls()[0]
			for _, want := range tt.contains {
				if !strings.Contains(cmd, want) {
					t.Errorf("Command %q is missing %q", cmd, want)
				}
			}
			for _, unwanted := range tt.doesNotContain {
				if strings.Contains(cmd, unwanted) {
					t.Errorf("Command %q should not contain %q", cmd, unwanted)
				}
			}
		})
	}

	t.Run("Encoder Failure", func(t *testing.T) {
		mockCmd := mocks.NewMockCommandExecutor()
		mockCmd.Errors["ffmpeg"] = errors.New("Unknown encoder 'libx264'")
		err := Reassemble(context.Background(), mockCmd, "frames", "out.mp4", EncodeOptions{Rate: video.R(30, 1), CRF: 20})
		if err == nil || !strings.Contains(err.Error(), "encoding failed") {
			t.Errorf("Expected wrapped encoder error, got %v", err)
		}
	})
}

// TestReassembleAudioRetime tests that timescaled renders keep their audio in step
func TestReassembleAudioRetime(t *testing.T) {
	base := EncodeOptions{Rate: video.R(60, 1), CRF: 18, Audio: "input.mp4"}
	with := func(in, out float64, pitch bool, rate int) EncodeOptions {
		opts := base
		opts.InputTimescale = in
		opts.OutputTimescale = out
		opts.AudioPitch = pitch
		opts.SampleRate = rate
		return opts
	}

	tests := []struct {
		name   string
		opts   EncodeOptions
		wantAF string // empty for no -af
	}{
		{name: "Unscaled", opts: with(1, 1, false, 0), wantAF: ""},
		{name: "Zero Means Unscaled", opts: with(0, 0, true, 0), wantAF: ""},
		{name: "Input Slowed", opts: with(2, 1, false, 0), wantAF: "asetrate=48000*0.5,aresample=48000"},
		{name: "Output Tempo", opts: with(1, 2, false, 0), wantAF: "atempo=2,aresample=48000"},
		{name: "Output Pitch", opts: with(1, 0.5, true, 44100), wantAF: "asetrate=44100*0.5,aresample=44100"},
		{name: "Both Scales", opts: with(0.5, 2, false, 0), wantAF: "asetrate=48000*2,atempo=2,aresample=48000"},
		{name: "Both Scales Pitched", opts: with(4, 2, true, 0), wantAF: "asetrate=48000*0.5,aresample=48000"},
		{name: "Pitch Cancels Input", opts: with(2, 2, true, 0), wantAF: ""},
		{name: "Slow Tempo Chained", opts: with(1, 0.2, false, 0), wantAF: "atempo=0.5,atempo=0.5,atempo=0.8,aresample=48000"},
		{name: "Fast Tempo Chained", opts: with(1, 400, false, 0), wantAF: "atempo=100,atempo=4,aresample=48000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []string
			mockCmd := mocks.NewMockCommandExecutor()
			mockCmd.Handlers["ffmpeg"] = func(a []string) ([]byte, error) {
				args = a
				return nil, nil
			}
			if err := Reassemble(context.Background(), mockCmd, "frames", "out.mp4", tt.opts); err != nil {
				t.Fatalf("Reassemble failed: %v", err)
			}
			af, ok := mocks.ArgValue(args, "-af")
			if tt.wantAF == "" {
				if ok {
					t.Errorf("Expected no audio filters, got %q", af)
				}
				return
			}
			if af != tt.wantAF {
				t.Errorf("-af = %q, want %q", af, tt.wantAF)
			}
			if m, _ := mocks.ArgValue(args, "-map"); m != "0:v:0" {
				t.Errorf("Expected the video stream mapped first, got %q", m)
			}
		})
	}

	t.Run("No Audio Track", func(t *testing.T) {
		opts := with(2, 0.5, false, 0)
		opts.Audio = ""
		mockCmd := mocks.NewMockCommandExecutor()
		if err := Reassemble(context.Background(), mockCmd, "frames", "out.mp4", opts); err != nil {
			t.Fatalf("Reassemble failed: %v", err)
		}
		if cmd := mockCmd.Calls()[0]; strings.Contains(cmd, "-af") || strings.Contains(cmd, "-c:a") {
			t.Errorf("Command %q should carry no audio options", cmd)
		}
	})
}

// TestReassembleBinary tests that the configured ffmpeg binary is used
func TestReassembleBinary(t *testing.T) {
	mockCmd := mocks.NewMockCommandExecutor()
	opts := EncodeOptions{Binary: "/opt/ffmpeg/bin/ffmpeg", Rate: video.R(30, 1), CRF: 20}
	if err := Reassemble(context.Background(), mockCmd, "frames", "out.mp4", opts); err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if cmd := mockCmd.Calls()[0]; !strings.HasPrefix(cmd, "/opt/ffmpeg/bin/ffmpeg -v error") {
		t.Errorf("Expected the configured binary, got %q", cmd)
	}
}

// TestWriteFrameMissingDir tests writing into a directory that does not exist
func TestWriteFrameMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	if err := WriteFrame(dir, video.Filled(1, 1, video.RGBS, 0)); err == nil {
		t.Error("Expected an error for a missing directory")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("WriteFrame must not create directories")
	}
}
