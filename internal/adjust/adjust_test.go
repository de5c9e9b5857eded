package adjust

import (
	"context"
	"errors"
	"math"
	"testing"

	"blurengine/internal/diag"
	"blurengine/internal/video"
)

func rgb(r, g, b float32) *video.Frame {
	f := video.NewFrame(1, 1, video.RGBS)
	f.Planes[0][0], f.Planes[1][0], f.Planes[2][0] = r, g, b
	return f
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

// TestApply tests the individual controls
func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		in     *video.Frame
		levels Levels
		check  func(*video.Frame) bool
	}{
		{
			name:   "Brightness Raises Grey",
			in:     rgb(0.4, 0.4, 0.4),
			levels: Levels{Brightness: 1.1, Contrast: 1, Saturation: 1},
			check: func(f *video.Frame) bool {
				return near(f.Planes[0][0], 0.5) && near(f.Planes[1][0], 0.5) && near(f.Planes[2][0], 0.5)
			},
		},
		{
			name:   "Zero Saturation Is Grey",
			in:     rgb(0.8, 0.2, 0.2),
			levels: Levels{Brightness: 1, Contrast: 1, Saturation: 0},
			check: func(f *video.Frame) bool {
				return near(f.Planes[0][0], f.Planes[1][0]) && near(f.Planes[1][0], f.Planes[2][0])
			},
		},
		{
			name:   "Zero Contrast Is Mid Grey",
			in:     rgb(0.9, 0.9, 0.9),
			levels: Levels{Brightness: 1, Contrast: 0, Saturation: 1},
			check: func(f *video.Frame) bool {
				return near(f.Planes[0][0], 0.5)
			},
		},
		{
			name:   "Clamped",
			in:     rgb(0.9, 0.9, 0.9),
			levels: Levels{Brightness: 2, Contrast: 1, Saturation: 1},
			check: func(f *video.Frame) bool {
				return f.Planes[0][0] <= 1.0001
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(tt.in, tt.levels)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if out.Format != video.RGBS {
				t.Errorf("Apply returned %s", out.Format)
			}
			if !tt.check(out) {
				t.Errorf("Unexpected result %v", out.Planes)
			}
		})
	}
}

// TestNew tests the stream stage
func TestNew(t *testing.T) {
	src := video.NewClip(video.R(30, 1), rgb(0.2, 0.4, 0.6), rgb(0.6, 0.4, 0.2))

	t.Run("Neutral Returns Source", func(t *testing.T) {
		out, err := New(src, Levels{1, 1, 1})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if out != src {
			t.Error("Neutral levels should not wrap the source")
		}
	})

	t.Run("Adjusted Stream", func(t *testing.T) {
		out, err := New(src, Levels{Brightness: 1.2, Contrast: 1, Saturation: 1})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if out.Len() != 2 || out.Rate() != src.Rate() {
			t.Errorf("Stream shape changed")
		}
		f, err := out.Frame(context.Background(), 1)
		if err != nil {
			t.Fatalf("Frame failed: %v", err)
		}
		if f.Index != 1 || !near(f.Planes[1][0], 0.6) {
			t.Errorf("Unexpected frame %d %v", f.Index, f.Planes)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, l := range []Levels{{-1, 1, 1}, {1, math.NaN(), 1}, {1, 1, math.Inf(1)}} {
			if _, err := New(src, l); !errors.Is(err, diag.ErrInvalidArgument) {
				t.Errorf("New(%v) = %v, want ErrInvalidArgument", l, err)
			}
		}
	})
}
