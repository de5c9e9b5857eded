package video

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
)

func TestPNGRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
	}{
		{"RGBS", rgbFrame(0.25, 0.5, 0.75)},
		{"Gray", Filled(3, 2, Gray, 0.4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := EncodePNG(&buf, tt.frame); err != nil {
				t.Fatalf("EncodePNG failed: %v", err)
			}
			got, err := DecodePNG(&buf)
			if err != nil {
				t.Fatalf("DecodePNG failed: %v", err)
			}
			if !got.SameShape(tt.frame) {
				t.Fatalf("Decoded %dx%d %s, want %dx%d %s", got.Width, got.Height, got.Format,
					tt.frame.Width, tt.frame.Height, tt.frame.Format)
			}
			for p := range got.Planes {
				for i := range got.Planes[p] {
					if d := math.Abs(float64(got.Planes[p][i] - tt.frame.Planes[p][i])); d > 1e-4 {
						t.Fatalf("Plane %d sample %d drifted by %v", p, i, d)
					}
				}
			}
		})
	}
}

func TestWriteReadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_000000.png")
	src := NewFrame(2, 2, RGBS)
	src.Planes[0][3] = 1
	src.Planes[2][0] = 2 // clamps

	if err := WritePNG(path, src); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	got, err := ReadPNG(path)
	if err != nil {
		t.Fatalf("ReadPNG failed: %v", err)
	}
	if got.Planes[0][3] != 1 || got.Planes[2][0] != 1 || got.Planes[1][1] != 0 {
		t.Errorf("Unexpected samples after round trip: %v", got.Planes)
	}

	if _, err := ReadPNG(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected missing file to fail")
	}
}
