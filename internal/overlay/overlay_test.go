package overlay

import (
	"context"
	"testing"

	"blurengine/internal/video"
)

// TestRender tests drawing notes onto frames
func TestRender(t *testing.T) {
	t.Run("No Notes", func(t *testing.T) {
		f := video.Filled(64, 32, video.RGBS, 0.5)
		out, err := Render(f)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if out != f {
			t.Error("A frame without notes must be returned unchanged")
		}
	})

	t.Run("Notes Drawn", func(t *testing.T) {
		f := video.Filled(200, 40, video.RGBS, 0.5).Annotate("duplicate, 4 gap, diff: 0.0000")
		out, err := Render(f)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if out.Width != f.Width || out.Height != f.Height || out.Format != f.Format {
			t.Fatalf("Render changed the frame shape")
		}

		var bright, dark int
		for _, v := range out.Planes[0] {
			switch {
			case v > 0.9:
				bright++
			case v < 0.3:
				dark++
			}
		}
		if bright == 0 || dark == 0 {
			t.Errorf("Expected text on a dark box, got %d bright and %d dark samples", bright, dark)
		}
		if out.Planes[0][len(out.Planes[0])-1] != 0.5 {
			t.Error("Pixels outside the box were modified")
		}
		if f.Planes[0][5*f.Width+5] != 0.5 {
			t.Error("Render wrote into its input")
		}
	})

	t.Run("Keeps Format", func(t *testing.T) {
		f := video.Filled(100, 30, video.Gray, 0.2).Annotate("blend 5 frames, gamma 1")
		out, err := Render(f)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if out.Format != video.Gray {
			t.Errorf("Render returned %s", out.Format)
		}
	})

	t.Run("Tiny Frame", func(t *testing.T) {
		f := video.Filled(3, 3, video.RGBS, 0).Annotate("note")
		if _, err := Render(f); err != nil {
			t.Fatalf("Render failed on a frame smaller than the text: %v", err)
		}
	})
}

// TestSource tests the stream wrapper
func TestSource(t *testing.T) {
	src := video.NewClip(video.R(30, 1),
		video.Filled(80, 20, video.RGBS, 0.5),
		video.Filled(80, 20, video.RGBS, 0.5).Annotate("interpolated, diff: 0.012"),
	)
	out := Source(src)
	if out.Len() != 2 || out.Rate() != src.Rate() {
		t.Fatal("Source changed the stream shape")
	}
	f, err := out.Frame(context.Background(), 1)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if f.Index != 1 {
		t.Errorf("Frame carries index %d", f.Index)
	}
}
