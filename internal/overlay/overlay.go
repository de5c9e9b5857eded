// internal/overlay/overlay.go
package overlay

import (
	"context"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"blurengine/internal/video"
)

const (
	margin  = 4
	padding = 2
)

// Render draws the notes of f in its top left corner on a darkened box.
// A frame without notes is returned as is.
func Render(f *video.Frame) (*video.Frame, error) {
	if len(f.Notes) == 0 {
		return f, nil
	}
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	text := image.NewAlpha(image.Rect(0, 0, f.Width, f.Height))
	drawer := &font.Drawer{Dst: text, Src: image.Opaque, Face: face}
	width := 0
	for i, note := range f.Notes {
		drawer.Dot = fixed.P(margin+padding, margin+padding+i*lineHeight+metrics.Ascent.Ceil())
		drawer.DrawString(note)
		width = max(width, drawer.MeasureString(note).Ceil())
	}
	box := image.Rect(margin, margin, margin+width+2*padding, margin+len(f.Notes)*lineHeight+2*padding).
		Intersect(text.Bounds())

	rgb, err := video.Convert(f, video.RGBS)
	if err != nil {
		return nil, err
	}
	out := rgb.Map(func(_ int, v float32) float32 { return v })
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			i := y*f.Width + x
			a := float32(text.AlphaAt(x, y).A) / 0xff
			for _, plane := range out.Planes {
				plane[i] = plane[i]*0.35*(1-a) + a
			}
		}
	}
	return video.Convert(out, f.Format)
}

// Source renders the notes of every frame of src.
func Source(src video.Source) video.Source {
	return video.NewLazy(src.Len(), src.Rate(), func(ctx context.Context, n int) (*video.Frame, error) {
		f, err := src.Frame(ctx, n)
		if err != nil {
			return nil, err
		}
		return Render(f)
	})
}
