// internal/video/png.go
package video

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
)

// ToImage renders f as a 16-bit image. Gray frames become image.Gray16;
// everything else is converted to RGB first.
func ToImage(f *Frame) (image.Image, error) {
	rect := image.Rect(0, 0, f.Width, f.Height)
	if f.Format == Gray {
		img := image.NewGray16(rect)
		for i, v := range f.Planes[0] {
			img.SetGray16(i%f.Width, i/f.Width, color.Gray16{Y: quantize(v)})
		}
		return img, nil
	}

	rgb, err := Convert(f, RGBS)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA64(rect)
	r, g, b := rgb.Planes[0], rgb.Planes[1], rgb.Planes[2]
	for i := range r {
		img.SetRGBA64(i%f.Width, i/f.Width, color.RGBA64{
			R: quantize(r[i]),
			G: quantize(g[i]),
			B: quantize(b[i]),
			A: 0xffff,
		})
	}
	return img, nil
}

// FromImage converts img into an RGBS frame, or a Gray frame when img is grayscale.
func FromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch img.(type) {
	case *image.Gray, *image.Gray16:
		f := NewFrame(w, h, Gray)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				f.Planes[0][y*w+x] = float32(g.Y) / 0xffff
			}
		}
		return f
	}

	f := NewFrame(w, h, RGBS)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			f.Planes[0][i] = float32(r) / 0xffff
			f.Planes[1][i] = float32(g) / 0xffff
			f.Planes[2][i] = float32(b) / 0xffff
		}
	}
	return f
}

// EncodePNG writes f as a 16-bit PNG.
func EncodePNG(w io.Writer, f *Frame) error {
	img, err := ToImage(f)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// DecodePNG reads a PNG into a frame.
func DecodePNG(r io.Reader) (*Frame, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode png: %w", err)
	}
	return FromImage(img), nil
}

// WritePNG encodes f to path.
func WritePNG(path string, f *Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodePNG(file, f); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}

// ReadPNG decodes the PNG at path.
func ReadPNG(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	f, err := DecodePNG(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func quantize(v float32) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}
