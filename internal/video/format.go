// internal/video/format.go
package video

import (
	"fmt"

	"blurengine/internal/diag"
)

// Convert returns f in the target representation. Conversions use BT.601
// full-range coefficients; a same-format conversion returns f itself.
func Convert(f *Frame, to ColorFormat) (*Frame, error) {
	if f.Format == to {
		return f, nil
	}
	out := NewFrame(f.Width, f.Height, to)
	out.Index = f.Index
	out.Notes = f.Notes

	switch {
	case f.Format == RGBS && to == YUV444:
		r, g, b := f.Planes[0], f.Planes[1], f.Planes[2]
		for i := range r {
			y := 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
			out.Planes[0][i] = y
			out.Planes[1][i] = (b[i]-y)*0.564 + 0.5
			out.Planes[2][i] = (r[i]-y)*0.713 + 0.5
		}
	case f.Format == YUV444 && to == RGBS:
		y, cb, cr := f.Planes[0], f.Planes[1], f.Planes[2]
		for i := range y {
			u, v := cb[i]-0.5, cr[i]-0.5
			out.Planes[0][i] = y[i] + 1.403*v
			out.Planes[1][i] = y[i] - 0.344*u - 0.714*v
			out.Planes[2][i] = y[i] + 1.773*u
		}
	case f.Format == RGBS && to == Gray:
		r, g, b := f.Planes[0], f.Planes[1], f.Planes[2]
		for i := range r {
			out.Planes[0][i] = 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
		}
	case f.Format == YUV444 && to == Gray:
		copy(out.Planes[0], f.Planes[0])
	case f.Format == Gray && to == RGBS:
		for p := 0; p < 3; p++ {
			copy(out.Planes[p], f.Planes[0])
		}
	case f.Format == Gray && to == YUV444:
		copy(out.Planes[0], f.Planes[0])
		for i := range out.Planes[1] {
			out.Planes[1][i] = 0.5
			out.Planes[2][i] = 0.5
		}
	default:
		return nil, fmt.Errorf("no conversion from %s to %s: %w", f.Format, to, diag.ErrInvalidArgument)
	}
	return out, nil
}

// ConvertAll converts every frame to the target format.
func ConvertAll(frames []*Frame, to ColorFormat) ([]*Frame, error) {
	out := make([]*Frame, len(frames))
	for i, f := range frames {
		c, err := Convert(f, to)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// WithFormat runs fn on frames converted to the target format and converts
// whatever fn returned back to the format of frames[0]. The conversion back
// also runs when fn fails, so callers never see frames in a foreign format.
func WithFormat(frames []*Frame, target ColorFormat, fn func([]*Frame) ([]*Frame, error)) (result []*Frame, err error) {
	if len(frames) == 0 {
		return fn(frames)
	}
	original := frames[0].Format
	in, err := ConvertAll(frames, target)
	if err != nil {
		return nil, err
	}
	defer func() {
		if len(result) == 0 {
			return
		}
		back, cerr := ConvertAll(result, original)
		if cerr != nil {
			result = nil
			if err == nil {
				err = cerr
			}
			return
		}
		result = back
	}()
	return fn(in)
}
