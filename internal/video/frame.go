// internal/video/frame.go
package video

import "fmt"

// ColorFormat is the pixel representation of a Frame.
type ColorFormat int

const (
	// RGBS is three float planes R, G, B in [0,1].
	RGBS ColorFormat = iota
	// YUV444 is three float planes Y, Cb, Cr in [0,1] (BT.601, full range).
	YUV444
	// Gray is a single luma plane.
	Gray
)

func (c ColorFormat) String() string {
	switch c {
	case RGBS:
		return "RGBS"
	case YUV444:
		return "YUV444"
	case Gray:
		return "Gray"
	default:
		return fmt.Sprintf("ColorFormat(%d)", int(c))
	}
}

// Planes returns the number of planes the format carries.
func (c ColorFormat) Planes() int {
	if c == Gray {
		return 1
	}
	return 3
}

// Frame is an immutable pixel buffer. Stages never write into Planes of a
// frame they did not allocate; every transformation returns a new Frame.
type Frame struct {
	Index  int
	Width  int
	Height int
	Format ColorFormat
	Planes [][]float32
	Notes  []string
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int, format ColorFormat) *Frame {
	planes := make([][]float32, format.Planes())
	for i := range planes {
		planes[i] = make([]float32, width*height)
	}
	return &Frame{Width: width, Height: height, Format: format, Planes: planes}
}

// Filled allocates a frame with every sample set to value.
func Filled(width, height int, format ColorFormat, value float32) *Frame {
	f := NewFrame(width, height, format)
	for _, p := range f.Planes {
		for i := range p {
			p[i] = value
		}
	}
	return f
}

// WithIndex returns a shallow copy carrying index n. Pixel planes are shared.
func (f *Frame) WithIndex(n int) *Frame {
	c := *f
	c.Index = n
	return &c
}

// Annotate returns a shallow copy with note appended to its overlay notes.
func (f *Frame) Annotate(note string) *Frame {
	c := *f
	c.Notes = append(append([]string(nil), f.Notes...), note)
	return &c
}

// SameShape reports whether f and o can be combined sample by sample.
func (f *Frame) SameShape(o *Frame) bool {
	return f.Width == o.Width && f.Height == o.Height && f.Format == o.Format && len(f.Planes) == len(o.Planes)
}

// Map returns a new frame with fn applied to every sample of every plane.
func (f *Frame) Map(fn func(plane int, v float32) float32) *Frame {
	out := NewFrame(f.Width, f.Height, f.Format)
	out.Index = f.Index
	out.Notes = f.Notes
	for p, src := range f.Planes {
		dst := out.Planes[p]
		for i, v := range src {
			dst[i] = fn(p, v)
		}
	}
	return out
}
