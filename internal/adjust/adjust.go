// internal/adjust/adjust.go
package adjust

import (
	"context"
	"fmt"
	"math"

	"blurengine/internal/diag"
	"blurengine/internal/video"
)

// Levels are the output colour controls. 1 leaves a control untouched.
type Levels struct {
	Brightness float64
	Contrast   float64
	Saturation float64
}

// Neutral reports whether applying l would leave frames unchanged.
func (l Levels) Neutral() bool {
	return l.Brightness == 1 && l.Contrast == 1 && l.Saturation == 1
}

// Validate checks that every control is a finite, non-negative factor.
func (l Levels) Validate() error {
	for name, v := range map[string]float64{"brightness": l.Brightness, "contrast": l.Contrast, "saturation": l.Saturation} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s %v: %w", name, v, diag.ErrInvalidArgument)
		}
	}
	return nil
}

// New returns src with l applied to every frame. Neutral levels return src.
func New(src video.Source, l Levels) (video.Source, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Neutral() {
		return src, nil
	}
	return video.NewLazy(src.Len(), src.Rate(), func(ctx context.Context, n int) (*video.Frame, error) {
		f, err := src.Frame(ctx, n)
		if err != nil {
			return nil, err
		}
		return Apply(f, l)
	}), nil
}

// Apply adjusts one frame in YUV: brightness-1 is added to luma, contrast
// scales luma around mid grey and saturation scales chroma around neutral.
func Apply(f *video.Frame, l Levels) (*video.Frame, error) {
	out, err := video.WithFormat([]*video.Frame{f}, video.YUV444, func(in []*video.Frame) ([]*video.Frame, error) {
		shift := float32(l.Brightness - 1)
		contrast := float32(l.Contrast)
		sat := float32(l.Saturation)
		return []*video.Frame{in[0].Map(func(plane int, v float32) float32 {
			if plane == 0 {
				v = (v-0.5)*contrast + 0.5 + shift
			} else {
				v = (v-0.5)*sat + 0.5
			}
			return min(max(v, 0), 1)
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
