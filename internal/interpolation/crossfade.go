// internal/interpolation/crossfade.go
package interpolation

import (
	"context"

	"blurengine/internal/ffmpeg"
	"blurengine/internal/video"
)

// crossfade is the in-process backend: a linear mix of the two anchors.
type crossfade struct{}

func newCrossfade(*InterpolationConfig, ffmpeg.CommandExecutor, *TempFileManager) (Backend, error) {
	return crossfade{}, nil
}

// NewCrossfade returns the in-process linear blend backend.
func NewCrossfade() Backend { return crossfade{} }

func (crossfade) Name() string { return "blend" }

func (crossfade) Requirements() Requirements {
	return Requirements{Format: video.RGBS, Device: "cpu"}
}

func (crossfade) Interpolate(ctx context.Context, anchors Anchors, count int) ([]*video.Frame, error) {
	if err := checkAnchors(anchors, count); err != nil {
		return nil, err
	}
	a, b := anchors.First, anchors.Last
	out := make([]*video.Frame, count)
	for k := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := float32(k+1) / float32(count+1)
		f := video.NewFrame(a.Width, a.Height, a.Format)
		for p := range f.Planes {
			pa, pb, dst := a.Planes[p], b.Planes[p], f.Planes[p]
			for i := range dst {
				dst[i] = pa[i]*(1-t) + pb[i]*t
			}
		}
		out[k] = f
	}
	return out, nil
}
