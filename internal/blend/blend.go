// internal/blend/blend.go
package blend

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/rs/zerolog"

	"blurengine/internal/diag"
	"blurengine/internal/video"
	"blurengine/internal/weighting"
)

// Options configures a Blender.
type Options struct {
	// Gamma selects the accumulation domain. 1 (or 0) is a plain weighted sum.
	Gamma float64
	// OutRate is the rate of the blended stream. Zero keeps the source rate.
	OutRate video.Rational
	Debug   bool
	Logger  zerolog.Logger
	Events  chan<- diag.Event
	Metrics *diag.Metrics
}

// Plan turns the blur settings into a weight vector. The source rate is
// divided into frame gaps of floor(src/out) frames, amount of which are
// blended. The count is forced odd so the window has a centre frame. A nil
// result means no frames are blended and the stage only re-times.
func Plan(srcRate, outRate video.Rational, amount float64, shape weighting.Shape) (weighting.Weights, error) {
	if !srcRate.Positive() || !outRate.Positive() {
		return nil, fmt.Errorf("blur rates %s -> %s: %w", srcRate, outRate, diag.ErrInvalidArgument)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return nil, fmt.Errorf("blur amount %v: %w", amount, diag.ErrInvalidArgument)
	}
	gap := int(srcRate.Float64() / outRate.Float64())
	blended := int(float64(gap) * amount)
	if blended <= 0 {
		return nil, nil
	}
	if blended%2 == 0 {
		blended++
	}
	return weighting.Generate(blended, shape)
}

// Blender is a video.Source producing each output frame as the weighted
// sum of a window of source frames centred on its mapped input position.
type Blender struct {
	src     video.Source
	weights weighting.Weights
	opts    Options
	num     *big.Int // input frames per output frame is num/den
	den     *big.Int
	length  int
}

// New validates the parameters and returns the blended stream. Empty
// weights select the centre frame only.
func New(src video.Source, weights weighting.Weights, opts Options) (*Blender, error) {
	if src == nil {
		return nil, fmt.Errorf("blend needs a source: %w", diag.ErrInvalidArgument)
	}
	if opts.Gamma == 0 {
		opts.Gamma = 1
	}
	if math.IsNaN(opts.Gamma) || math.IsInf(opts.Gamma, 0) || opts.Gamma < 0 {
		return nil, fmt.Errorf("blend gamma %v: %w", opts.Gamma, diag.ErrInvalidArgument)
	}
	if len(weights) == 0 {
		weights = weighting.Weights{1}
	}
	if len(weights)%2 == 0 {
		return nil, fmt.Errorf("blend window of %d weights has no centre frame: %w", len(weights), diag.ErrInvalidArgument)
	}
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("blend weight %v: %w", w, diag.ErrInvalidWeightShape)
		}
	}
	in := src.Rate()
	if opts.OutRate == (video.Rational{}) {
		opts.OutRate = in
	}
	if !in.Positive() || !opts.OutRate.Positive() {
		return nil, fmt.Errorf("blend rates %s -> %s: %w", in, opts.OutRate, diag.ErrInvalidArgument)
	}

	b := &Blender{
		src:     src,
		weights: weights,
		opts:    opts,
		num:     new(big.Int).Mul(big.NewInt(in.Num), big.NewInt(opts.OutRate.Den)),
		den:     new(big.Int).Mul(big.NewInt(in.Den), big.NewInt(opts.OutRate.Num)),
	}
	if src.Len() > 0 {
		// floor((len-1) * out/in) + 1
		l := new(big.Int).Mul(big.NewInt(int64(src.Len()-1)), b.den)
		b.length = int(l.Quo(l, b.num).Int64()) + 1
	}
	return b, nil
}

func (b *Blender) Len() int             { return b.length }
func (b *Blender) Rate() video.Rational { return b.opts.OutRate }

// Centre returns the source index output frame k is centred on.
func (b *Blender) Centre(k int) int {
	c := new(big.Int).Mul(big.NewInt(int64(k)), b.num)
	return int(c.Quo(c, b.den).Int64())
}

// Frame returns blended output frame k. A window that cannot be read or
// combined falls back to its centre frame.
func (b *Blender) Frame(ctx context.Context, k int) (*video.Frame, error) {
	if err := video.CheckIndex(b, k); err != nil {
		return nil, err
	}
	centre := b.Centre(k)
	if len(b.weights) == 1 {
		f, err := b.src.Frame(ctx, centre)
		if err != nil {
			return nil, err
		}
		return f.WithIndex(k), nil
	}

	f, err := b.window(ctx, centre)
	if err != nil {
		if diag.Classify(err) == diag.CodeCancel {
			return nil, err
		}
		if b.opts.Metrics != nil {
			b.opts.Metrics.ContainedFailures.Add(1)
		}
		diag.Contained(b.opts.Logger, "blend", err).
			Int("frame", k).
			Int("centre", centre).
			Msg("Blend failed, using centre frame")
		diag.Publish(b.opts.Events, diag.EventBlendFailed, map[string]any{
			"frame": k, "centre": centre, "error": err.Error(),
		})
		f, err = b.src.Frame(ctx, centre)
		if err != nil {
			return nil, err
		}
		return f.WithIndex(k), nil
	}

	if b.opts.Metrics != nil {
		b.opts.Metrics.FramesBlended.Add(1)
	}
	f.Index = k
	if b.opts.Debug {
		f = f.Annotate(fmt.Sprintf("blend %d frames, gamma %g", len(b.weights), b.opts.Gamma))
	}
	return f, nil
}

func (b *Blender) window(ctx context.Context, centre int) (*video.Frame, error) {
	half := len(b.weights) / 2
	last := b.src.Len() - 1
	frames := make([]*video.Frame, len(b.weights))
	for i := range frames {
		n := min(max(centre-half+i, 0), last)
		f, err := b.src.Frame(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("blend input %d: %w", n, err)
		}
		if i > 0 && !f.SameShape(frames[0]) {
			return nil, fmt.Errorf("blend input %d is %dx%d %s, window is %dx%d %s: %w",
				n, f.Width, f.Height, f.Format, frames[0].Width, frames[0].Height, frames[0].Format, diag.ErrInvalidArgument)
		}
		frames[i] = f
	}
	return Accumulate(frames, b.weights, b.opts.Gamma)
}

// Accumulate returns the weighted sum of frames. With gamma != 1 each sample
// is raised to gamma before summing and the sum is raised to 1/gamma.
func Accumulate(frames []*video.Frame, weights weighting.Weights, gamma float64) (*video.Frame, error) {
	if len(frames) == 0 || len(frames) != len(weights) {
		return nil, fmt.Errorf("%d frames for %d weights: %w", len(frames), len(weights), diag.ErrInvalidArgument)
	}
	first := frames[0]
	out := video.NewFrame(first.Width, first.Height, first.Format)
	out.Notes = frames[len(frames)/2].Notes
	linear := gamma == 1

	acc := make([]float64, first.Width*first.Height)
	for p := range out.Planes {
		clear(acc)
		for i, f := range frames {
			w := weights[i]
			if w == 0 {
				continue
			}
			for j, v := range f.Planes[p] {
				if linear {
					acc[j] += w * float64(v)
				} else {
					acc[j] += w * math.Pow(math.Max(float64(v), 0), gamma)
				}
			}
		}
		dst := out.Planes[p]
		for j, v := range acc {
			if !linear {
				v = math.Pow(v, 1/gamma)
			}
			dst[j] = float32(v)
		}
	}
	return out, nil
}
