// internal/interpolation/resample.go
package interpolation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"blurengine/internal/diag"
	"blurengine/internal/video"
)

// MaxPhaseDenominator bounds the number of distinct phases between two
// source frames in the frame-rate stage.
const MaxPhaseDenominator = 64

// ResampleOptions configures the whole-stream frame-rate stage.
type ResampleOptions struct {
	// Pairs is how many interpolated source pairs stay cached. Concurrent
	// renderers need about one per worker; zero keeps a single pair.
	Pairs   int
	Logger  zerolog.Logger
	Events  chan<- diag.Event
	Metrics *diag.Metrics
}

type resampled struct {
	src     video.Source
	phases  video.Source // src spread out so source frame i sits at i*b
	backend Backend
	cache   *Cache
	rate    video.Rational
	a, b    int64 // output frame j sits at source position j*a/b
	length  int
	opts    ResampleOptions
}

// Resample returns src re-timed to target, synthesizing the frames that
// fall between source frames with backend. A failed pair degrades to the
// earlier source frame.
func Resample(src video.Source, backend Backend, target video.Rational, opts ResampleOptions) (video.Source, error) {
	if !target.Positive() {
		return nil, fmt.Errorf("target rate %s: %w", target, diag.ErrInvalidArgument)
	}
	if backend == nil {
		return nil, fmt.Errorf("resample needs a backend: %w", diag.ErrInvalidArgument)
	}
	ratio, err := video.Approximate(src.Rate().Float64()/target.Float64(), MaxPhaseDenominator)
	if err != nil {
		return nil, err
	}
	if !ratio.Positive() {
		return nil, fmt.Errorf("rate ratio %s to %s: %w", src.Rate(), target, diag.ErrInvalidArgument)
	}

	b := ratio.Den
	length := 0
	phases := src
	if src.Len() > 0 {
		length = int(int64(src.Len()-1)*ratio.Den/ratio.Num) + 1
		phases = video.NewLazy((src.Len()-1)*int(b)+1, src.Rate(), func(ctx context.Context, n int) (*video.Frame, error) {
			return src.Frame(ctx, n/int(b))
		})
	}

	return &resampled{
		src:     src,
		phases:  phases,
		backend: backend,
		cache:   NewBoundedCache(opts.Metrics, opts.Pairs),
		rate:    target,
		a:       ratio.Num,
		b:       b,
		length:  length,
		opts:    opts,
	}, nil
}

func (r *resampled) Len() int             { return r.length }
func (r *resampled) Rate() video.Rational { return r.rate }

func (r *resampled) Frame(ctx context.Context, j int) (*video.Frame, error) {
	if err := video.CheckIndex(r, j); err != nil {
		return nil, err
	}
	pos := int64(j) * r.a
	i := int(pos / r.b)
	phase := int(pos % r.b)

	if phase == 0 || i+1 >= r.src.Len() {
		f, err := r.src.Frame(ctx, i)
		if err != nil {
			return nil, err
		}
		return f.WithIndex(j), nil
	}

	run := Run{LastGood: i * int(r.b), NextGood: (i + 1) * int(r.b)}
	w, err := r.cache.Obtain(ctx, r.phases, run, r.backend)
	if err != nil {
		if diag.Classify(err) == diag.CodeCancel {
			return nil, err
		}
		if r.opts.Metrics != nil {
			r.opts.Metrics.ContainedFailures.Add(1)
		}
		diag.Contained(r.opts.Logger, "resample", err).
			Int("frame", j).
			Int("source", i).
			Msg("Frame-rate interpolation failed, using source frame")
		diag.Publish(r.opts.Events, diag.EventResampleFailed, map[string]any{
			"frame": j, "source": i, "error": err.Error(),
		})
		f, ferr := r.src.Frame(ctx, i)
		if ferr != nil {
			return nil, ferr
		}
		return f.WithIndex(j), nil
	}

	f, _ := w.Frame(run.LastGood + phase)
	if r.opts.Metrics != nil {
		r.opts.Metrics.FramesInterpolated.Add(1)
	}
	return f.WithIndex(j), nil
}

// ParseTargetRate reads the interpolated fps setting: "5x" multiplies the
// source rate, anything else is an absolute rate such as "600" or "60000/1001".
func ParseTargetRate(s string, source video.Rational) (video.Rational, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if mult, ok := strings.CutSuffix(s, "x"); ok {
		m, err := strconv.ParseFloat(strings.TrimSpace(mult), 64)
		if err != nil || m <= 0 {
			return video.Rational{}, fmt.Errorf("invalid fps multiplier %q: %w", s, diag.ErrInvalidArgument)
		}
		factor, err := video.Approximate(m, video.MaxRateDenominator)
		if err != nil {
			return video.Rational{}, err
		}
		return source.Mul(factor, video.MaxRateDenominator), nil
	}
	rate, err := video.ParseRational(s)
	if err != nil {
		return video.Rational{}, err
	}
	if !rate.Positive() {
		return video.Rational{}, fmt.Errorf("interpolated fps %q must be positive: %w", s, diag.ErrInvalidArgument)
	}
	return rate, nil
}
