// internal/video/source.go
package video

import (
	"context"
	"fmt"

	"blurengine/internal/diag"
)

// Source is an indexable, lazily produced sequence of frames.
// Implementations must be safe for concurrent Frame calls.
type Source interface {
	Len() int
	Rate() Rational
	Frame(ctx context.Context, n int) (*Frame, error)
}

// CheckIndex validates n against src.
func CheckIndex(src Source, n int) error {
	if n < 0 || n >= src.Len() {
		return fmt.Errorf("frame %d outside [0,%d): %w", n, src.Len(), diag.ErrInvalidArgument)
	}
	return nil
}

// FrameFunc produces frame n on demand.
type FrameFunc func(ctx context.Context, n int) (*Frame, error)

type lazySource struct {
	length int
	rate   Rational
	fn     FrameFunc
}

// NewLazy wraps fn as a Source of the given length and rate.
func NewLazy(length int, rate Rational, fn FrameFunc) Source {
	return &lazySource{length: length, rate: rate, fn: fn}
}

func (s *lazySource) Len() int       { return s.length }
func (s *lazySource) Rate() Rational { return s.rate }

func (s *lazySource) Frame(ctx context.Context, n int) (*Frame, error) {
	if err := CheckIndex(s, n); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fn(ctx, n)
	if err != nil {
		return nil, err
	}
	return f.WithIndex(n), nil
}

// NewClip builds an in-memory Source from already decoded frames.
func NewClip(rate Rational, frames ...*Frame) Source {
	return NewLazy(len(frames), rate, func(_ context.Context, n int) (*Frame, error) {
		return frames[n], nil
	})
}

type sliceSource struct {
	src      Source
	from, to int
}

// Slice returns frames [from, to) of src without materialising them.
func Slice(src Source, from, to int) (Source, error) {
	if from < 0 || to > src.Len() || from > to {
		return nil, fmt.Errorf("slice [%d,%d) of %d frames: %w", from, to, src.Len(), diag.ErrInvalidArgument)
	}
	return &sliceSource{src: src, from: from, to: to}, nil
}

func (s *sliceSource) Len() int       { return s.to - s.from }
func (s *sliceSource) Rate() Rational { return s.src.Rate() }

func (s *sliceSource) Frame(ctx context.Context, n int) (*Frame, error) {
	if err := CheckIndex(s, n); err != nil {
		return nil, err
	}
	f, err := s.src.Frame(ctx, s.from+n)
	if err != nil {
		return nil, err
	}
	return f.WithIndex(n), nil
}

type concatSource struct {
	a, b Source
}

// Concat joins a and b with contiguous indexing. Both must declare the same
// rate; relabel b with AssumeRate first when they differ.
func Concat(a, b Source) (Source, error) {
	if a.Rate() != b.Rate() {
		return nil, fmt.Errorf("concat rates %s and %s differ: %w", a.Rate(), b.Rate(), diag.ErrInvalidArgument)
	}
	return &concatSource{a: a, b: b}, nil
}

func (s *concatSource) Len() int       { return s.a.Len() + s.b.Len() }
func (s *concatSource) Rate() Rational { return s.a.Rate() }

func (s *concatSource) Frame(ctx context.Context, n int) (*Frame, error) {
	if err := CheckIndex(s, n); err != nil {
		return nil, err
	}
	var (
		f   *Frame
		err error
	)
	if n < s.a.Len() {
		f, err = s.a.Frame(ctx, n)
	} else {
		f, err = s.b.Frame(ctx, n-s.a.Len())
	}
	if err != nil {
		return nil, err
	}
	return f.WithIndex(n), nil
}

type rateSource struct {
	Source
	rate Rational
}

// AssumeRate relabels src with rate without touching frames.
func AssumeRate(src Source, rate Rational) (Source, error) {
	if !rate.Positive() {
		return nil, fmt.Errorf("rate %s: %w", rate, diag.ErrInvalidArgument)
	}
	if rs, ok := src.(*rateSource); ok {
		src = rs.Source
	}
	return &rateSource{Source: src, rate: rate}, nil
}

func (s *rateSource) Rate() Rational { return s.rate }
