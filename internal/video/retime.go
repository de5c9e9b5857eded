// internal/video/retime.go
package video

import (
	"fmt"

	"blurengine/internal/diag"
)

// Rescale multiplies the declared frame rate of src by factor. Frames are
// neither resampled nor dropped; the new rate is bounded to MaxRateDenominator
// so repeated rescales cannot grow the fraction without limit.
func Rescale(src Source, factor Rational) (Source, error) {
	if !factor.Positive() {
		return nil, fmt.Errorf("timescale factor %s: %w", factor, diag.ErrInvalidArgument)
	}
	return AssumeRate(src, src.Rate().Mul(factor, MaxRateDenominator))
}

// Timescale converts a float timescale setting into the rescale factor.
// An input timescale slows the stream down (rate / t); an output timescale
// speeds it up (rate * t).
func Timescale(t float64, input bool) (Rational, error) {
	if t <= 0 {
		return Rational{}, fmt.Errorf("timescale %v: %w", t, diag.ErrInvalidArgument)
	}
	r, err := Approximate(t, MaxRateDenominator)
	if err != nil {
		return Rational{}, err
	}
	if input {
		return r.Inv()
	}
	return r, nil
}
