// internal/diag/errors.go
package diag

import (
	"context"
	"errors"
	"os"
)

// Error taxonomy shared by every stage. Stages wrap these with fmt.Errorf("...: %w").
var (
	// ErrInvalidArgument reports malformed shape, threshold, count or rate parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrModelNotFound reports an interpolation model that could not be resolved on disk.
	ErrModelNotFound = errors.New("model not found")
	// ErrInterpolationFailure reports a backend error or a synthesized frame count mismatch.
	ErrInterpolationFailure = errors.New("interpolation failure")
	// ErrInvalidWeightShape reports a weight vector that cannot be normalised.
	ErrInvalidWeightShape = errors.New("invalid weight shape")
)

// Code is a short error class used in log fields and metrics.
type Code string

const (
	CodeUnknown              Code = "unknown"
	CodeInvalidArgument      Code = "invalid_argument"
	CodeModelNotFound        Code = "model_not_found"
	CodeInterpolationFailure Code = "interpolation_failure"
	CodeInvalidWeightShape   Code = "invalid_weight_shape"
	CodeCancel               Code = "cancel"
	CodeIO                   Code = "io"
)

// Classify maps an error onto its Code using sentinel matching only.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrModelNotFound):
		return CodeModelNotFound
	case errors.Is(err, ErrInterpolationFailure):
		return CodeInterpolationFailure
	case errors.Is(err, ErrInvalidWeightShape):
		return CodeInvalidWeightShape
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

