// internal/weighting/weighting.go
package weighting

import (
	"fmt"
	"math"
	"sort"

	"blurengine/internal/diag"
)

// Weights is a normalised blend weight vector.
type Weights []float64

// Kind names a weighting shape.
type Kind string

const (
	Equal           Kind = "equal"
	Ascending       Kind = "ascending"
	Descending      Kind = "descending"
	Gaussian        Kind = "gaussian"
	GaussianReverse Kind = "gaussian_reverse"
	GaussianSym     Kind = "gaussian_sym"
	Pyramid         Kind = "pyramid"
	PyramidSym      Kind = "pyramid_sym"
	Vegas           Kind = "vegas"
	CustomWeight    Kind = "custom_weight"
	CustomFunction  Kind = "custom_function"
)

// Shape selects a weighting curve and its parameters. Fields that do not
// apply to Kind are ignored.
type Shape struct {
	Kind Kind

	// Gaussian parameters. Bound is mapped linearly onto the indices.
	Mean   float64
	StdDev float64
	Bound  [2]float64

	// Reverse turns the pyramid into a valley (fall then rise).
	Reverse bool

	// Literal weights for CustomWeight. The list must match count unless
	// Stretch is set, in which case it is resampled by nearest index.
	Literal []float64
	Stretch bool

	// Function is evaluated once per index for CustomFunction.
	Function string
}

// DefaultShape returns the gaussian parameters used when a shape string
// names a gaussian kind without further configuration.
func DefaultShape(kind Kind) Shape {
	return Shape{
		Kind:   kind,
		Mean:   2,
		StdDev: 2,
		Bound:  [2]float64{0, 2},
	}
}

type generator func(count int, s Shape) ([]float64, error)

// shapes is the registry consulted by Generate.
var shapes = map[Kind]generator{
	Equal:           equal,
	Ascending:       ascending,
	Descending:      descending,
	Gaussian:        gaussian,
	GaussianReverse: gaussianReverse,
	GaussianSym:     gaussianSym,
	Pyramid:         pyramid,
	PyramidSym:      pyramidSym,
	Vegas:           vegas,
	CustomWeight:    customWeight,
	CustomFunction:  customFunction,
}

// Kinds lists the registered shape names in sorted order.
func Kinds() []string {
	names := make([]string, 0, len(shapes))
	for k := range shapes {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// Generate builds a weight vector of length count for shape and normalises
// it so that it sums to 1.
func Generate(count int, shape Shape) (Weights, error) {
	if count <= 0 {
		return nil, fmt.Errorf("weight count %d: %w", count, diag.ErrInvalidArgument)
	}
	gen, ok := shapes[shape.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown weighting %q: %w", shape.Kind, diag.ErrInvalidArgument)
	}
	raw, err := gen(count, shape)
	if err != nil {
		return nil, err
	}
	return normalize(raw)
}

// normalize divides by the raw sum. Negative, non-finite or all-zero
// vectors cannot be normalised.
func normalize(raw []float64) (Weights, error) {
	var total float64
	for i, w := range raw {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %d is %v: %w", i, w, diag.ErrInvalidWeightShape)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight %d is negative (%v): %w", i, w, diag.ErrInvalidWeightShape)
		}
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("weights sum to zero: %w", diag.ErrInvalidWeightShape)
	}
	out := make(Weights, len(raw))
	for i, w := range raw {
		out[i] = w / total
	}
	return out, nil
}

// scaleRange returns n evenly spaced values from start to end inclusive.
func scaleRange(n int, start, end float64) []float64 {
	out := make([]float64, n)
	if n <= 1 {
		for i := range out {
			out[i] = start
		}
		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func equal(count int, _ Shape) ([]float64, error) {
	raw := make([]float64, count)
	for i := range raw {
		raw[i] = 1
	}
	return raw, nil
}

func ascending(count int, _ Shape) ([]float64, error) {
	raw := make([]float64, count)
	for i := range raw {
		raw[i] = float64(i + 1)
	}
	return raw, nil
}

func descending(count int, _ Shape) ([]float64, error) {
	raw := make([]float64, count)
	for i := range raw {
		raw[i] = float64(count - i)
	}
	return raw, nil
}

func gaussian(count int, s Shape) ([]float64, error) {
	if s.Bound[0] == s.Bound[1] {
		return nil, fmt.Errorf("gaussian bound must have two distinct values: %w", diag.ErrInvalidArgument)
	}
	if s.StdDev <= 0 {
		return nil, fmt.Errorf("gaussian std dev %v: %w", s.StdDev, diag.ErrInvalidArgument)
	}
	xs := scaleRange(count, s.Bound[0], s.Bound[1])
	denom := 2 * s.StdDev * s.StdDev
	raw := make([]float64, count)
	for i, x := range xs {
		d := x - s.Mean
		raw[i] = math.Exp(-d * d / denom)
	}
	return raw, nil
}

func gaussianReverse(count int, s Shape) ([]float64, error) {
	raw, err := gaussian(count, s)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	return raw, nil
}

// gaussianSym mirrors the bound around zero and centres the mean there.
func gaussianSym(count int, s Shape) ([]float64, error) {
	m := math.Max(math.Abs(s.Bound[0]), math.Abs(s.Bound[1]))
	if m == 0 {
		return nil, fmt.Errorf("gaussian bound must not be [0, 0]: %w", diag.ErrInvalidArgument)
	}
	s.Mean = 0
	s.Bound = [2]float64{-m, m}
	raw, err := gaussian(count, s)
	if err != nil {
		return nil, err
	}
	// scaleRange accumulates rounding error; fold so the vector is an exact palindrome.
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		avg := (raw[i] + raw[j]) / 2
		raw[i], raw[j] = avg, avg
	}
	return raw, nil
}

func pyramid(count int, s Shape) ([]float64, error) {
	half := float64(count-1) / 2
	raw := make([]float64, count)
	for i := range raw {
		dist := math.Abs(float64(i) - half)
		if s.Reverse {
			raw[i] = dist + 1
		} else {
			raw[i] = half - dist + 1
		}
	}
	return raw, nil
}

// pyramidSym always peaks in the centre, whatever Reverse says.
func pyramidSym(count int, s Shape) ([]float64, error) {
	s.Reverse = false
	return pyramid(count, s)
}

// vegas weights the two outer frames half as much as the inner ones for
// even counts and is flat for odd counts.
func vegas(count int, _ Shape) ([]float64, error) {
	raw := make([]float64, count)
	for i := range raw {
		raw[i] = 1
	}
	if count%2 == 0 {
		for i := 1; i < count-1; i++ {
			raw[i] = 2
		}
	}
	return raw, nil
}

func customWeight(count int, s Shape) ([]float64, error) {
	if len(s.Literal) == 0 {
		return nil, fmt.Errorf("custom weights are empty: %w", diag.ErrInvalidArgument)
	}
	if !s.Stretch {
		if len(s.Literal) != count {
			return nil, fmt.Errorf("custom weights have %d entries, want %d: %w", len(s.Literal), count, diag.ErrInvalidArgument)
		}
		return append([]float64(nil), s.Literal...), nil
	}
	idx := scaleRange(count, 0, float64(len(s.Literal))-0.1)
	raw := make([]float64, count)
	for i, x := range idx {
		raw[i] = s.Literal[int(x)]
	}
	return raw, nil
}
