// internal/weighting/function.go
package weighting

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"blurengine/internal/diag"
)

// functionEnv is the variable and helper set visible to custom weighting
// expressions. x runs linearly over the shape bound, i is the index and n
// the weight count.
func functionEnv(x float64, i, n int) map[string]any {
	return map[string]any{
		"x":    x,
		"i":    float64(i),
		"n":    float64(n),
		"pi":   math.Pi,
		"e":    math.E,
		"exp":  math.Exp,
		"sqrt": math.Sqrt,
		"sin":  math.Sin,
		"cos":  math.Cos,
		"log":  math.Log,
		"pow":  math.Pow,
		"fabs": math.Abs,
	}
}

// CompileFunction checks that src is a valid weighting expression.
func CompileFunction(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(functionEnv(0, 0, 0)), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("weighting function %q: %v: %w", src, err, diag.ErrInvalidArgument)
	}
	return program, nil
}

func customFunction(count int, s Shape) ([]float64, error) {
	program, err := CompileFunction(s.Function)
	if err != nil {
		return nil, err
	}
	lo, hi := s.Bound[0], s.Bound[1]
	if lo == hi {
		lo, hi = 0, 1
	}
	xs := scaleRange(count, lo, hi)
	raw := make([]float64, count)
	for i, x := range xs {
		out, err := expr.Run(program, functionEnv(x, i, count))
		if err != nil {
			return nil, fmt.Errorf("weighting function at index %d: %v: %w", i, err, diag.ErrInvalidWeightShape)
		}
		v, ok := out.(float64)
		if !ok {
			return nil, fmt.Errorf("weighting function returned %T: %w", out, diag.ErrInvalidWeightShape)
		}
		raw[i] = v
	}
	return raw, nil
}

// ParseShape parses the config form of a weighting: a registered shape
// name, a literal list such as "[1, 2, 3]" or "1, 2, 3" (stretched onto
// the blend count), or any other string as a custom function of x, i and n.
// Gaussian parameters start from DefaultShape and are set by the caller.
func ParseShape(s string) (Shape, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Shape{}, fmt.Errorf("empty weighting: %w", diag.ErrInvalidArgument)
	}
	if _, ok := shapes[Kind(s)]; ok && Kind(s) != CustomWeight && Kind(s) != CustomFunction {
		return DefaultShape(Kind(s)), nil
	}

	if list, ok := parseLiteral(s); ok {
		shape := DefaultShape(CustomWeight)
		shape.Literal = list
		shape.Stretch = true
		return shape, nil
	}

	if _, err := CompileFunction(s); err != nil {
		return Shape{}, fmt.Errorf("weighting %q is not a shape name, weight list or function: %w", s, diag.ErrInvalidArgument)
	}
	shape := DefaultShape(CustomFunction)
	shape.Function = s
	return shape, nil
}

// parseLiteral reads a comma separated list of numbers, optionally
// wrapped in brackets.
func parseLiteral(s string) ([]float64, bool) {
	bracketed := strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
	if bracketed {
		s = s[1 : len(s)-1]
	}
	parts := strings.Split(s, ",")
	if len(parts) < 2 && !bracketed {
		// A single bare number is a constant function, not a list.
		return nil, false
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
