// internal/video/rational.go
package video

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"blurengine/internal/diag"
)

// MaxRateDenominator bounds the denominator of frame rates produced by Rescale.
const MaxRateDenominator = 1001 * 1000

// Rational is a reduced fraction with a positive denominator.
type Rational struct {
	Num int64
	Den int64
}

// NewRational reduces num/den. A zero denominator is an invalid argument.
func NewRational(num, den int64) (Rational, error) {
	if den == 0 {
		return Rational{}, fmt.Errorf("rational %d/0: %w", num, diag.ErrInvalidArgument)
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs64(num), den)
	if g == 0 {
		g = 1
	}
	return Rational{Num: num / g, Den: den / g}, nil
}

// R is NewRational for literals known to be valid; it panics on a zero denominator.
func R(num, den int64) Rational {
	r, err := NewRational(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// Float64 returns the value as a float.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Positive reports whether r is a usable rate or factor.
func (r Rational) Positive() bool { return r.Den > 0 && r.Num > 0 }

// Inv returns 1/r.
func (r Rational) Inv() (Rational, error) {
	return NewRational(r.Den, r.Num)
}

// Mul multiplies exactly and then bounds the result to maxDen.
func (r Rational) Mul(o Rational, maxDen int64) Rational {
	x := new(big.Rat).SetFrac(big.NewInt(r.Num), big.NewInt(r.Den))
	x.Mul(x, new(big.Rat).SetFrac(big.NewInt(o.Num), big.NewInt(o.Den)))
	return limitDenominator(x, maxDen)
}

// Cmp compares r and o.
func (r Rational) Cmp(o Rational) int {
	a := new(big.Rat).SetFrac(big.NewInt(r.Num), big.NewInt(r.Den))
	b := new(big.Rat).SetFrac(big.NewInt(o.Num), big.NewInt(o.Den))
	return a.Cmp(b)
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Approximate returns the closest fraction to x whose denominator does not exceed maxDen.
func Approximate(x float64, maxDen int64) (Rational, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Rational{}, fmt.Errorf("cannot approximate %v: %w", x, diag.ErrInvalidArgument)
	}
	if maxDen < 1 {
		return Rational{}, fmt.Errorf("denominator ceiling %d: %w", maxDen, diag.ErrInvalidArgument)
	}
	return limitDenominator(new(big.Rat).SetFloat64(x), maxDen), nil
}

// ParseRational accepts "30000/1001", "60" or "59.94".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		d, err2 := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err1 != nil || err2 != nil {
			return Rational{}, fmt.Errorf("invalid rational %q: %w", s, diag.ErrInvalidArgument)
		}
		return NewRational(n, d)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, diag.ErrInvalidArgument)
	}
	return Approximate(v, MaxRateDenominator)
}

// limitDenominator walks the continued fraction of x and picks the best
// bounded approximation from the last two convergents.
func limitDenominator(x *big.Rat, maxDen int64) Rational {
	limit := big.NewInt(maxDen)
	if x.Denom().Cmp(limit) <= 0 {
		return Rational{Num: x.Num().Int64(), Den: x.Denom().Int64()}
	}

	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)
	n := new(big.Int).Set(x.Num())
	d := new(big.Int).Set(x.Denom())
	a, m := new(big.Int), new(big.Int)
	for {
		// Euclidean division with d > 0 is floor division.
		a.DivMod(n, d, m)
		q2 := new(big.Int).Add(q0, new(big.Int).Mul(a, q1))
		if q2.Cmp(limit) > 0 {
			break
		}
		p2 := new(big.Int).Add(p0, new(big.Int).Mul(a, p1))
		p0, q0, p1, q1 = p1, q1, p2, q2
		n, d = d, new(big.Int).Set(m)
		if d.Sign() == 0 {
			break
		}
	}

	k := new(big.Int).Sub(limit, q0)
	k.Quo(k, q1)
	b1 := new(big.Rat).SetFrac(
		new(big.Int).Add(p0, new(big.Int).Mul(k, p1)),
		new(big.Int).Add(q0, new(big.Int).Mul(k, q1)),
	)
	b2 := new(big.Rat).SetFrac(p1, q1)

	d1 := new(big.Rat).Abs(new(big.Rat).Sub(b1, x))
	d2 := new(big.Rat).Abs(new(big.Rat).Sub(b2, x))
	best := b2
	if d1.Cmp(d2) < 0 {
		best = b1
	}
	return Rational{Num: best.Num().Int64(), Den: best.Denom().Int64()}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
