// internal/probe/probe.go
package probe

import (
	"context"
	"fmt"
	"math"
	"sync"

	"blurengine/internal/diag"
	"blurengine/internal/video"
)

// Probe computes the dissimilarity of each frame against its predecessor.
// Computed metrics are cached, so repeated scans over the same run only
// decode each frame pair once. Safe for concurrent use.
type Probe struct {
	src video.Source

	mu    sync.Mutex
	cache map[int]float64
}

// New returns a Probe over src.
func New(src video.Source) *Probe {
	return &Probe{src: src, cache: make(map[int]float64)}
}

// Len returns the number of frames that can be probed.
func (p *Probe) Len() int { return p.src.Len() }

// Metric returns the mean absolute difference in [0,1] between frame n and
// frame n-1 over every plane. Frame 0 is compared with itself and yields 0.
func (p *Probe) Metric(ctx context.Context, n int) (float64, error) {
	if err := video.CheckIndex(p.src, n); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	p.mu.Lock()
	v, ok := p.cache[n]
	p.mu.Unlock()
	if ok {
		return v, nil
	}

	prev, err := p.src.Frame(ctx, n-1)
	if err != nil {
		return 0, fmt.Errorf("probe frame %d: %w", n-1, err)
	}
	cur, err := p.src.Frame(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("probe frame %d: %w", n, err)
	}
	v, err = Difference(prev, cur)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.cache[n] = v
	p.mu.Unlock()
	return v, nil
}

// Difference returns the mean absolute sample difference of a and b.
func Difference(a, b *video.Frame) (float64, error) {
	if !a.SameShape(b) {
		return 0, fmt.Errorf("cannot compare %dx%d %s with %dx%d %s: %w",
			a.Width, a.Height, a.Format, b.Width, b.Height, b.Format, diag.ErrInvalidArgument)
	}
	var (
		total float64
		count int
	)
	for p := range a.Planes {
		pa, pb := a.Planes[p], b.Planes[p]
		for i := range pa {
			total += math.Abs(float64(pa[i] - pb[i]))
		}
		count += len(pa)
	}
	if count == 0 {
		return 0, nil
	}
	return total / float64(count), nil
}
