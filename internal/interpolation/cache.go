// internal/interpolation/cache.go
package interpolation

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"blurengine/internal/diag"
	"blurengine/internal/video"
)

// Run is a gap between two anchor frames. Frames strictly between
// LastGood and NextGood are synthesized.
type Run struct {
	LastGood int
	NextGood int
}

// Count is the number of frames to synthesize.
func (r Run) Count() int { return r.NextGood - r.LastGood - 1 }

// Contains reports whether n lies strictly inside the run.
func (r Run) Contains(n int) bool { return n > r.LastGood && n < r.NextGood }

func (r Run) String() string {
	return "[" + strconv.Itoa(r.LastGood) + "," + strconv.Itoa(r.NextGood) + "]"
}

// Window is the result of interpolating one run. A failed run keeps its
// error so the run is not retried for every frame inside it.
type Window struct {
	Run    Run
	Frames []*video.Frame
	Err    error
}

// Frame returns the synthesized frame for source index n.
func (w *Window) Frame(n int) (*video.Frame, bool) {
	if w == nil || w.Err != nil || !w.Run.Contains(n) {
		return nil, false
	}
	return w.Frames[n-w.Run.LastGood-1], true
}

// Cache holds the windows of the most recently used runs of one stream.
// Concurrent Obtain calls for the same run share one backend call; calls
// for different runs proceed independently.
type Cache struct {
	group    singleflight.Group
	metrics  *diag.Metrics
	capacity int

	mu    sync.Mutex
	slots []*Window // most recently used first
}

// NewCache returns an empty single-slot cache. metrics may be nil.
func NewCache(metrics *diag.Metrics) *Cache {
	return NewBoundedCache(metrics, 1)
}

// NewBoundedCache returns an empty cache keeping up to capacity windows.
// The least recently used window is evicted first.
func NewBoundedCache(metrics *diag.Metrics, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{metrics: metrics, capacity: capacity}
}

// Obtain returns the window for run, interpolating it with backend when it
// is not cached. The returned error is the window's error.
func (c *Cache) Obtain(ctx context.Context, src video.Source, run Run, backend Backend) (*Window, error) {
	if run.Count() <= 0 || run.LastGood < 0 || run.NextGood >= src.Len() {
		return nil, fmt.Errorf("run %s in %d frames: %w", run, src.Len(), diag.ErrInvalidArgument)
	}
	if w := c.cached(run); w != nil {
		return w, w.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(run.String(), func() (any, error) {
		if w := c.cached(run); w != nil {
			return w, nil
		}
		// The call is shared by every waiter, so one caller giving up must not abort it.
		w := c.interpolate(context.WithoutCancel(ctx), src, run, backend)
		c.store(w)
		return w, nil
	})
	select {
	case res := <-ch:
		w := res.Val.(*Window)
		return w, w.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Lookup returns a cached window that strictly contains n.
func (c *Cache) Lookup(n int) (*Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.slots {
		if w.Run.Contains(n) {
			return w, true
		}
	}
	return nil, false
}

// Len returns the number of cached windows.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Invalidate drops every cached window.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.slots = nil
	c.mu.Unlock()
}

// InvalidateOutside drops the cached windows whose run, anchors included,
// does not cover n.
func (c *Cache) InvalidateOutside(n int) {
	c.mu.Lock()
	kept := c.slots[:0]
	for _, w := range c.slots {
		if n >= w.Run.LastGood && n <= w.Run.NextGood {
			kept = append(kept, w)
		}
	}
	c.slots = kept
	c.mu.Unlock()
}

// cached returns the window for run and marks it most recently used.
func (c *Cache) cached(run Run) *Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.slots {
		if w.Run == run {
			copy(c.slots[1:i+1], c.slots[:i])
			c.slots[0] = w
			return w
		}
	}
	return nil
}

func (c *Cache) store(w *Window) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slots := make([]*Window, 0, c.capacity)
	slots = append(slots, w)
	for _, old := range c.slots {
		if len(slots) == c.capacity {
			break
		}
		if old.Run != w.Run {
			slots = append(slots, old)
		}
	}
	c.slots = slots
}

func (c *Cache) interpolate(ctx context.Context, src video.Source, run Run, backend Backend) *Window {
	w := &Window{Run: run}
	fail := func(err error) *Window {
		w.Err = fmt.Errorf("interpolate run %s with %s: %w: %w", run, backend.Name(), diag.ErrInterpolationFailure, err)
		return w
	}

	first, err := src.Frame(ctx, run.LastGood)
	if err != nil {
		return fail(err)
	}
	last, err := src.Frame(ctx, run.NextGood)
	if err != nil {
		return fail(err)
	}

	if c.metrics != nil {
		c.metrics.BackendCalls.Add(1)
	}
	req := backend.Requirements()
	count := run.Count()
	frames, err := video.WithFormat([]*video.Frame{first, last}, req.Format, func(in []*video.Frame) ([]*video.Frame, error) {
		out, err := backend.Interpolate(ctx, Anchors{First: in[0], Last: in[1]}, count)
		if err != nil {
			return nil, err
		}
		if req.LeadingEcho {
			if len(out) < count+1 {
				return nil, fmt.Errorf("backend returned %d frames, want at least %d", len(out), count+1)
			}
			out = out[1 : 1+count]
		}
		if len(out) != count {
			return nil, fmt.Errorf("backend returned %d frames, want %d", len(out), count)
		}
		return out, nil
	})
	if err != nil {
		return fail(err)
	}

	w.Frames = make([]*video.Frame, len(frames))
	for i, f := range frames {
		w.Frames[i] = f.WithIndex(run.LastGood + 1 + i)
	}
	return w
}
