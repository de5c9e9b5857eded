// internal/dedup/dedup.go
package dedup

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"blurengine/internal/diag"
	"blurengine/internal/interpolation"
	"blurengine/internal/probe"
	"blurengine/internal/video"
)

// Fill methods. MethodRun interpolates a whole duplicate run from its two
// dissimilar anchors in one backend call. MethodPair replaces each duplicate
// frame with the midpoint of its two neighbours.
const (
	MethodRun  = "new"
	MethodPair = "old"
)

// Options configures duplicate filling for one stream.
type Options struct {
	// Threshold is the difference metric at or above which a frame counts as new.
	Threshold float64
	// MaxFrames bounds the distance between the two anchors of a run. Zero or
	// negative means unbounded.
	MaxFrames int
	Method    string
	Debug     bool
	Logger    zerolog.Logger
	Events    chan<- diag.Event
	Metrics   *diag.Metrics
}

// Scheduler is a video.Source that replaces duplicate frames of src with
// frames synthesized by a backend. It keeps the length, rate and indexing of
// src and is safe for concurrent Frame calls in any order.
type Scheduler struct {
	src     video.Source
	backend interpolation.Backend
	probe   *probe.Probe
	cache   *interpolation.Cache
	opts    Options

	mu       sync.Mutex
	reported []interpolation.Run // most recent last, at most reportMemory
}

// reportMemory is how many recently reported runs are remembered. Requests
// arrive roughly in order, so older runs are not reported again.
const reportMemory = 16

// New validates opts and returns the scheduler over src.
func New(src video.Source, backend interpolation.Backend, opts Options) (*Scheduler, error) {
	if src == nil || backend == nil {
		return nil, fmt.Errorf("dedup needs a source and a backend: %w", diag.ErrInvalidArgument)
	}
	if math.IsNaN(opts.Threshold) || math.IsInf(opts.Threshold, 0) || opts.Threshold < 0 {
		return nil, fmt.Errorf("dedup threshold %v: %w", opts.Threshold, diag.ErrInvalidArgument)
	}
	switch opts.Method {
	case "":
		opts.Method = MethodRun
	case MethodRun, MethodPair:
	default:
		return nil, fmt.Errorf("dedup method %q (valid: %s, %s): %w", opts.Method, MethodRun, MethodPair, diag.ErrInvalidArgument)
	}
	if opts.MaxFrames < 0 {
		opts.MaxFrames = 0
	}
	return &Scheduler{
		src:      src,
		backend:  backend,
		probe:    probe.New(src),
		cache:    interpolation.NewCache(opts.Metrics),
		opts:     opts,
	}, nil
}

func (s *Scheduler) Len() int             { return s.src.Len() }
func (s *Scheduler) Rate() video.Rational { return s.src.Rate() }

// Frame returns frame n, synthesized when n is inside a duplicate run.
func (s *Scheduler) Frame(ctx context.Context, n int) (*video.Frame, error) {
	if err := video.CheckIndex(s, n); err != nil {
		return nil, err
	}
	if n == 0 {
		s.cache.InvalidateOutside(n)
		return s.pass(ctx, n)
	}
	metric, err := s.probe.Metric(ctx, n)
	if err != nil {
		return nil, err
	}
	if metric >= s.opts.Threshold {
		s.cache.InvalidateOutside(n)
		return s.pass(ctx, n)
	}

	if s.opts.Method == MethodPair {
		return s.fillPair(ctx, n, metric)
	}

	if w, ok := s.cache.Lookup(n); ok {
		return s.fromWindow(ctx, w, n, metric)
	}

	run, ok, err := s.discover(ctx, n)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.pass(ctx, n)
	}
	w, err := s.cache.Obtain(ctx, s.src, run, s.backend)
	if w == nil {
		return nil, err
	}
	s.report(run, err)
	return s.fromWindow(ctx, w, n, metric)
}

// discover finds the run around duplicate frame n. ok is false when n has
// to pass through: it is a segment anchor, or no dissimilar frame follows it.
func (s *Scheduler) discover(ctx context.Context, n int) (run interpolation.Run, ok bool, err error) {
	lastGood := n - 1
	for lastGood > 0 {
		m, err := s.probe.Metric(ctx, lastGood)
		if err != nil {
			return run, false, err
		}
		if m >= s.opts.Threshold {
			break
		}
		lastGood--
	}

	limit := s.src.Len()
	if seg := s.opts.MaxFrames; seg > 0 {
		// Long runs are split into segments of seg frames anchored at lastGood.
		lastGood += ((n - lastGood) / seg) * seg
		if lastGood == n {
			return run, false, nil
		}
		limit = min(limit, lastGood+seg+1)
	}

	for next := n + 1; next < limit; next++ {
		if s.opts.MaxFrames > 0 && next == lastGood+s.opts.MaxFrames {
			return interpolation.Run{LastGood: lastGood, NextGood: next}, true, nil
		}
		m, err := s.probe.Metric(ctx, next)
		if err != nil {
			return run, false, err
		}
		if m >= s.opts.Threshold {
			return interpolation.Run{LastGood: lastGood, NextGood: next}, true, nil
		}
	}

	s.once(interpolation.Run{LastGood: lastGood, NextGood: s.src.Len()}, func() {
		s.opts.Logger.Debug().
			Int("last_good", lastGood).
			Int("frames", s.src.Len()-lastGood-1).
			Msg("Duplicate run reaches the end of the stream, leaving it unfilled")
		diag.Publish(s.opts.Events, diag.EventRunUnfilled, map[string]any{
			"last_good": lastGood,
		})
	})
	return run, false, nil
}

// fillPair interpolates the single frame between n-1 and n+1.
func (s *Scheduler) fillPair(ctx context.Context, n int, metric float64) (*video.Frame, error) {
	if n+1 >= s.src.Len() {
		return s.pass(ctx, n)
	}
	run := interpolation.Run{LastGood: n - 1, NextGood: n + 1}
	w, err := s.cache.Obtain(ctx, s.src, run, s.backend)
	if w == nil {
		return nil, err
	}
	s.report(run, err)
	f, ok := w.Frame(n)
	if !ok {
		return s.pass(ctx, n)
	}
	s.countInterpolated()
	if s.opts.Debug {
		f = f.Annotate(fmt.Sprintf("interpolated, diff: %.3f", metric))
	}
	return f, nil
}

func (s *Scheduler) fromWindow(ctx context.Context, w *interpolation.Window, n int, metric float64) (*video.Frame, error) {
	f, ok := w.Frame(n)
	if !ok {
		// Failed run.
		return s.pass(ctx, n)
	}
	s.countInterpolated()
	if s.opts.Debug {
		f = f.Annotate(fmt.Sprintf("duplicate, %d gap, diff: %.4f", w.Run.Count(), metric))
	}
	return f, nil
}

func (s *Scheduler) pass(ctx context.Context, n int) (*video.Frame, error) {
	f, err := s.src.Frame(ctx, n)
	if err != nil {
		return nil, err
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.FramesPassed.Add(1)
	}
	return f, nil
}

func (s *Scheduler) countInterpolated() {
	if s.opts.Metrics != nil {
		s.opts.Metrics.FramesInterpolated.Add(1)
	}
}

// report logs the outcome of a run once, however many frames of it are requested.
func (s *Scheduler) report(run interpolation.Run, err error) {
	s.once(run, func() {
		if err != nil {
			if s.opts.Metrics != nil {
				s.opts.Metrics.ContainedFailures.Add(1)
			}
			diag.Contained(s.opts.Logger, "dedup", err).
				Stringer("run", run).
				Str("backend", s.backend.Name()).
				Msg("Interpolation failed, passing duplicate frames through")
			diag.Publish(s.opts.Events, diag.EventInterpolationFailed, map[string]any{
				"last_good": run.LastGood, "next_good": run.NextGood, "error": err.Error(),
			})
			return
		}
		s.opts.Logger.Debug().
			Stringer("run", run).
			Int("count", run.Count()).
			Msg("Filled duplicate run")
		diag.Publish(s.opts.Events, diag.EventRunInterpolated, map[string]any{
			"last_good": run.LastGood, "next_good": run.NextGood, "count": run.Count(),
		})
	})
}

func (s *Scheduler) once(run interpolation.Run, fn func()) {
	s.mu.Lock()
	for _, r := range s.reported {
		if r == run {
			s.mu.Unlock()
			return
		}
	}
	if len(s.reported) == reportMemory {
		s.reported = append(s.reported[:0], s.reported[1:]...)
	}
	s.reported = append(s.reported, run)
	s.mu.Unlock()
	fn()
}
