package dedup

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"blurengine/internal/diag"
	"blurengine/internal/interpolation"
	"blurengine/internal/video"
)

// fakeBackend wraps the crossfade backend and records every call.
type fakeBackend struct {
	mu     sync.Mutex
	counts []int
	err    error
	gate   chan struct{}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Requirements() interpolation.Requirements {
	return interpolation.NewCrossfade().Requirements()
}

func (b *fakeBackend) Interpolate(ctx context.Context, anchors interpolation.Anchors, count int) ([]*video.Frame, error) {
	b.mu.Lock()
	b.counts = append(b.counts, count)
	b.mu.Unlock()
	if b.gate != nil {
		<-b.gate
	}
	if b.err != nil {
		return nil, b.err
	}
	return interpolation.NewCrossfade().Interpolate(ctx, anchors, count)
}

func (b *fakeBackend) calls() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.counts...)
}

// clip builds a 1x1 gray source from sample values.
func clip(values ...float32) video.Source {
	frames := make([]*video.Frame, len(values))
	for i, v := range values {
		frames[i] = video.Filled(1, 1, video.Gray, v)
	}
	return video.NewClip(video.R(30, 1), frames...)
}

// tenFrames is a still shot whose frame 5 changes, followed by a still tail.
func tenFrames() video.Source {
	return clip(0, 0.01, 0.01, 0.01, 0.01, 0.5, 0.5, 0.5, 0.5, 0.5)
}

func render(t *testing.T, src video.Source, order []int) []*video.Frame {
	t.Helper()
	out := make([]*video.Frame, src.Len())
	for _, n := range order {
		f, err := src.Frame(context.Background(), n)
		if err != nil {
			t.Fatalf("Frame(%d) failed: %v", n, err)
		}
		if f.Index != n {
			t.Errorf("Frame(%d) carries index %d", n, f.Index)
		}
		out[n] = f
	}
	return out
}

func ascending(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// TestSchedulerFillsRun tests the single still run of ten frames
func TestSchedulerFillsRun(t *testing.T) {
	expected := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.5, 0.5, 0.5, 0.5}

	orders := map[string][]int{
		"Ascending":  ascending(10),
		"Descending": {9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
		"Shuffled":   {7, 3, 0, 9, 1, 5, 4, 8, 2, 6},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{}
			events := make(chan diag.Event, 16)
			metrics := &diag.Metrics{}
			s, err := New(tenFrames(), backend, Options{Threshold: 0.1, Events: events, Metrics: metrics})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if s.Len() != 10 || s.Rate() != video.R(30, 1) {
				t.Errorf("Scheduler changed the stream shape: %d frames at %s", s.Len(), s.Rate())
			}

			frames := render(t, s, order)
			for n, f := range frames {
				if math.Abs(float64(f.Planes[0][0])-expected[n]) > 1e-6 {
					t.Errorf("Frame %d = %v, want %v", n, f.Planes[0][0], expected[n])
				}
			}

			calls := backend.calls()
			if len(calls) != 1 || calls[0] != 4 {
				t.Errorf("Expected a single backend call for 4 frames, got %v", calls)
			}
			if got := metrics.FramesInterpolated.Load(); got != 4 {
				t.Errorf("FramesInterpolated = %d, want 4", got)
			}
			if got := metrics.FramesPassed.Load(); got != 6 {
				t.Errorf("FramesPassed = %d, want 6", got)
			}

			close(events)
			seen := map[diag.EventType]int{}
			for ev := range events {
				seen[ev.Type]++
			}
			if seen[diag.EventRunInterpolated] != 1 || seen[diag.EventRunUnfilled] != 1 {
				t.Errorf("Unexpected events %v", seen)
			}
		})
	}
}

// TestSchedulerMaxFrames tests that long runs are cut into bounded segments
func TestSchedulerMaxFrames(t *testing.T) {
	src := clip(0, 0, 0, 0, 0, 0, 0, 1)

	t.Run("Capped Segments", func(t *testing.T) {
		backend := &fakeBackend{}
		s, err := New(src, backend, Options{Threshold: 0.1, MaxFrames: 2})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		render(t, s, ascending(8))

		calls := backend.calls()
		if len(calls) != 3 {
			t.Fatalf("Expected 3 segments, got %v", calls)
		}
		for _, c := range calls {
			if c > 2 {
				t.Errorf("Segment synthesized %d frames, more than the cap", c)
			}
		}
	})

	t.Run("Same Segments In Any Order", func(t *testing.T) {
		backend := &fakeBackend{}
		s, _ := New(src, backend, Options{Threshold: 0.1, MaxFrames: 2})
		render(t, s, []int{5, 1, 3, 6, 0, 2, 4, 7})
		if len(backend.calls()) != 3 {
			t.Errorf("Expected 3 segments, got %v", backend.calls())
		}
	})

	t.Run("Unbounded", func(t *testing.T) {
		backend := &fakeBackend{}
		s, _ := New(src, backend, Options{Threshold: 0.1, MaxFrames: -1})
		render(t, s, ascending(8))
		if calls := backend.calls(); len(calls) != 1 || calls[0] != 6 {
			t.Errorf("Expected one call for 6 frames, got %v", calls)
		}
	})
}

// TestSchedulerEndOfStream tests that a trailing run is left unfilled
func TestSchedulerEndOfStream(t *testing.T) {
	backend := &fakeBackend{}
	s, err := New(clip(0, 1, 1, 1, 1), backend, Options{Threshold: 0.1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for n, f := range render(t, s, ascending(5)) {
		want := float32(1)
		if n == 0 {
			want = 0
		}
		if f.Planes[0][0] != want {
			t.Errorf("Frame %d = %v, want %v", n, f.Planes[0][0], want)
		}
	}
	if len(backend.calls()) != 0 {
		t.Errorf("No backend call expected without a closing anchor, got %v", backend.calls())
	}
}

// TestSchedulerThresholdTie tests that a metric equal to the threshold counts as new
func TestSchedulerThresholdTie(t *testing.T) {
	backend := &fakeBackend{}
	s, _ := New(clip(0, 0.5, 0.5, 1), backend, Options{Threshold: 0.5})
	frames := render(t, s, ascending(4))
	if frames[1].Planes[0][0] != 0.5 {
		t.Errorf("Frame 1 should pass through, got %v", frames[1].Planes[0][0])
	}
	if calls := backend.calls(); len(calls) != 1 || calls[0] != 1 {
		t.Errorf("Expected only frame 2 to be filled, got %v", calls)
	}
}

// TestSchedulerConcurrent tests that concurrent requests inside one run share a backend call
func TestSchedulerConcurrent(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	s, _ := New(tenFrames(), backend, Options{Threshold: 0.1})

	results := make([]*video.Frame, 2)
	var wg sync.WaitGroup
	for i, n := range []int{2, 3} {
		wg.Add(1)
		go func(i, n int) {
			defer wg.Done()
			f, err := s.Frame(context.Background(), n)
			if err != nil {
				t.Errorf("Frame(%d) failed: %v", n, err)
				return
			}
			results[i] = f
		}(i, n)
	}
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	if calls := backend.calls(); len(calls) != 1 {
		t.Fatalf("Expected one backend call, got %v", calls)
	}
	if math.Abs(float64(results[0].Planes[0][0])-0.2) > 1e-6 || math.Abs(float64(results[1].Planes[0][0])-0.3) > 1e-6 {
		t.Errorf("Workers observed inconsistent frames %v and %v", results[0].Planes[0][0], results[1].Planes[0][0])
	}
}

// TestSchedulerReportsEachRunOnce tests run reporting over a long stream of short runs
func TestSchedulerReportsEachRunOnce(t *testing.T) {
	values := make([]float32, 200)
	for i := range values {
		values[i] = float32(i/2) / 100
	}
	events := make(chan diag.Event, 256)
	s, err := New(clip(values...), &fakeBackend{}, Options{Threshold: 0.005, Events: events})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Every frame twice, as a blur window would request them.
	for n := 0; n < len(values); n++ {
		for _, m := range []int{n, max(n-1, 0)} {
			if _, err := s.Frame(context.Background(), m); err != nil {
				t.Fatalf("Frame(%d) failed: %v", m, err)
			}
		}
	}

	counts := map[diag.EventType]int{}
	for len(events) > 0 {
		counts[(<-events).Type]++
	}
	if counts[diag.EventRunInterpolated] != 99 || counts[diag.EventRunUnfilled] != 1 {
		t.Errorf("Expected 99 filled runs and 1 unfilled run, got %v", counts)
	}
	if len(s.reported) > reportMemory {
		t.Errorf("Remembered %d reported runs, want at most %d", len(s.reported), reportMemory)
	}
}

// TestSchedulerFailure tests that a failed run degrades to pass-through
func TestSchedulerFailure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("device lost")}
	events := make(chan diag.Event, 16)
	metrics := &diag.Metrics{}
	src := tenFrames()
	s, _ := New(src, backend, Options{Threshold: 0.1, Events: events, Metrics: metrics})

	frames := render(t, s, ascending(10))
	for n, f := range frames {
		orig, _ := src.Frame(context.Background(), n)
		if f.Planes[0][0] != orig.Planes[0][0] {
			t.Errorf("Frame %d = %v, want source value %v", n, f.Planes[0][0], orig.Planes[0][0])
		}
	}
	if len(backend.calls()) != 1 {
		t.Errorf("Failed run was retried: %v", backend.calls())
	}
	if metrics.ContainedFailures.Load() != 1 {
		t.Errorf("ContainedFailures = %d, want 1", metrics.ContainedFailures.Load())
	}

	close(events)
	failures := 0
	for ev := range events {
		if ev.Type == diag.EventInterpolationFailed {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("Expected one failure event, got %d", failures)
	}
}

// TestSchedulerDebugNotes tests the overlay annotations
func TestSchedulerDebugNotes(t *testing.T) {
	t.Run("Enabled", func(t *testing.T) {
		s, _ := New(tenFrames(), &fakeBackend{}, Options{Threshold: 0.1, Debug: true})
		frames := render(t, s, ascending(10))
		if got := frames[2].Notes; len(got) != 1 || got[0] != "duplicate, 4 gap, diff: 0.0000" {
			t.Errorf("Frame 2 notes = %q", got)
		}
		if got := frames[1].Notes; len(got) != 1 || got[0] != "duplicate, 4 gap, diff: 0.0100" {
			t.Errorf("Frame 1 notes = %q", got)
		}
		if len(frames[5].Notes) != 0 {
			t.Errorf("Pass-through frame annotated: %q", frames[5].Notes)
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		s, _ := New(tenFrames(), &fakeBackend{}, Options{Threshold: 0.1})
		for n, f := range render(t, s, ascending(10)) {
			if len(f.Notes) != 0 {
				t.Errorf("Frame %d annotated without debug: %q", n, f.Notes)
			}
		}
	})
}

// TestSchedulerPairMethod tests filling each duplicate from its neighbours
func TestSchedulerPairMethod(t *testing.T) {
	backend := &fakeBackend{}
	s, err := New(clip(0, 0.05, 0.1, 0.15, 0.2), backend, Options{Threshold: 0.5, Method: MethodPair, Debug: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	frames := render(t, s, ascending(5))

	if calls := backend.calls(); len(calls) != 3 {
		t.Errorf("Expected one call per interior duplicate, got %v", calls)
	}
	for _, c := range backend.calls() {
		if c != 1 {
			t.Errorf("Pair method requested %d frames", c)
		}
	}
	if got := frames[2].Notes; len(got) != 1 || got[0] != "interpolated, diff: 0.050" {
		t.Errorf("Frame 2 notes = %q", got)
	}
	if len(frames[4].Notes) != 0 {
		t.Error("Last frame has no right neighbour and must pass through")
	}
}

// TestNewValidation tests eager option validation
func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		backend interpolation.Backend
		opts    Options
	}{
		{"Negative Threshold", &fakeBackend{}, Options{Threshold: -0.1}},
		{"NaN Threshold", &fakeBackend{}, Options{Threshold: math.NaN()}},
		{"Unknown Method", &fakeBackend{}, Options{Threshold: 0.1, Method: "newest"}},
		{"Missing Backend", nil, Options{Threshold: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tenFrames(), tt.backend, tt.opts); !errors.Is(err, diag.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
