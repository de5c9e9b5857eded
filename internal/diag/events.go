// internal/diag/events.go
package diag

import (
	"sync/atomic"
	"time"
)

// EventType identifies a notable stage action.
type EventType string

const (
	EventRunInterpolated     EventType = "RunInterpolated"
	EventRunUnfilled         EventType = "RunUnfilled"
	EventInterpolationFailed EventType = "InterpolationFailed"
	EventBlendFailed         EventType = "BlendFailed"
	EventResampleFailed      EventType = "ResampleFailed"
)

// Event is published on the optional event channel of a stage.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Metadata  map[string]any
}

// Publish sends ev without blocking; a full or nil channel drops the event.
func Publish(ch chan<- Event, typ EventType, metadata map[string]any) {
	if ch == nil {
		return
	}
	select {
	case ch <- Event{Type: typ, Timestamp: time.Now(), Metadata: metadata}:
	default:
	}
}

// Metrics counts stage activity. All fields are updated atomically.
type Metrics struct {
	FramesPassed       atomic.Uint64 // source frames emitted unchanged
	FramesInterpolated atomic.Uint64 // synthesized frames emitted
	FramesBlended      atomic.Uint64
	BackendCalls       atomic.Uint64
	ContainedFailures  atomic.Uint64 // failures degraded to pass-through
}

// Snapshot is a plain copy of Metrics for display.
type Snapshot struct {
	FramesPassed       uint64
	FramesInterpolated uint64
	FramesBlended      uint64
	BackendCalls       uint64
	ContainedFailures  uint64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		FramesPassed:       m.FramesPassed.Load(),
		FramesInterpolated: m.FramesInterpolated.Load(),
		FramesBlended:      m.FramesBlended.Load(),
		BackendCalls:       m.BackendCalls.Load(),
		ContainedFailures:  m.ContainedFailures.Load(),
	}
}
