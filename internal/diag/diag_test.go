package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
)

// TestClassify tests error code mapping through wrapped errors
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "Nil", err: nil, want: CodeUnknown},
		{name: "Invalid Argument", err: fmt.Errorf("threshold: %w", ErrInvalidArgument), want: CodeInvalidArgument},
		{name: "Model Not Found", err: fmt.Errorf("rife-v9: %w", ErrModelNotFound), want: CodeModelNotFound},
		{name: "Interpolation Failure", err: fmt.Errorf("run 3..9: %w", ErrInterpolationFailure), want: CodeInterpolationFailure},
		{name: "Weight Shape", err: fmt.Errorf("sum 0: %w", ErrInvalidWeightShape), want: CodeInvalidWeightShape},
		{name: "Cancelled", err: fmt.Errorf("frame 4: %w", context.Canceled), want: CodeCancel},
		{name: "Deadline", err: context.DeadlineExceeded, want: CodeCancel},
		{name: "Path Error", err: &os.PathError{Op: "open", Path: "frame.png", Err: os.ErrNotExist}, want: CodeIO},
		{name: "Other", err: fmt.Errorf("boom"), want: CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

// TestPublish tests that publishing never blocks
func TestPublish(t *testing.T) {
	t.Run("Nil Channel", func(t *testing.T) {
		Publish(nil, EventRunUnfilled, nil)
	})

	t.Run("Full Channel Drops", func(t *testing.T) {
		ch := make(chan Event, 1)
		Publish(ch, EventRunInterpolated, map[string]any{"last_good": 2})
		Publish(ch, EventRunUnfilled, nil)
		if len(ch) != 1 {
			t.Fatalf("Expected 1 queued event, got %d", len(ch))
		}
		ev := <-ch
		if ev.Type != EventRunInterpolated || ev.Metadata["last_good"] != 2 || ev.Timestamp.IsZero() {
			t.Errorf("Unexpected event %+v", ev)
		}
	})
}

// TestMetricsSnapshot tests counter snapshots
func TestMetricsSnapshot(t *testing.T) {
	var nilMetrics *Metrics
	if nilMetrics.Snapshot() != (Snapshot{}) {
		t.Error("A nil Metrics should snapshot as zero")
	}

	m := &Metrics{}
	m.FramesInterpolated.Add(3)
	m.ContainedFailures.Add(1)
	got := m.Snapshot()
	if got.FramesInterpolated != 3 || got.ContainedFailures != 1 || got.FramesPassed != 0 {
		t.Errorf("Snapshot() = %+v", got)
	}
}

// TestNewLogger tests level and format selection
func TestNewLogger(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
		log.Info().Msg("hidden")
		Contained(log, "dedup", fmt.Errorf("rife: %w", ErrInterpolationFailure)).Msg("run left unfilled")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("Expected only the warning, got %q", buf.String())
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
			t.Fatalf("Log line is not JSON: %v", err)
		}
		if entry["comp"] != "dedup" || entry["code"] != "interpolation_failure" || entry["session"] == "" {
			t.Errorf("Unexpected fields %v", entry)
		}
	})

	t.Run("Console", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(LogConfig{Level: "debug", Format: "console"}, &buf)
		log.Debug().Msg("stage built")
		if !strings.Contains(buf.String(), "stage built") || strings.HasPrefix(buf.String(), "{") {
			t.Errorf("Expected console output, got %q", buf.String())
		}
	})

	t.Run("Unknown Level", func(t *testing.T) {
		if ParseLevel("chatty").String() != "info" {
			t.Error("Unknown levels should fall back to info")
		}
	})
}
