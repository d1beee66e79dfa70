package flap

import (
	"testing"
	"time"
)

func TestCountKeepsOnlyAttemptsInsideWindow(t *testing.T) {
	base := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	w := NewWindow(60 * time.Second)

	w.Record(base)
	w.Record(base.Add(30 * time.Second))
	w.Record(base.Add(70 * time.Second))

	// At t=80s the attempt at t=0 is 80s old and falls out; t=30 (50s old)
	// and t=70 (10s old) remain.
	if got := w.Count(base.Add(80 * time.Second)); got != 2 {
		t.Fatalf("count at t=80s = %d, want 2", got)
	}
	if got := w.Count(base.Add(200 * time.Second)); got != 0 {
		t.Fatalf("count at t=200s = %d, want 0", got)
	}
}

func TestCountBoundaryIsInclusive(t *testing.T) {
	base := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	w := NewWindow(60 * time.Second)
	w.Record(base)

	if got := w.Count(base.Add(60 * time.Second)); got != 1 {
		t.Fatalf("attempt exactly W old should still count, got %d", got)
	}
	if got := w.Count(base.Add(60*time.Second + time.Nanosecond)); got != 0 {
		t.Fatalf("attempt older than W should be pruned, got %d", got)
	}
}

func TestRecordPrunesBeforeAppending(t *testing.T) {
	base := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	w := NewWindow(time.Minute)
	for i := 0; i < 50; i++ {
		w.Record(base.Add(time.Duration(i) * 10 * time.Minute))
		if len(w.attempts) != 1 {
			t.Fatalf("window retained %d attempts, want 1", len(w.attempts))
		}
	}
}

func TestReset(t *testing.T) {
	now := time.Now()
	w := NewWindow(time.Hour)
	w.Record(now)
	w.Record(now)
	w.Reset()
	if got := w.Count(now); got != 0 {
		t.Fatalf("count after reset = %d, want 0", got)
	}
}
