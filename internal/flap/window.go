package flap

import "time"

// Window is a sliding-time-window counter of remediation attempts for one
// target. It is owned by that target's monitor goroutine and is never
// shared, so it needs no locking. Pruning is lazy: every Record and Count
// drops entries older than the window first, which keeps the slice bounded
// by the attempts that can fit inside the window.
type Window struct {
	span     time.Duration
	attempts []time.Time
}

func NewWindow(span time.Duration) *Window {
	return &Window{span: span}
}

// Record appends one attempt at now.
func (w *Window) Record(now time.Time) {
	w.Prune(now)
	w.attempts = append(w.attempts, now)
}

// Prune drops attempts older than the window relative to now.
func (w *Window) Prune(now time.Time) {
	cutoff := now.Add(-w.span)
	kept := w.attempts[:0]
	for _, t := range w.attempts {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	w.attempts = kept
}

// Count returns the number of attempts still inside the window at now.
func (w *Window) Count(now time.Time) int {
	w.Prune(now)
	return len(w.attempts)
}

// Reset discards all recorded attempts.
func (w *Window) Reset() {
	w.attempts = w.attempts[:0]
}

func (w *Window) Span() time.Duration { return w.span }
