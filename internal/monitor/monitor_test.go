package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"vigil/internal/alert"
	"vigil/internal/models"
)

type scriptedProber struct {
	verdicts []models.Verdict
	calls    int
}

func (p *scriptedProber) Check(ctx context.Context, t models.Target) models.ProbeResult {
	v := models.Unhealthy
	if p.calls < len(p.verdicts) {
		v = p.verdicts[p.calls]
	}
	p.calls++
	res := models.ProbeResult{Verdict: v, TS: time.Now().UTC()}
	if v == models.Unhealthy {
		res.Diagnostic = "connection refused"
	}
	return res
}

type recordingAction struct {
	calls int
	err   error
}

func (a *recordingAction) Name() string { return "fake restart" }
func (a *recordingAction) Remediate(ctx context.Context, t models.Target) error {
	a.calls++
	return a.err
}

type memorySink struct {
	msgs []string
}

func (s *memorySink) Name() string { return "memory" }
func (s *memorySink) Send(ctx context.Context, msg string) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

type recordingEvents struct {
	statuses []models.TargetStatus
	changes  []models.StateChange
}

func (e *recordingEvents) PublishStatus(s models.TargetStatus) { e.statuses = append(e.statuses, s) }
func (e *recordingEvents) PublishChange(c models.StateChange)  { e.changes = append(e.changes, c) }

func testTarget(maxRestarts int) models.Target {
	return models.Target{
		Name:        "api",
		Probe:       "tcp",
		Address:     "127.0.0.1:9999",
		Interval:    10 * time.Millisecond,
		Timeout:     time.Second,
		Cooldown:    0,
		FlapWindow:  60 * time.Second,
		MaxRestarts: maxRestarts,
	}
}

func testMonitor(t models.Target, p *scriptedProber, a *recordingAction) (*Monitor, *memorySink, *recordingEvents) {
	sink := &memorySink{}
	events := &recordingEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := alert.NewDispatcher([]alert.Sink{sink}, logger)
	m := New(t, p, a, d, events, logger)
	return m, sink, events
}

func TestEscalatesAfterMaxRestartsInWindow(t *testing.T) {
	p := &scriptedProber{} // always unhealthy
	a := &recordingAction{}
	m, sink, events := testMonitor(testTarget(2), p, a)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.Tick(ctx)
		now = now.Add(10 * time.Second)
	}

	if a.calls != 2 {
		t.Fatalf("remediation issued %d times, want 2", a.calls)
	}
	if m.State() != models.StateEscalated {
		t.Fatalf("state = %s, want escalated", m.State())
	}
	if len(sink.msgs) != 1 {
		t.Fatalf("escalation alerts = %d, want 1", len(sink.msgs))
	}
	last := events.changes[len(events.changes)-1]
	if last.To != models.StateEscalated {
		t.Fatalf("last transition = %s -> %s, want escalated", last.From, last.To)
	}
}

func TestEscalatedMonitorNeverRemediatesAgain(t *testing.T) {
	p := &scriptedProber{}
	a := &recordingAction{}
	m, sink, _ := testMonitor(testTarget(1), p, a)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
		now = now.Add(10 * time.Second)
	}

	if m.State() != models.StateEscalated {
		t.Fatalf("state = %s, want escalated", m.State())
	}
	if a.calls != 1 {
		t.Fatalf("remediation issued %d times, want 1", a.calls)
	}
	if len(sink.msgs) != 1 {
		t.Fatalf("escalation alerts = %d, want exactly 1", len(sink.msgs))
	}
}

func TestRecoveryResetsStateButNotWindow(t *testing.T) {
	// Unhealthy (remediate, still unhealthy), healthy, unhealthy again
	// inside the window: the earlier attempt still counts, so the second
	// failure escalates with no further remediation.
	p := &scriptedProber{verdicts: []models.Verdict{
		models.Unhealthy, models.Unhealthy, // tick 1: probe + verify
		models.Healthy,  // tick 2
		models.Unhealthy, // tick 3
	}}
	a := &recordingAction{}
	m, sink, _ := testMonitor(testTarget(1), p, a)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Tick(ctx)
	if m.State() != models.StateRetrying {
		t.Fatalf("after failed remediation state = %s, want retrying", m.State())
	}
	now = now.Add(10 * time.Second)
	m.Tick(ctx)
	if m.State() != models.StateHealthy {
		t.Fatalf("after recovery state = %s, want healthy", m.State())
	}
	now = now.Add(10 * time.Second)
	m.Tick(ctx)

	if m.State() != models.StateEscalated {
		t.Fatalf("state = %s, want escalated (window is time-based, not state-based)", m.State())
	}
	if a.calls != 1 {
		t.Fatalf("remediation issued %d times, want 1", a.calls)
	}
	if len(sink.msgs) != 1 {
		t.Fatalf("escalation alerts = %d, want 1", len(sink.msgs))
	}
}

func TestRemediationSucceedsReturnsHealthy(t *testing.T) {
	p := &scriptedProber{verdicts: []models.Verdict{models.Unhealthy, models.Healthy}}
	a := &recordingAction{}
	m, sink, _ := testMonitor(testTarget(3), p, a)
	m.now = func() time.Time { return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC) }

	m.Tick(context.Background())
	if m.State() != models.StateHealthy {
		t.Fatalf("state = %s, want healthy after successful remediation", m.State())
	}
	if a.calls != 1 {
		t.Fatalf("remediation issued %d times, want 1", a.calls)
	}
	if len(sink.msgs) != 0 {
		t.Fatalf("no alert expected, got %d", len(sink.msgs))
	}
}

func TestFailedRemediationStillConsumesAttempt(t *testing.T) {
	p := &scriptedProber{}
	a := &recordingAction{err: errors.New("permission denied")}
	m, _, _ := testMonitor(testTarget(5), p, a)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Tick(context.Background())
	if got := m.window.Count(now); got != 1 {
		t.Fatalf("window count = %d, want 1 even when the action errored", got)
	}
}

func TestOperatorResetReArmsEscalatedMonitor(t *testing.T) {
	p := &scriptedProber{}
	a := &recordingAction{}
	m, sink, _ := testMonitor(testTarget(1), p, a)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Tick(ctx)
	now = now.Add(10 * time.Second)
	m.Tick(ctx)
	if m.State() != models.StateEscalated {
		t.Fatalf("state = %s, want escalated", m.State())
	}

	m.applyReset()
	if m.State() != models.StateHealthy {
		t.Fatalf("state after reset = %s, want healthy", m.State())
	}
	now = now.Add(10 * time.Second)
	m.Tick(ctx)
	if a.calls != 2 {
		t.Fatalf("remediation issued %d times, want 2 (re-armed after reset)", a.calls)
	}
	if len(sink.msgs) != 1 {
		t.Fatalf("alerts = %d, want still 1", len(sink.msgs))
	}
}

func TestEscalatedTargetDoesNotBlockOthers(t *testing.T) {
	// Monitor A is escalated from the first tick; monitor B must keep
	// polling on its own cadence regardless.
	pa := &scriptedProber{}
	a := &recordingAction{}
	ma, _, _ := testMonitor(testTarget(0), pa, a)

	pb := &scriptedProber{verdicts: []models.Verdict{
		models.Healthy, models.Healthy, models.Healthy, models.Healthy,
		models.Healthy, models.Healthy, models.Healthy, models.Healthy,
	}}
	mb, _, _ := testMonitor(testTarget(2), pb, &recordingAction{})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	done := make(chan struct{}, 2)
	go func() { ma.Run(ctx); done <- struct{}{} }()
	go func() { mb.Run(ctx); done <- struct{}{} }()
	<-done
	<-done

	if ma.State() != models.StateEscalated {
		t.Fatalf("monitor A state = %s, want escalated", ma.State())
	}
	if pb.calls < 2 {
		t.Fatalf("monitor B ticked %d times, want at least 2", pb.calls)
	}
}
