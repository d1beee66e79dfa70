package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vigil/internal/alert"
	"vigil/internal/flap"
	"vigil/internal/models"
	"vigil/internal/probe"
	"vigil/internal/remedy"
)

// EventSink receives the read-model a monitor publishes. Implemented by
// the status hub; monitors never read it back.
type EventSink interface {
	PublishStatus(models.TargetStatus)
	PublishChange(models.StateChange)
}

// Monitor drives the probe → decide → remediate → alert loop for a single
// target. Each monitor runs in its own goroutine and owns all of its state,
// so nothing here is locked; the only cross-goroutine inputs are context
// cancellation and the reset channel.
type Monitor struct {
	target models.Target
	probe  probe.Prober
	action remedy.Action // nil when the target has no automated remedy
	window *flap.Window
	alerts *alert.Dispatcher
	events EventSink
	log    *slog.Logger

	now   func() time.Time
	state models.MonitorState

	resetCh chan struct{}
}

func New(t models.Target, p probe.Prober, action remedy.Action, alerts *alert.Dispatcher, events EventSink, logger *slog.Logger) *Monitor {
	return &Monitor{
		target:  t,
		probe:   p,
		action:  action,
		window:  flap.NewWindow(t.FlapWindow),
		alerts:  alerts,
		events:  events,
		log:     logger.With("target", t.Name),
		now:     time.Now,
		state:   models.StateHealthy,
		resetCh: make(chan struct{}, 1),
	}
}

func (m *Monitor) State() models.MonitorState { return m.state }

// Reset asks an escalated monitor to re-arm. Safe to call from other
// goroutines; the monitor applies it at its next loop iteration.
func (m *Monitor) Reset() {
	select {
	case m.resetCh <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. The first tick happens immediately.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitor started", "probe", m.target.Probe, "interval", m.target.Interval)
	m.Tick(ctx)

	ticker := time.NewTicker(m.target.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		case <-m.resetCh:
			m.applyReset()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one full poll cycle.
func (m *Monitor) Tick(ctx context.Context) {
	res := m.probe.Check(ctx, m.target)

	if m.state == models.StateEscalated {
		// Probing stays on for observability, remediation stays off until
		// an operator reset or process restart.
		m.publishStatus(res)
		return
	}

	if res.Healthy() {
		if m.state != models.StateHealthy {
			m.log.Info("recovered", "latency_ms", res.Latency.Milliseconds())
			m.transition(models.StateHealthy, res)
		}
		m.publishStatus(res)
		return
	}

	now := m.now()
	m.window.Prune(now)
	// The count check runs before recording the current failure: after
	// MaxRestarts attempts inside the window, the next failure escalates
	// instead of triggering one more restart.
	if attempts := m.window.Count(now); attempts >= m.target.MaxRestarts {
		m.log.Error("escalating", "attempts", attempts, "window", m.window.Span(), "diag", res.Diagnostic)
		m.transition(models.StateEscalated, res)
		m.alerts.Escalate(ctx, alert.Escalation{
			Target:     m.target,
			Attempts:   attempts,
			Window:     m.window.Span(),
			Diagnostic: res.Diagnostic,
			At:         now,
		})
		m.publishStatus(res)
		return
	}

	m.window.Record(now)
	if m.action != nil {
		m.log.Warn("remediating", "action", m.action.Name(), "diag", res.Diagnostic)
		if err := m.action.Remediate(ctx, m.target); err != nil {
			// The attempt is consumed either way.
			m.log.Warn("remediation failed", "action", m.action.Name(), "err", err)
		}
	} else {
		m.log.Warn("unhealthy, no remedy configured", "diag", res.Diagnostic)
	}

	if !m.wait(ctx, m.target.Cooldown) {
		return
	}

	verify := m.probe.Check(ctx, m.target)
	if verify.Healthy() {
		m.log.Info("remediation succeeded")
		m.transition(models.StateHealthy, verify)
	} else {
		m.log.Warn("remediation issued but target still unhealthy", "diag", verify.Diagnostic)
		m.transition(models.StateRetrying, verify)
	}
	m.publishStatus(verify)
}

func (m *Monitor) applyReset() {
	if m.state != models.StateEscalated {
		return
	}
	m.log.Info("operator reset, re-arming")
	m.window.Reset()
	m.transition(models.StateHealthy, models.ProbeResult{Verdict: models.Healthy, TS: m.now(), Diagnostic: "operator reset"})
}

func (m *Monitor) transition(to models.MonitorState, res models.ProbeResult) {
	from := m.state
	m.state = to
	if from == to || m.events == nil {
		return
	}
	m.events.PublishChange(models.StateChange{
		ID:         uuid.NewString(),
		Target:     m.target.Name,
		From:       from,
		To:         to,
		Verdict:    res.Verdict,
		Diagnostic: res.Diagnostic,
		At:         res.TS,
	})
}

func (m *Monitor) publishStatus(res models.ProbeResult) {
	if m.events == nil {
		return
	}
	m.events.PublishStatus(models.TargetStatus{
		Target:     m.target.Name,
		Address:    m.target.Address,
		State:      m.state,
		Verdict:    res.Verdict,
		LatencyMS:  float64(res.Latency.Microseconds()) / 1000,
		Diagnostic: res.Diagnostic,
		Attempts:   m.window.Count(m.now()),
		CheckedAt:  res.TS,
	})
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
