package models

import (
	"strings"
	"time"
)

type Verdict string

const (
	Healthy   Verdict = "healthy"
	Unhealthy Verdict = "unhealthy"
)

// Target identifies one thing being checked. Immutable after config load.
type Target struct {
	Name       string
	Probe      string
	Address    string
	MaxUsedPct float64

	Interval    time.Duration
	Timeout     time.Duration
	Cooldown    time.Duration
	FlapWindow  time.Duration
	MaxRestarts int
}

// Host returns the host portion of host:port addresses, otherwise the
// address as-is (URLs, unit names, paths).
func (t Target) Host() string {
	if strings.Contains(t.Address, "/") {
		return t.Address
	}
	if i := strings.LastIndex(t.Address, ":"); i > 0 {
		return t.Address[:i]
	}
	return t.Address
}

type ProbeResult struct {
	Verdict    Verdict
	TS         time.Time
	Latency    time.Duration
	Diagnostic string
}

func (r ProbeResult) Healthy() bool { return r.Verdict == Healthy }

type MonitorState string

const (
	StateHealthy   MonitorState = "healthy"
	StateRetrying  MonitorState = "retrying"
	StateEscalated MonitorState = "escalated"
)

// TargetStatus is the read-model a monitor publishes after every tick.
type TargetStatus struct {
	Target     string       `json:"target"`
	Address    string       `json:"address"`
	State      MonitorState `json:"state"`
	Verdict    Verdict      `json:"verdict"`
	LatencyMS  float64      `json:"latency_ms"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	Attempts   int          `json:"attempts_in_window"`
	CheckedAt  time.Time    `json:"checked_at"`
}

// StateChange is emitted when a monitor transitions between states.
type StateChange struct {
	ID         string       `json:"id"`
	Target     string       `json:"target"`
	From       MonitorState `json:"from"`
	To         MonitorState `json:"to"`
	Verdict    Verdict      `json:"verdict"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	At         time.Time    `json:"at"`
}

type SweepRecord struct {
	Target Target
	Result ProbeResult
}

type SweepReport struct {
	StartedAt time.Time
	Records   []SweepRecord
	Passed    int
	Failed    int
}

func (r SweepReport) AllHealthy() bool { return r.Failed == 0 }
