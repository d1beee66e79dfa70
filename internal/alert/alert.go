package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vigil/internal/models"
)

// Sink delivers one formatted message to an operator channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg string) error
}

// Escalation is the payload assembled when a monitor gives up on a target.
type Escalation struct {
	Target     models.Target
	Attempts   int
	Window     time.Duration
	Diagnostic string
	At         time.Time
}

func (e Escalation) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ESCALATED %s (%s)\n", e.Target.Name, e.Target.Address)
	fmt.Fprintf(&b, "host: %s\n", e.Target.Host())
	fmt.Fprintf(&b, "reason: %d remediation attempts in the last %s without recovery\n", e.Attempts, e.Window)
	fmt.Fprintf(&b, "last probe: %s\n", e.Diagnostic)
	fmt.Fprintf(&b, "at: %s", e.At.UTC().Format(time.RFC3339))
	return b.String()
}

// Dispatcher fans a message out to every configured sink. Each delivery
// gets a bounded timeout and a few retries; a sink that still fails is
// logged locally and never crashes or blocks the watchdog further.
type Dispatcher struct {
	sinks []Sink
	log   *slog.Logger

	sendTimeout time.Duration
	attempts    int
	sleep       func(d time.Duration)
}

func NewDispatcher(sinks []Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:       sinks,
		log:         logger,
		sendTimeout: 10 * time.Second,
		attempts:    3,
		sleep:       time.Sleep,
	}
}

func (d *Dispatcher) Escalate(ctx context.Context, e Escalation) {
	d.Send(ctx, e.Message())
}

func (d *Dispatcher) Send(ctx context.Context, msg string) {
	for _, s := range d.sinks {
		d.sendOne(ctx, s, msg)
	}
}

func (d *Dispatcher) sendOne(ctx context.Context, s Sink, msg string) {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err = s.Send(sendCtx, msg)
		cancel()
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
		d.sleep(time.Duration(attempt) * 300 * time.Millisecond)
	}
	d.log.Warn("alert delivery failed", "sink", s.Name(), "err", err, "msg", msg)
}
