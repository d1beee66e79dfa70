package alert

import (
	"context"
	"log/slog"
)

// LogSink writes alerts to the process log. It is always configured so an
// escalation is never silently dropped even with no external sink set up.
type LogSink struct {
	Log *slog.Logger
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, msg string) error {
	s.Log.Error("escalation", "alert", msg)
	return nil
}
