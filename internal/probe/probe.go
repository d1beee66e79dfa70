package probe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"vigil/internal/docker"
	"vigil/internal/models"
)

// Prober evaluates one target's health once. Implementations never return
// an error: connection refused, DNS failures, timeouts, bad status codes
// and command errors all fold into an Unhealthy result with diagnostic
// text. Only malformed configuration is an error, and that is reported by
// New at startup.
type Prober interface {
	Check(ctx context.Context, t models.Target) models.ProbeResult
}

// Deps carries shared clients probe variants may need.
type Deps struct {
	Docker *docker.Client
}

// New builds the prober for a target's configured probe kind.
func New(t models.Target, deps Deps) (Prober, error) {
	switch t.Probe {
	case "tcp":
		if t.Address == "" || !strings.Contains(t.Address, ":") {
			return nil, fmt.Errorf("target %s: tcp probe needs a host:port address", t.Name)
		}
		return &TCP{}, nil
	case "http":
		if !strings.HasPrefix(t.Address, "http://") && !strings.HasPrefix(t.Address, "https://") {
			return nil, fmt.Errorf("target %s: http probe needs an http(s) URL", t.Name)
		}
		return NewHTTP(), nil
	case "unit":
		if t.Address == "" {
			return nil, fmt.Errorf("target %s: unit probe needs a unit name", t.Name)
		}
		return &Unit{}, nil
	case "disk":
		if !strings.HasPrefix(t.Address, "/") {
			return nil, fmt.Errorf("target %s: disk probe needs an absolute path", t.Name)
		}
		if t.MaxUsedPct <= 0 || t.MaxUsedPct > 100 {
			return nil, fmt.Errorf("target %s: disk probe needs max_used_pct in (0,100]", t.Name)
		}
		return &Disk{}, nil
	case "docker":
		if deps.Docker == nil {
			return nil, fmt.Errorf("target %s: docker probe requires a docker socket", t.Name)
		}
		if t.Address == "" {
			return nil, fmt.Errorf("target %s: docker probe needs a container name or id", t.Name)
		}
		return &Docker{Client: deps.Docker}, nil
	default:
		return nil, fmt.Errorf("target %s: unknown probe kind %q", t.Name, t.Probe)
	}
}

func healthyResult(latency time.Duration, diag string) models.ProbeResult {
	return models.ProbeResult{Verdict: models.Healthy, TS: time.Now().UTC(), Latency: latency, Diagnostic: sanitize(diag)}
}

func unhealthyResult(latency time.Duration, diag string) models.ProbeResult {
	return models.ProbeResult{Verdict: models.Unhealthy, TS: time.Now().UTC(), Latency: latency, Diagnostic: sanitize(diag)}
}

// sanitize keeps diagnostics printable and bounded before they reach logs,
// reports or alert payloads.
func sanitize(msg string) string {
	msg = strings.TrimSpace(msg)
	msg = strings.ReplaceAll(msg, "\x00", "")
	msg = strings.TrimSpace(string(bytes.ToValidUTF8([]byte(msg), []byte("?"))))
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	return msg
}
