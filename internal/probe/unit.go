package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vigil/internal/models"
)

// Unit asks systemd whether a unit is active. The systemctl output is
// parsed here and nowhere else, so a format change stays contained.
type Unit struct {
	// run is swapped out in tests; defaults to systemctl.
	run func(ctx context.Context, unit string) (string, error)
}

func (p *Unit) Check(ctx context.Context, t models.Target) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	run := p.run
	if run == nil {
		run = runIsActive
	}
	start := time.Now()
	out, err := run(ctx, t.Address)
	latency := time.Since(start)

	state := parseUnitState(out)
	if state == "active" {
		return healthyResult(latency, fmt.Sprintf("unit %s active", t.Address))
	}
	diag := fmt.Sprintf("unit %s is %s", t.Address, state)
	if state == "" && err != nil {
		diag = fmt.Sprintf("unit %s: %v", t.Address, err)
	}
	return unhealthyResult(latency, diag)
}

// runIsActive returns systemctl's stdout; is-active exits non-zero for any
// state other than active, so the exit error alone is not diagnostic.
func runIsActive(ctx context.Context, unit string) (string, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "is-active", unit).Output()
	return string(out), err
}

// parseUnitState extracts the first token of systemctl is-active output:
// one of active, inactive, failed, activating, deactivating, unknown.
func parseUnitState(out string) string {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
