package sweep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"vigil/internal/models"
	"vigil/internal/probe"
)

type fakeProber struct {
	delay   time.Duration
	verdict models.Verdict
	diag    string
}

func (p *fakeProber) Check(ctx context.Context, t models.Target) models.ProbeResult {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return models.ProbeResult{Verdict: models.Unhealthy, TS: time.Now().UTC(), Diagnostic: "cancelled"}
		}
	}
	return models.ProbeResult{Verdict: p.verdict, TS: time.Now().UTC(), Latency: p.delay, Diagnostic: p.diag}
}

func sweepTargets(n int) []models.Target {
	out := make([]models.Target, n)
	for i := range out {
		out[i] = models.Target{
			Name:    fmt.Sprintf("t%02d", i),
			Probe:   "tcp",
			Address: fmt.Sprintf("10.0.0.%d:80", i+1),
			Timeout: time.Second,
		}
	}
	return out
}

func TestRunPreservesInputOrder(t *testing.T) {
	targets := sweepTargets(6)
	probers := make([]probe.Prober, len(targets))
	for i := range probers {
		// Earlier targets are slower, so completion order is reversed.
		probers[i] = &fakeProber{delay: time.Duration(len(targets)-i) * 10 * time.Millisecond, verdict: models.Healthy}
	}

	r := &Runner{Limit: 6}
	report := r.Run(context.Background(), targets, probers)

	if len(report.Records) != len(targets) {
		t.Fatalf("records = %d, want %d", len(report.Records), len(targets))
	}
	for i, rec := range report.Records {
		if rec.Target.Name != targets[i].Name {
			t.Fatalf("record %d is %s, want %s (input order must be preserved)", i, rec.Target.Name, targets[i].Name)
		}
	}
	if !report.AllHealthy() {
		t.Fatalf("passed=%d failed=%d, want all healthy", report.Passed, report.Failed)
	}
}

func TestRunAggregatesFailures(t *testing.T) {
	targets := sweepTargets(3)
	probers := []probe.Prober{
		&fakeProber{verdict: models.Healthy},
		&fakeProber{verdict: models.Unhealthy, diag: "connection refused"},
		&fakeProber{verdict: models.Healthy},
	}
	report := (&Runner{}).Run(context.Background(), targets, probers)
	if report.Passed != 2 || report.Failed != 1 {
		t.Fatalf("passed=%d failed=%d, want 2/1", report.Passed, report.Failed)
	}
	if report.AllHealthy() {
		t.Fatal("AllHealthy should be false")
	}
}

func TestRunDeadlineCancelsSlowProbes(t *testing.T) {
	targets := sweepTargets(2)
	probers := []probe.Prober{
		&fakeProber{verdict: models.Healthy},
		&fakeProber{delay: 5 * time.Second, verdict: models.Healthy},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	report := (&Runner{Limit: 2}).Run(ctx, targets, probers)
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("sweep took %v, should return near the deadline", elapsed)
	}
	if report.Records[0].Result.Verdict != models.Healthy {
		t.Fatalf("fast probe should have finished, got %s", report.Records[0].Result.Diagnostic)
	}
	slow := report.Records[1].Result
	if slow.Verdict != models.Unhealthy {
		t.Fatal("slow probe should be unhealthy after cancellation")
	}
	if !strings.Contains(slow.Diagnostic, "cancelled") {
		t.Fatalf("diagnostic = %q, want a cancellation marker", slow.Diagnostic)
	}
}

func TestRunLimitNeverExceeded(t *testing.T) {
	targets := sweepTargets(8)
	probers := make([]probe.Prober, len(targets))
	for i := range probers {
		probers[i] = &fakeProber{delay: 20 * time.Millisecond, verdict: models.Healthy}
	}
	start := time.Now()
	report := (&Runner{Limit: 2}).Run(context.Background(), targets, probers)
	elapsed := time.Since(start)

	// 8 probes of 20ms through 2 workers need at least 4 rounds.
	if elapsed < 70*time.Millisecond {
		t.Fatalf("sweep finished in %v, limit=2 was not applied", elapsed)
	}
	if !report.AllHealthy() {
		t.Fatal("expected all healthy")
	}
}

func TestRenderJSONLFieldNames(t *testing.T) {
	targets := []models.Target{
		{Name: "ssh", Probe: "tcp", Address: "db1.internal:22"},
		{Name: "site", Probe: "http", Address: "https://example.com/healthz"},
	}
	report := models.SweepReport{
		Records: []models.SweepRecord{
			{Target: targets[0], Result: models.ProbeResult{Verdict: models.Healthy, TS: time.Unix(0, 0), Latency: 2500 * time.Microsecond}},
			{Target: targets[1], Result: models.ProbeResult{Verdict: models.Unhealthy, TS: time.Unix(0, 0), Diagnostic: "status 503"}},
		},
		Passed: 1, Failed: 1,
	}

	var buf bytes.Buffer
	if err := RenderJSONL(&buf, report); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not json: %v", err)
	}
	if first["status"] != "OK" || first["ok"] != float64(1) {
		t.Fatalf("line 1 status/ok = %v/%v", first["status"], first["ok"])
	}
	if first["host"] != "db1.internal" || first["port"] != float64(22) {
		t.Fatalf("line 1 host/port = %v/%v", first["host"], first["port"])
	}
	if first["latency_ms"] != 2.5 {
		t.Fatalf("line 1 latency_ms = %v, want 2.5", first["latency_ms"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 is not json: %v", err)
	}
	if second["status"] != "FAIL" || second["ok"] != float64(0) {
		t.Fatalf("line 2 status/ok = %v/%v", second["status"], second["ok"])
	}
	if second["url"] != "https://example.com/healthz" {
		t.Fatalf("line 2 url = %v", second["url"])
	}
	if second["diagnostic"] != "status 503" {
		t.Fatalf("line 2 diagnostic = %v", second["diagnostic"])
	}
}

func TestRenderTextSummaryLine(t *testing.T) {
	report := models.SweepReport{
		Records: []models.SweepRecord{
			{Target: models.Target{Name: "ssh", Address: "h:22"}, Result: models.ProbeResult{Verdict: models.Healthy}},
			{Target: models.Target{Name: "web", Address: "h:80"}, Result: models.ProbeResult{Verdict: models.Unhealthy, Diagnostic: "refused"}},
		},
		Passed: 1, Failed: 1,
	}
	var buf bytes.Buffer
	if err := RenderText(&buf, report); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "1 passed, 1 failed, 2 total") {
		t.Fatalf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "refused") {
		t.Fatalf("missing failure diagnostic:\n%s", out)
	}
}
