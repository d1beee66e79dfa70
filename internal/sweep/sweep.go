package sweep

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/models"
	"vigil/internal/probe"
)

// Runner fans one probe per target out across a bounded worker set and
// collects the results in input order. One-shot: no remediation, no state.
type Runner struct {
	Limit int
	Log   *slog.Logger
}

const defaultLimit = 8

// Run probes every target once. A deadline on ctx bounds the whole sweep;
// targets whose probe could not start (or finish) before cancellation are
// reported Unhealthy with a cancellation diagnostic.
func (r *Runner) Run(ctx context.Context, targets []models.Target, probers []probe.Prober) models.SweepReport {
	limit := r.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	report := models.SweepReport{
		StartedAt: time.Now().UTC(),
		Records:   make([]models.SweepRecord, len(targets)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range targets {
		i := i
		g.Go(func() error {
			t := targets[i]
			if gctx.Err() != nil {
				report.Records[i] = models.SweepRecord{Target: t, Result: cancelledResult()}
				return nil
			}
			res := probers[i].Check(gctx, t)
			if !res.Healthy() && gctx.Err() != nil {
				res.Diagnostic = "sweep cancelled: " + res.Diagnostic
			}
			report.Records[i] = models.SweepRecord{Target: t, Result: res}
			return nil
		})
	}
	_ = g.Wait()

	for i := range report.Records {
		rec := &report.Records[i]
		// A slot can only be empty if the goroutine never ran.
		if rec.Target.Name == "" {
			*rec = models.SweepRecord{Target: targets[i], Result: cancelledResult()}
		}
		if rec.Result.Healthy() {
			report.Passed++
		} else {
			report.Failed++
			if r.Log != nil {
				r.Log.Warn("sweep check failed", "target", rec.Target.Name, "diag", rec.Result.Diagnostic)
			}
		}
	}
	return report
}

func cancelledResult() models.ProbeResult {
	return models.ProbeResult{
		Verdict:    models.Unhealthy,
		TS:         time.Now().UTC(),
		Diagnostic: "sweep cancelled before probe completed",
	}
}
