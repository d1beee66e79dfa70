package sweep

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"vigil/internal/models"
)

type jsonlRecord struct {
	Timestamp  string  `json:"timestamp"`
	Name       string  `json:"name"`
	Host       string  `json:"host"`
	Port       int     `json:"port,omitempty"`
	URL        string  `json:"url,omitempty"`
	Status     string  `json:"status"`
	OK         int     `json:"ok"`
	LatencyMS  float64 `json:"latency_ms"`
	Diagnostic string  `json:"diagnostic,omitempty"`
}

// RenderJSONL writes one JSON object per target, preserving input order.
func RenderJSONL(w io.Writer, report models.SweepReport) error {
	enc := json.NewEncoder(w)
	for _, rec := range report.Records {
		out := jsonlRecord{
			Timestamp: rec.Result.TS.UTC().Format(time.RFC3339),
			Name:      rec.Target.Name,
			Host:      rec.Target.Host(),
			Status:    "FAIL",
			LatencyMS: float64(rec.Result.Latency.Microseconds()) / 1000,
		}
		if rec.Result.Healthy() {
			out.Status = "OK"
			out.OK = 1
		} else {
			out.Diagnostic = rec.Result.Diagnostic
		}
		switch rec.Target.Probe {
		case "http":
			out.URL = rec.Target.Address
		case "tcp":
			if _, portStr, err := net.SplitHostPort(rec.Target.Address); err == nil {
				if p, err := strconv.Atoi(portStr); err == nil {
					out.Port = p
				}
			}
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

// RenderText writes a human-readable summary table.
func RenderText(w io.Writer, report models.SweepReport) error {
	for _, rec := range report.Records {
		status := "FAIL"
		if rec.Result.Healthy() {
			status = "OK"
		}
		line := fmt.Sprintf("%-4s %-24s %-40s %6.1fms", status, rec.Target.Name, rec.Target.Address,
			float64(rec.Result.Latency.Microseconds())/1000)
		if !rec.Result.Healthy() && rec.Result.Diagnostic != "" {
			line += "  " + rec.Result.Diagnostic
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d passed, %d failed, %d total\n", report.Passed, report.Failed, len(report.Records))
	return err
}
