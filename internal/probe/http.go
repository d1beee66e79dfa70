package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vigil/internal/models"
)

// HTTP reports healthy on any 2xx/3xx response within the timeout.
type HTTP struct {
	Client *http.Client
}

func NewHTTP() *HTTP {
	return &HTTP{Client: &http.Client{}}
}

func (p *HTTP) Check(ctx context.Context, t models.Target) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Address, nil)
	if err != nil {
		return unhealthyResult(0, err.Error())
	}
	start := time.Now()
	res, err := p.Client.Do(req)
	latency := time.Since(start)
	if err != nil {
		diag := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			diag = "request timed out"
		}
		return unhealthyResult(latency, diag)
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 400 {
		return healthyResult(latency, fmt.Sprintf("status %d", res.StatusCode))
	}
	return unhealthyResult(latency, fmt.Sprintf("status %d %s", res.StatusCode, http.StatusText(res.StatusCode)))
}
