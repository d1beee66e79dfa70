package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"vigil/internal/models"
)

// TCP reports healthy when a TCP connection to the target address can be
// established within the timeout.
type TCP struct{}

func (p *TCP) Check(ctx context.Context, t models.Target) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", t.Address)
	latency := time.Since(start)
	if err != nil {
		return unhealthyResult(latency, dialDiag(ctx, err))
	}
	_ = conn.Close()
	return healthyResult(latency, fmt.Sprintf("connected to %s", t.Address))
}

func dialDiag(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "connect timed out"
	}
	return err.Error()
}
