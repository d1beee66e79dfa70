package probe

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/docker"
	"vigil/internal/models"
)

// Docker reports healthy when the named container is in the running state.
type Docker struct {
	Client *docker.Client
}

func (p *Docker) Check(ctx context.Context, t models.Target) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	start := time.Now()
	inspect, err := p.Client.InspectContainer(ctx, t.Address)
	latency := time.Since(start)
	if err != nil {
		return unhealthyResult(latency, err.Error())
	}
	if inspect.State.Status == "running" {
		return healthyResult(latency, fmt.Sprintf("container %s running, %d restarts", t.Address, inspect.RestartCount))
	}
	diag := fmt.Sprintf("container %s is %s", t.Address, inspect.State.Status)
	if inspect.State.Status == "exited" {
		diag = fmt.Sprintf("container %s exited with code %d", t.Address, inspect.State.ExitCode)
	}
	return unhealthyResult(latency, diag)
}
