package remedy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vigil/internal/docker"
	"vigil/internal/models"
)

// Action issues one corrective action for a target. A nil error means the
// action was issued, not that health was restored; the monitor re-verifies
// with a probe afterwards. Errors are never fatal to the watchdog.
type Action interface {
	Name() string
	Remediate(ctx context.Context, t models.Target) error
}

// Spec is the remedy block of a target's configuration.
type Spec struct {
	Type      string   `yaml:"type"`
	Unit      string   `yaml:"unit"`
	Container string   `yaml:"container"`
	Command   []string `yaml:"command"`
	GraceSec  int      `yaml:"grace_seconds"`
}

type Deps struct {
	Docker *docker.Client
}

// New builds the action for a target's remedy spec. An empty spec means
// the target is monitored without automated remediation.
func New(name string, spec Spec, deps Deps) (Action, error) {
	switch spec.Type {
	case "":
		return nil, nil
	case "systemd":
		if spec.Unit == "" {
			return nil, fmt.Errorf("target %s: systemd remedy needs a unit", name)
		}
		return &SystemdRestart{Unit: spec.Unit}, nil
	case "docker":
		if deps.Docker == nil {
			return nil, fmt.Errorf("target %s: docker remedy requires a docker socket", name)
		}
		if spec.Container == "" {
			return nil, fmt.Errorf("target %s: docker remedy needs a container", name)
		}
		return &DockerRestart{Client: deps.Docker, Container: spec.Container, GraceSec: spec.GraceSec}, nil
	case "command":
		if len(spec.Command) == 0 {
			return nil, fmt.Errorf("target %s: command remedy needs an argv", name)
		}
		return &Command{Argv: spec.Command}, nil
	default:
		return nil, fmt.Errorf("target %s: unknown remedy type %q", name, spec.Type)
	}
}

// SystemdRestart restarts a systemd unit.
type SystemdRestart struct {
	Unit string

	run func(ctx context.Context, args ...string) ([]byte, error)
}

func (a *SystemdRestart) Name() string { return "systemd restart " + a.Unit }

func (a *SystemdRestart) Remediate(ctx context.Context, t models.Target) error {
	run := a.run
	if run == nil {
		run = runSystemctl
	}
	out, err := run(ctx, "restart", a.Unit)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("systemctl restart %s: %w", a.Unit, err)
		}
		return fmt.Errorf("systemctl restart %s: %s", a.Unit, msg)
	}
	return nil
}

func runSystemctl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "systemctl", args...).CombinedOutput()
}

// DockerRestart restarts a container through the engine API.
type DockerRestart struct {
	Client    *docker.Client
	Container string
	GraceSec  int
}

func (a *DockerRestart) Name() string { return "docker restart " + a.Container }

func (a *DockerRestart) Remediate(ctx context.Context, t models.Target) error {
	return a.Client.RestartContainer(ctx, a.Container, a.GraceSec)
}

// Command runs an operator-supplied command.
type Command struct {
	Argv []string
}

func (a *Command) Name() string { return "command " + a.Argv[0] }

func (a *Command) Remediate(ctx context.Context, t models.Target) error {
	start := time.Now()
	out, err := exec.CommandContext(ctx, a.Argv[0], a.Argv[1:]...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return fmt.Errorf("%s after %v: %w (%s)", a.Argv[0], time.Since(start).Round(time.Millisecond), err, msg)
	}
	return nil
}
