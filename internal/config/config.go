package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vigil/internal/models"
	"vigil/internal/remedy"
)

type Config struct {
	Addr         string        `yaml:"listen_addr"`
	DockerSocket string        `yaml:"docker_socket"`
	SweepLimit   int           `yaml:"sweep_concurrency"`
	Defaults     Defaults      `yaml:"defaults"`
	Alerts       Alerts        `yaml:"alerts"`
	Targets      []TargetEntry `yaml:"targets"`
}

type Defaults struct {
	IntervalSeconds   int `yaml:"interval_seconds"`
	TimeoutSeconds    int `yaml:"timeout_seconds"`
	CooldownSeconds   int `yaml:"cooldown_seconds"`
	FlapWindowSeconds int `yaml:"flap_window_seconds"`
	MaxRestarts       int `yaml:"max_restarts"`
}

type Alerts struct {
	WebhookURL       string `yaml:"webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// TargetEntry is one target block; zero fields inherit from Defaults.
type TargetEntry struct {
	Name              string      `yaml:"name"`
	Probe             string      `yaml:"probe"`
	Address           string      `yaml:"address"`
	MaxUsedPct        float64     `yaml:"max_used_pct"`
	IntervalSeconds   int         `yaml:"interval_seconds"`
	TimeoutSeconds    int         `yaml:"timeout_seconds"`
	CooldownSeconds   int         `yaml:"cooldown_seconds"`
	FlapWindowSeconds int         `yaml:"flap_window_seconds"`
	MaxRestarts       *int        `yaml:"max_restarts"`
	Remedy            remedy.Spec `yaml:"remedy"`
}

// ResolvedTarget pairs an immutable target with its remedy spec.
type ResolvedTarget struct {
	Target models.Target
	Remedy remedy.Spec
}

func defaultConfig() Config {
	return Config{
		Addr:         ":8866",
		DockerSocket: "/var/run/docker.sock",
		SweepLimit:   8,
		Defaults: Defaults{
			IntervalSeconds:   30,
			TimeoutSeconds:    5,
			CooldownSeconds:   10,
			FlapWindowSeconds: 600,
			MaxRestarts:       3,
		},
	}
}

// Load reads the YAML config, applies environment overrides and validates.
// All validation failures are fatal at startup.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config file is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Addr = getenv("VIGIL_ADDR", cfg.Addr)
	cfg.DockerSocket = getenv("VIGIL_DOCKER_SOCKET", cfg.DockerSocket)
	cfg.Alerts.WebhookURL = getenv("VIGIL_WEBHOOK_URL", cfg.Alerts.WebhookURL)
	cfg.Alerts.TelegramBotToken = getenv("TELEGRAM_BOT_TOKEN", cfg.Alerts.TelegramBotToken)
	cfg.Alerts.TelegramChatID = getenv("TELEGRAM_CHAT_ID", cfg.Alerts.TelegramChatID)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.Targets) == 0 {
		return errors.New("configuration must define at least one target")
	}
	if c.SweepLimit <= 0 {
		return errors.New("sweep_concurrency must be positive")
	}
	d := c.Defaults
	for _, v := range []int{d.IntervalSeconds, d.TimeoutSeconds, d.FlapWindowSeconds} {
		if v <= 0 {
			return errors.New("defaults: interval_seconds, timeout_seconds and flap_window_seconds must be positive")
		}
	}
	if d.CooldownSeconds < 0 || d.MaxRestarts < 0 {
		return errors.New("defaults: cooldown_seconds and max_restarts must not be negative")
	}
	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target %d is missing a name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		if t.Probe == "" {
			return fmt.Errorf("target %s is missing a probe kind", t.Name)
		}
		if t.IntervalSeconds < 0 || t.TimeoutSeconds < 0 || t.CooldownSeconds < 0 || t.FlapWindowSeconds < 0 {
			return fmt.Errorf("target %s has a negative duration override", t.Name)
		}
		if t.MaxRestarts != nil && *t.MaxRestarts < 0 {
			return fmt.Errorf("target %s: max_restarts must not be negative", t.Name)
		}
	}
	return nil
}

// Resolve applies defaults to every target entry.
func (c Config) Resolve() []ResolvedTarget {
	out := make([]ResolvedTarget, 0, len(c.Targets))
	for _, e := range c.Targets {
		t := models.Target{
			Name:        e.Name,
			Probe:       e.Probe,
			Address:     e.Address,
			MaxUsedPct:  e.MaxUsedPct,
			Interval:    secondsOr(e.IntervalSeconds, c.Defaults.IntervalSeconds),
			Timeout:     secondsOr(e.TimeoutSeconds, c.Defaults.TimeoutSeconds),
			Cooldown:    secondsOr(e.CooldownSeconds, c.Defaults.CooldownSeconds),
			FlapWindow:  secondsOr(e.FlapWindowSeconds, c.Defaults.FlapWindowSeconds),
			MaxRestarts: c.Defaults.MaxRestarts,
		}
		if e.MaxRestarts != nil {
			t.MaxRestarts = *e.MaxRestarts
		}
		out = append(out, ResolvedTarget{Target: t, Remedy: e.Remedy})
	}
	return out
}

func secondsOr(v, fallback int) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Second
	}
	return time.Duration(fallback) * time.Second
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
