package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"vigil/internal/alert"
	"vigil/internal/config"
	"vigil/internal/docker"
	"vigil/internal/models"
	"vigil/internal/monitor"
	"vigil/internal/probe"
	"vigil/internal/remedy"
	"vigil/internal/status"
	"vigil/internal/sweep"
	"vigil/internal/web"
)

// App wires the watchdog: one monitor per target, the status hub and the
// HTTP status server.
type App struct {
	cfg config.Config
	log *slog.Logger

	hub      *status.Hub
	monitors []*monitor.Monitor
	httpSrv  *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	resolved := cfg.Resolve()
	deps := buildDeps(cfg, resolved)

	targets := make([]models.Target, 0, len(resolved))
	for _, rt := range resolved {
		targets = append(targets, rt.Target)
	}
	hub := status.NewHub(targets)
	dispatcher := alert.NewDispatcher(buildSinks(cfg, logger), logger.With("module", "alerts"))

	monitors := make([]*monitor.Monitor, 0, len(resolved))
	resetters := make(map[string]web.Resetter, len(resolved))
	for _, rt := range resolved {
		p, err := probe.New(rt.Target, probe.Deps{Docker: deps.Docker})
		if err != nil {
			return nil, err
		}
		action, err := remedy.New(rt.Target.Name, rt.Remedy, remedy.Deps{Docker: deps.Docker})
		if err != nil {
			return nil, err
		}
		m := monitor.New(rt.Target, p, action, dispatcher, hub, logger.With("module", "monitor"))
		monitors = append(monitors, m)
		resetters[rt.Target.Name] = m
	}

	srv := web.NewServer(hub, resetters, logger.With("module", "web"))
	return &App{
		cfg:      cfg,
		log:      logger,
		hub:      hub,
		monitors: monitors,
		httpSrv:  &http.Server{Addr: cfg.Addr, Handler: srv.Routes()},
	}, nil
}

// Run blocks until ctx is cancelled, then waits for every monitor to
// finish its current tick.
func (a *App) Run(ctx context.Context) error {
	go func() {
		a.log.Info("status server listening", "addr", a.cfg.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("status server failed", "err", err)
		}
	}()

	var wg sync.WaitGroup
	for _, m := range a.monitors {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Run(ctx)
		}()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	wg.Wait()
	a.log.Info("all monitors stopped")
	return nil
}

// NewSweep builds the one-shot probe set for every configured target.
func NewSweep(cfg config.Config, logger *slog.Logger) ([]models.Target, []probe.Prober, *sweep.Runner, error) {
	resolved := cfg.Resolve()
	deps := buildDeps(cfg, resolved)

	targets := make([]models.Target, 0, len(resolved))
	probers := make([]probe.Prober, 0, len(resolved))
	for _, rt := range resolved {
		p, err := probe.New(rt.Target, probe.Deps{Docker: deps.Docker})
		if err != nil {
			return nil, nil, nil, err
		}
		targets = append(targets, rt.Target)
		probers = append(probers, p)
	}
	runner := &sweep.Runner{Limit: cfg.SweepLimit, Log: logger.With("module", "sweep")}
	return targets, probers, runner, nil
}

type deps struct {
	Docker *docker.Client
}

func buildDeps(cfg config.Config, resolved []config.ResolvedTarget) deps {
	var d deps
	for _, rt := range resolved {
		if rt.Target.Probe == "docker" || rt.Remedy.Type == "docker" {
			d.Docker = docker.NewClient(cfg.DockerSocket)
			break
		}
	}
	return d
}

func buildSinks(cfg config.Config, logger *slog.Logger) []alert.Sink {
	sinks := []alert.Sink{&alert.LogSink{Log: logger.With("module", "alerts")}}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhook(cfg.Alerts.WebhookURL))
	}
	if cfg.Alerts.TelegramBotToken != "" && cfg.Alerts.TelegramChatID != "" {
		sinks = append(sinks, alert.NewTelegram(cfg.Alerts.TelegramBotToken, cfg.Alerts.TelegramChatID))
	}
	return sinks
}
