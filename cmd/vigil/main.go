package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vigil/internal/app"
	"vigil/internal/config"
	"vigil/internal/sweep"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return exitUsage
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	switch os.Args[1] {
	case "watch":
		return runWatch(os.Args[2:], logger)
	case "sweep":
		return runSweep(os.Args[2:], logger)
	default:
		usage()
		return exitUsage
	}
}

func runWatch(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("VIGIL_CONFIG"), "path to vigil.yaml")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config error", "err", err)
		return exitUsage
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("init failed", "err", err)
		return exitUsage
	}

	logger.Info("starting vigil watchdog", "targets", len(cfg.Targets), "addr", cfg.Addr)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		logger.Error("shutdown with error", "err", err)
		return exitFailed
	}
	return exitOK
}

func runSweep(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("VIGIL_CONFIG"), "path to vigil.yaml")
	jsonOut := fs.Bool("json", false, "emit one JSON object per target")
	deadline := fs.Duration("deadline", 0, "abort the whole sweep after this duration")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config error", "err", err)
		return exitUsage
	}
	targets, probers, runner, err := app.NewSweep(cfg, logger)
	if err != nil {
		logger.Error("init failed", "err", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *deadline)
		defer cancel()
	}

	report := runner.Run(ctx, targets, probers)
	if *jsonOut {
		err = sweep.RenderJSONL(os.Stdout, report)
	} else {
		err = sweep.RenderText(os.Stdout, report)
	}
	if err != nil {
		logger.Error("render failed", "err", err)
		return exitFailed
	}
	if !report.AllHealthy() {
		return exitFailed
	}
	return exitOK
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: vigil <command> [flags]

commands:
  watch   run the watchdog: poll, remediate with flap protection, alert
  sweep   one-shot health check across all targets, exit 1 on any failure

flags:
  -config path      config file (or VIGIL_CONFIG)
  -json             sweep: JSON lines output
  -deadline 30s     sweep: global deadline
`)
}
