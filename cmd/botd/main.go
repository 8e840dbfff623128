package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chainchat/go-backend/internal/composition/bot"
	"chainchat/go-backend/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	transport := flag.String("transport", "", "Network transport override: go-waku | mock")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address override (optional)")
	logLevel := flag.String("log-level", "info", "Log level: debug | info | warn | error")
	flag.Parse()
	if *showVersion {
		fmt.Printf("botd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *transport != "" {
		_ = os.Setenv("CHAINCHAT_NETWORK_TRANSPORT", *transport)
	}
	if *metricsAddr != "" {
		_ = os.Setenv("CHAINCHAT_METRICS_ADDR", *metricsAddr)
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	svc, err := bot.Build(ctx, *configPath, logger)
	if err != nil {
		log.Fatalf("botd failed to initialize: %v", err)
	}

	logger.Info("botd starting")
	if err := svc.Run(ctx); err != nil {
		log.Fatalf("botd failed: %v", err)
	}
	logger.Info("botd stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(privacylog.WrapHandler(handler))
}
