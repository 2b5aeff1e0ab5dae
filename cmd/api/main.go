package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lumen-wallet/lumen_wallet/internal/config"
	"github.com/lumen-wallet/lumen_wallet/internal/infra"
	"github.com/lumen-wallet/lumen_wallet/internal/logging"
	"github.com/lumen-wallet/lumen_wallet/internal/routes"
	"github.com/lumen-wallet/lumen_wallet/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	conns, err := infra.Connect(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("connect backends", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := conns.Close(); err != nil {
			logger.Warn("close backends", "error", err)
		}
	}()

	deps := routes.Deps{Cfg: cfg, DB: conns.DB, Cache: conns.Cache, Logger: logger}
	if conns.Events != nil {
		deps.Events = conns.Events
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Registry = registry

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
