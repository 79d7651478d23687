package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/serveur-am2025/localisation-server/internal/config"
	"github.com/serveur-am2025/localisation-server/internal/logging"
	"github.com/serveur-am2025/localisation-server/internal/relay"
	"github.com/serveur-am2025/localisation-server/internal/server"
	"github.com/serveur-am2025/localisation-server/internal/state"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is a development convenience; deployments set real env vars
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Serveur de lampadaires starting", "env", cfg.AppEnv, "port", cfg.Port)

	clock := clockwork.NewRealClock()
	registry := relay.NewRegistry()
	store := state.NewStore(clock)
	router := relay.NewRouter(registry, store, cfg.DeviceTokenPrefix)

	monitor := relay.NewMonitor(registry, clock, cfg.PingInterval, cfg.PingTimeout)
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go monitor.Run(monitorCtx)

	srv := server.New(cfg, registry, router, store, clock)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")

	stopMonitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}

	// Hijacked websocket connections outlive the HTTP shutdown; close them.
	for _, link := range registry.Drain() {
		link.Close()
	}
	slog.Info("Shutdown complete")
}
