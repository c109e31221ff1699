// Command zoo-server runs a zoo session and serves it over HTTP and
// WebSocket. It only handles dependency injection and server
// initialization; the simulation lives in internal/engine.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/app"
	"github.com/MRamiBalles/ZooSimulator/server/internal/network"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logLevel := flag.String("log-level", "", "Log level override: debug, info, warn, error")
	addr := flag.String("addr", "", "Listen address override")
	dbPath := flag.String("db", "", "SQLite journal path override")
	outputDir := flag.String("output-dir", "", "Telemetry CSV directory override")
	fast := flag.Bool("fast", false, "Use the fast preset (50ms ticks)")
	flag.Parse()

	if err := run(*configPath, *logLevel, *addr, *dbPath, *outputDir, *fast); err != nil {
		fmt.Fprintln(os.Stderr, "zoo-server:", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel, addr, dbPath, outputDir string, fast bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if fast {
		preset := config.Fast()
		cfg.Scheduler.TickInterval = preset.Scheduler.TickInterval
		cfg.Scheduler.DeadGracePeriod = preset.Scheduler.DeadGracePeriod
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if outputDir != "" {
		cfg.Telemetry.OutputDir = outputDir
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(os.Stdout, level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("bootstrapping zoo session")
	m := metrics.Get()
	session, err := app.Open(cfg, log, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error("session close failed", "error", err)
		}
	}()

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	log.Info("bootstrapping websocket hub")
	hub := network.NewHub(session.Engine, cfg.Server.ClientRateLimit, m, log)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, session.EventLog, cfg.Server.EventPollInterval)

	mux := http.NewServeMux()
	network.NewAPI(session.Engine, log).RegisterRoutes(mux)
	history := network.NewHistoryHandler(session, session.ID, log)
	if session.Journal != nil {
		history.WithJournal(session.Journal, session.Recapper)
	}
	history.RegisterRoutes(mux)
	mux.HandleFunc("/api/telemetry", func(w http.ResponseWriter, r *http.Request) {
		sample, ok := session.Telemetry.Last()
		if !ok {
			http.Error(w, `{"error":"no ticks yet"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sample)
	})
	mux.HandleFunc("/metrics", m.Handler())
	mux.HandleFunc("/metrics/prometheus", m.PrometheusHandler())
	mux.HandleFunc("/ws", network.ServeWS(hub, network.NewUpgrader()))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP API and WebSocket server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}
	return nil
}
