// Command anthill runs the ant colony ecosystem simulation and serves the
// observer websocket and metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/anthill/internal/config"
	"github.com/talgya/anthill/internal/engine"
	"github.com/talgya/anthill/internal/metrics"
	"github.com/talgya/anthill/internal/persistence"
	"github.com/talgya/anthill/internal/protocol"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config overriding the embedded defaults")
		dbPath     = flag.String("db", "data/anthill.db", "SQLite database path")
		logLevel   = flag.String("log-level", "info", "debug, info, warn, or error")
	)
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, *dbPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	collector, err := metrics.New(nil)
	if err != nil {
		return err
	}

	var sim *engine.Simulation
	hub := protocol.NewHub(func(simID string) (*protocol.FullState, error) {
		return sim.Snapshot(simID)
	})
	sim = engine.New(cfg, db, hub, collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sim.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		active, err := db.ActiveSimulation(r.Context())
		if err != nil || active == nil {
			http.Error(w, "no active simulation", http.StatusNotFound)
			return
		}
		stats, err := db.Stats(r.Context(), active.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})
	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}

	go func() {
		slog.Info("listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()

	sched := engine.NewScheduler(cfg.Simulation.TickInterval(), func(time.Duration) {
		collector.TickOverruns.Inc()
	})
	if err := sched.Start(ctx, sim.CurrentTick(), sim.Tick); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("shutting down")

	sched.Stop()

	// Final save so a restart resumes from the last completed tick.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sim.Flush(saveCtx)

	if err := srv.Shutdown(saveCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	slog.Info("stopped", "tick", sched.CurrentTick())
	return nil
}
