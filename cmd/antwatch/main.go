// Command antwatch follows a running simulation as an observer, logging
// status heartbeats and periodic world summaries.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/anthill/internal/config"
	"github.com/talgya/anthill/internal/protocol"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config overriding the embedded defaults")
		url        = flag.String("url", "ws://localhost:8080/ws", "observer websocket endpoint")
		simID      = flag.String("simulation", "", "simulation id to follow (empty: the active one)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	client := protocol.NewClient(protocol.ClientConfig{
		URL:            *url,
		SimulationID:   *simID,
		BackoffBase:    cfg.Client.BackoffBase(),
		BackoffMax:     cfg.Client.BackoffMax(),
		MaxAttempts:    cfg.Client.MaxAttempts,
		ConnectTimeout: cfg.Client.ConnectTimeout(),
	})
	client.OnStatus = func(st protocol.SimulationStatus) {
		slog.Info("heartbeat", "tick", st.Tick, "running", st.Running)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go summarize(ctx, client)

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("observer terminated", "error", err)
		os.Exit(1)
	}
}

// summarize logs a world summary every few seconds once a baseline exists.
func summarize(ctx context.Context, client *protocol.Client) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !client.HasBaseline() {
			continue
		}
		view := client.Snapshot()
		slog.Info("world",
			"tick", view.Tick,
			"weather", view.Simulation.Weather,
			"ants", len(view.Ants),
			"colonies", len(view.Colonies),
			"food", len(view.Food),
			"trails", len(view.Trails),
			"collected", view.Simulation.FoodCollected)
	}
}
