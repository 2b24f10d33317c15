package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMaxRetries is the terminal error surfaced once the reconnect attempt
// budget is exhausted.
var ErrMaxRetries = errors.New("connection failed: retry attempts exhausted")

// ClientConfig tunes the observer client's connection behavior.
type ClientConfig struct {
	URL            string
	SimulationID   string
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	MaxAttempts    int
	ConnectTimeout time.Duration
}

// Client is an observer that maintains a synchronized WorldView over a
// websocket connection, reconnecting with exponential backoff on abnormal
// closure.
type Client struct {
	cfg ClientConfig

	mu   sync.Mutex
	view *WorldView
	conn *websocket.Conn

	// OnStatus, if set, receives simulation status heartbeats.
	OnStatus func(SimulationStatus)
}

// NewClient returns a client for the given endpoint. It does not connect
// until Run is called.
func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg, view: NewWorldView()}
}

// BackoffDelay returns the reconnect delay for the given 1-based attempt:
// base doubling per attempt, capped at max.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Snapshot returns a copy of the current world view.
func (c *Client) Snapshot() WorldView {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *c.view
	cp.Ants = make(map[string]AntView, len(c.view.Ants))
	for id, a := range c.view.Ants {
		cp.Ants[id] = a
	}
	cp.Colonies = make(map[string]ColonyView, len(c.view.Colonies))
	for id, col := range c.view.Colonies {
		cp.Colonies[id] = col
	}
	cp.Food = make(map[string]FoodView, len(c.view.Food))
	for id, f := range c.view.Food {
		cp.Food[id] = f
	}
	cp.Trails = make(map[string]TrailView, len(c.view.Trails))
	for id, t := range c.view.Trails {
		cp.Trails[id] = t
	}
	return cp
}

// HasBaseline reports whether a full snapshot has been received.
func (c *Client) HasBaseline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.HasBaseline()
}

// Run connects and consumes frames until ctx is cancelled or the retry
// budget is exhausted. Every abnormal closure consumes an attempt and waits
// out the backoff delay before the redial; the counter resets only once a
// session proves healthy by delivering a baseline, so a server that accepts
// the handshake and then drops the connection still burns through the
// budget instead of being redialed in a hot loop.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err == nil {
			var healthy bool
			healthy, err = c.session(ctx, conn)
			conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if healthy {
				attempt = 0
			}
			slog.Warn("observer session ended", "error", err)
		}

		attempt++
		if attempt >= c.cfg.MaxAttempts {
			slog.Error("observer connection failed permanently",
				"url", c.cfg.URL, "attempts", attempt)
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, attempt, err)
		}
		delay := BackoffDelay(attempt, c.cfg.BackoffBase, c.cfg.BackoffMax)
		slog.Warn("observer reconnect scheduled",
			"attempt", attempt, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// dial opens the websocket connection, bounding the handshake: a dial stuck
// in "connecting" past the timeout counts as a failed attempt.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// session runs the subscribe handshake and read loop on one connection. It
// reports whether the session was healthy, meaning at least one baseline
// snapshot arrived before the connection dropped.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) (healthy bool, err error) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	sub := &Subscribe{Type: TypeSubscribe, SimulationID: c.cfg.SimulationID}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	// Unblock the read loop on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return healthy, err
		}
		baseline, err := c.handleFrame(conn, data)
		if err != nil {
			return healthy, err
		}
		if baseline {
			healthy = true
		}
	}
}

// handleFrame applies one frame, reporting whether it carried a baseline.
func (c *Client) handleFrame(conn *websocket.Conn, data []byte) (baseline bool, err error) {
	msg, err := DecodeMessage(data)
	if err != nil {
		slog.Warn("observer received malformed frame", "error", err)
		return false, nil
	}

	switch m := msg.(type) {
	case *FullState:
		c.mu.Lock()
		c.view.ApplyFull(m)
		c.mu.Unlock()
		return true, nil
	case *DeltaUpdate:
		c.mu.Lock()
		err := c.view.ApplyDelta(m)
		c.mu.Unlock()
		if errors.Is(err, ErrNoBaseline) {
			// Partial delta against an undefined base: ask for a
			// fresh snapshot instead of applying it.
			resync := &Resync{Type: TypeResync, SimulationID: c.cfg.SimulationID}
			if werr := conn.WriteJSON(resync); werr != nil {
				return false, fmt.Errorf("resync request: %w", werr)
			}
		}
	case *SimulationStatus:
		if c.OnStatus != nil {
			c.OnStatus(*m)
		}
	case *ErrorMessage:
		slog.Warn("server reported error", "message", m.Message)
	}
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
