// Package engine drives the fixed-interval tick loop and sequences the
// per-tick subsystem passes.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc is one full tick pass.
type TickFunc func(ctx context.Context, tick uint64)

// Scheduler fires TickFunc at a fixed interval. Ticks never overlap: the
// timer is rearmed only after the pass returns, so a slow tick delays the
// next firing instead of running concurrently, and no tick is skipped.
type Scheduler struct {
	interval  time.Duration
	onOverrun func(elapsed time.Duration)

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	tick atomic.Uint64
}

// overrunFraction of the interval at which a tick is flagged as slow.
const overrunFraction = 0.8

// NewScheduler returns a stopped scheduler. onOverrun, if non-nil, is called
// whenever a pass exceeds the overrun threshold.
func NewScheduler(interval time.Duration, onOverrun func(elapsed time.Duration)) *Scheduler {
	return &Scheduler{interval: interval, onOverrun: onOverrun}
}

// Start launches the tick loop resuming from startTick; the first pass fires
// with startTick+1. It errors if the scheduler is running or was already
// stopped; a stopped scheduler does not restart.
func (s *Scheduler) Start(ctx context.Context, startTick uint64, fn TickFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	if s.stopped {
		return errors.New("scheduler already stopped")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.tick.Store(startTick)

	go s.run(ctx, fn)
	slog.Info("scheduler started", "tick", startTick, "interval", s.interval)
	return nil
}

func (s *Scheduler) run(ctx context.Context, fn TickFunc) {
	defer close(s.done)

	warnAt := time.Duration(float64(s.interval) * overrunFraction)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		tick := s.tick.Add(1)
		start := time.Now()
		fn(ctx, tick)
		elapsed := time.Since(start)

		if elapsed > warnAt {
			slog.Warn("tick overran budget",
				"tick", tick, "elapsed", elapsed, "interval", s.interval)
			if s.onOverrun != nil {
				s.onOverrun(elapsed)
			}
		}

		// Rearm only after the pass finishes; one tick in flight at most.
		timer.Reset(s.interval)
	}
}

// Stop halts the loop and waits for an in-flight tick to finish. Stopping a
// never-started or already-stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	slog.Info("scheduler stopped", "tick", s.tick.Load())
}

// CurrentTick returns the most recently fired tick number.
func (s *Scheduler) CurrentTick() uint64 {
	return s.tick.Load()
}
