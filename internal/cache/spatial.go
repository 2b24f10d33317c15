// Package cache provides the spatial cache: a read-mostly, time-boxed
// snapshot of world bounds, colonies, and food sources that keeps the
// per-ant hot path off the entity store.
//
// Readers get the last-loaded snapshot without blocking on the store and
// must tolerate staleness up to the TTL for changes made outside the cache's
// own mutators. In-process mutators apply immediately.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/environment"
	"github.com/talgya/anthill/internal/world"
)

// Store is the slice of the entity store the cache reads through.
type Store interface {
	SimulationByID(ctx context.Context, id string) (*world.Simulation, error)
	ColoniesBySimulation(ctx context.Context, simID string) ([]*colony.Colony, error)
	FoodBySimulation(ctx context.Context, simID string) ([]*environment.FoodSource, error)
}

// SpatialCache caches bounds, colonies, and food for one simulation.
type SpatialCache struct {
	store Store
	ttl   time.Duration

	mu          sync.RWMutex
	simID       string
	lastRefresh time.Time
	bounds      world.Bounds
	colonies    map[string]*colony.Colony
	food        map[string]*environment.FoodSource
}

// New creates an uninitialized cache with the given refresh interval.
func New(store Store, ttl time.Duration) *SpatialCache {
	return &SpatialCache{
		store:    store,
		ttl:      ttl,
		colonies: make(map[string]*colony.Colony),
		food:     make(map[string]*environment.FoodSource),
	}
}

// Initialize performs the initial load for a simulation. Failure here is
// fatal to startup: the hot path cannot run against an empty cache.
func (c *SpatialCache) Initialize(ctx context.Context, simID string) error {
	c.mu.Lock()
	c.simID = simID
	c.mu.Unlock()
	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("initialize spatial cache: %w", err)
	}
	return nil
}

// RefreshIfNeeded reloads from the store only when the snapshot is older
// than the TTL. Refresh failures keep the previous snapshot and are logged,
// not returned: a stale cache beats a dead tick.
func (c *SpatialCache) RefreshIfNeeded(ctx context.Context) {
	c.mu.RLock()
	stale := time.Since(c.lastRefresh) > c.ttl
	c.mu.RUnlock()
	if !stale {
		return
	}
	if err := c.refresh(ctx); err != nil {
		slog.Warn("spatial cache refresh failed, serving stale snapshot", "error", err)
	}
}

// ForceRefresh reloads from the store regardless of snapshot age.
func (c *SpatialCache) ForceRefresh(ctx context.Context) error {
	return c.refresh(ctx)
}

func (c *SpatialCache) refresh(ctx context.Context) error {
	c.mu.RLock()
	simID := c.simID
	c.mu.RUnlock()
	if simID == "" {
		return fmt.Errorf("spatial cache not initialized")
	}

	sim, err := c.store.SimulationByID(ctx, simID)
	if err != nil {
		return fmt.Errorf("load simulation: %w", err)
	}
	cols, err := c.store.ColoniesBySimulation(ctx, simID)
	if err != nil {
		return fmt.Errorf("load colonies: %w", err)
	}
	food, err := c.store.FoodBySimulation(ctx, simID)
	if err != nil {
		return fmt.Errorf("load food sources: %w", err)
	}

	colIndex := make(map[string]*colony.Colony, len(cols))
	for _, col := range cols {
		colIndex[col.ID] = col
	}
	foodIndex := make(map[string]*environment.FoodSource, len(food))
	for _, f := range food {
		if !f.Exhausted() {
			foodIndex[f.ID] = f
		}
	}

	c.mu.Lock()
	c.bounds = sim.Bounds()
	c.colonies = colIndex
	c.food = foodIndex
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	return nil
}

// Bounds returns the cached world extent.
func (c *SpatialCache) Bounds() world.Bounds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bounds
}

// Colonies returns the cached colonies.
func (c *SpatialCache) Colonies() []*colony.Colony {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*colony.Colony, 0, len(c.colonies))
	for _, col := range c.colonies {
		out = append(out, col)
	}
	return out
}

// Colony returns a cached colony by id, or nil.
func (c *SpatialCache) Colony(id string) *colony.Colony {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.colonies[id]
}

// FoodSources returns the cached, non-exhausted food sources.
func (c *SpatialCache) FoodSources() []*environment.FoodSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*environment.FoodSource, 0, len(c.food))
	for _, f := range c.food {
		out = append(out, f)
	}
	return out
}

// NearestFood returns the closest source with food remaining within radius
// of pos, or nil when none qualifies.
func (c *SpatialCache) NearestFood(pos world.Vec2, radius float64) *environment.FoodSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var nearest *environment.FoodSource
	best := radius
	for _, f := range c.food {
		if f.Amount <= 0 {
			continue
		}
		if d := world.Dist(pos, f.Pos); d <= best {
			nearest = f
			best = d
		}
	}
	return nearest
}

// CollectFood removes up to amount units from a cached source, returning
// what was taken and whether the source is now exhausted. Exhausted sources
// leave the cache immediately so other ants stop targeting them.
func (c *SpatialCache) CollectFood(id string, amount float64) (taken float64, depleted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.food[id]
	if !ok {
		return 0, false
	}
	taken = f.Collect(amount)
	if f.Exhausted() {
		delete(c.food, id)
		return taken, true
	}
	return taken, false
}

// DepositResources adds delivered resources to a cached colony. Returns
// false on a colony miss (deactivated or evicted since the ant set out).
func (c *SpatialCache) DepositResources(colonyID string, carried map[colony.ResourceKind]float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.colonies[colonyID]
	if !ok {
		return false
	}
	for kind, qty := range carried {
		col.Deposit(kind, qty)
	}
	return true
}

// AddFoodSource inserts a source into the cache.
func (c *SpatialCache) AddFoodSource(f *environment.FoodSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !f.Exhausted() {
		c.food[f.ID] = f
	}
}

// UpdateFoodSource replaces a cached source in place.
func (c *SpatialCache) UpdateFoodSource(f *environment.FoodSource) {
	c.AddFoodSource(f)
}

// RemoveFoodSource evicts a source from the cache.
func (c *SpatialCache) RemoveFoodSource(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.food, id)
}

// UpdateColony inserts or replaces a cached colony.
func (c *SpatialCache) UpdateColony(col *colony.Colony) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colonies[col.ID] = col
}

// RemoveColony evicts a colony from the cache.
func (c *SpatialCache) RemoveColony(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.colonies, id)
}

// LastRefresh returns when the snapshot was last loaded from the store.
func (c *SpatialCache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}
