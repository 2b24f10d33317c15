package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/environment"
	"github.com/talgya/anthill/internal/world"
)

// fakeStore serves canned entities and counts loads.
type fakeStore struct {
	sim      *world.Simulation
	colonies []*colony.Colony
	food     []*environment.FoodSource
	loads    atomic.Int32
	fail     bool
}

func (s *fakeStore) SimulationByID(_ context.Context, id string) (*world.Simulation, error) {
	s.loads.Add(1)
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.sim, nil
}

func (s *fakeStore) ColoniesBySimulation(context.Context, string) ([]*colony.Colony, error) {
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.colonies, nil
}

func (s *fakeStore) FoodBySimulation(context.Context, string) ([]*environment.FoodSource, error) {
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.food, nil
}

func newFakeStore() *fakeStore {
	sim := world.NewSimulation(200, 200)
	col := colony.New(sim.ID, world.Vec2{X: 100, Y: 100}, 10)
	near := environment.NewFoodSource(sim.ID, world.Vec2{X: 20, Y: 20}, 50, 1, true)
	far := environment.NewFoodSource(sim.ID, world.Vec2{X: 180, Y: 180}, 50, 1, true)
	return &fakeStore{
		sim:      sim,
		colonies: []*colony.Colony{col},
		food:     []*environment.FoodSource{near, far},
	}
}

func initCache(t *testing.T, store *fakeStore, ttl time.Duration) *SpatialCache {
	t.Helper()
	c := New(store, ttl)
	if err := c.Initialize(context.Background(), store.sim.ID); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	return c
}

func TestInitializeLoadsSnapshot(t *testing.T) {
	store := newFakeStore()
	c := initCache(t, store, time.Minute)

	if got := c.Bounds(); got != (world.Bounds{Width: 200, Height: 200}) {
		t.Errorf("bounds = %v", got)
	}
	if len(c.Colonies()) != 1 {
		t.Errorf("colonies = %d, want 1", len(c.Colonies()))
	}
	if len(c.FoodSources()) != 2 {
		t.Errorf("food sources = %d, want 2", len(c.FoodSources()))
	}
}

func TestInitializeFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	c := New(store, time.Minute)
	if err := c.Initialize(context.Background(), "sim"); err == nil {
		t.Error("expected error when the store is unavailable during init")
	}
}

func TestRefreshIfNeededHonorsTTL(t *testing.T) {
	store := newFakeStore()
	c := initCache(t, store, time.Hour)
	before := store.loads.Load()

	// Fresh snapshot: no store round trip.
	c.RefreshIfNeeded(context.Background())
	if store.loads.Load() != before {
		t.Error("refresh hit the store before TTL expiry")
	}

	// ForceRefresh bypasses the timer.
	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error: %v", err)
	}
	if store.loads.Load() != before+1 {
		t.Error("ForceRefresh did not hit the store")
	}
}

func TestRefreshIfNeededReloadsAfterTTL(t *testing.T) {
	store := newFakeStore()
	c := initCache(t, store, 10*time.Millisecond)
	before := store.loads.Load()

	time.Sleep(20 * time.Millisecond)
	c.RefreshIfNeeded(context.Background())
	if store.loads.Load() != before+1 {
		t.Error("refresh did not hit the store after TTL expiry")
	}
}

func TestNearestFood(t *testing.T) {
	store := newFakeStore()
	c := initCache(t, store, time.Minute)

	got := c.NearestFood(world.Vec2{X: 10, Y: 10}, 50)
	if got == nil || got.Pos != (world.Vec2{X: 20, Y: 20}) {
		t.Errorf("nearest = %+v, want the source at (20,20)", got)
	}
	if c.NearestFood(world.Vec2{X: 10, Y: 10}, 5) != nil {
		t.Error("expected no food within radius 5")
	}
}

func TestCollectFoodEvictsExhaustedSource(t *testing.T) {
	store := newFakeStore()
	c := initCache(t, store, time.Minute)
	id := store.food[0].ID

	taken, depleted := c.CollectFood(id, 49)
	if taken != 49 || depleted {
		t.Fatalf("first collect = (%v, %v), want (49, false)", taken, depleted)
	}
	taken, depleted = c.CollectFood(id, 5)
	if taken != 1 || !depleted {
		t.Fatalf("second collect = (%v, %v), want (1, true)", taken, depleted)
	}
	if c.NearestFood(world.Vec2{X: 20, Y: 20}, 5) != nil {
		t.Error("exhausted source still served from the cache")
	}
	// Collecting from an evicted source is a miss, not a panic.
	if taken, _ := c.CollectFood(id, 1); taken != 0 {
		t.Errorf("collect from evicted source = %v, want 0", taken)
	}
}

func TestMutatorsKeepCacheConsistent(t *testing.T) {
	store := newFakeStore()
	c := initCache(t, store, time.Minute)

	extra := environment.NewFoodSource(store.sim.ID, world.Vec2{X: 50, Y: 50}, 30, 1, true)
	c.AddFoodSource(extra)
	if len(c.FoodSources()) != 3 {
		t.Errorf("food sources = %d after add, want 3", len(c.FoodSources()))
	}
	c.RemoveFoodSource(extra.ID)
	if len(c.FoodSources()) != 2 {
		t.Errorf("food sources = %d after remove, want 2", len(c.FoodSources()))
	}

	col := colony.New(store.sim.ID, world.Vec2{X: 30, Y: 30}, 5)
	c.UpdateColony(col)
	if c.Colony(col.ID) == nil {
		t.Error("added colony not served")
	}
	c.RemoveColony(col.ID)
	if c.Colony(col.ID) != nil {
		t.Error("removed colony still served")
	}
}

func TestDepositResources(t *testing.T) {
	store := newFakeStore()
	c := initCache(t, store, time.Minute)
	colID := store.colonies[0].ID

	ok := c.DepositResources(colID, map[colony.ResourceKind]float64{colony.ResourceFood: 4})
	if !ok {
		t.Fatal("deposit to live colony failed")
	}
	if got := c.Colony(colID).Resources[colony.ResourceFood]; got != 4 {
		t.Errorf("food = %v, want 4", got)
	}
	if c.DepositResources("missing", map[colony.ResourceKind]float64{colony.ResourceFood: 4}) {
		t.Error("deposit to missing colony should report a miss")
	}
}
