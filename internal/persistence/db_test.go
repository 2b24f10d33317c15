package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/anthill/internal/ants"
	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/environment"
	"github.com/talgya/anthill/internal/pheromone"
	"github.com/talgya/anthill/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSimulationRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sim := world.NewSimulation(1000, 800)
	sim.Tick = 42
	sim.Weather = world.WeatherRain
	sim.WeatherIntensity = 0.7
	sim.FoodCollected = 13.5

	if err := db.InsertSimulation(ctx, sim); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.ActiveSimulation(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if got == nil {
		t.Fatal("expected active simulation")
	}
	if got.ID != sim.ID || got.Tick != 42 || got.Weather != world.WeatherRain {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.FoodCollected != 13.5 {
		t.Errorf("food collected = %v, want 13.5", got.FoodCollected)
	}

	sim.Tick = 100
	sim.Active = false
	if err := db.UpdateSimulation(ctx, sim); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = db.ActiveSimulation(ctx)
	if err != nil {
		t.Fatalf("active after deactivate: %v", err)
	}
	if got != nil {
		t.Errorf("expected no active simulation, got %+v", got)
	}

	byID, err := db.SimulationByID(ctx, sim.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if byID.Tick != 100 {
		t.Errorf("tick = %d, want 100", byID.Tick)
	}
}

func TestActiveSimulationEmpty(t *testing.T) {
	db := openTestDB(t)

	got, err := db.ActiveSimulation(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on empty db, got %+v", got)
	}
}

func TestColonyResourcesSurviveRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c := colony.New("sim-1", world.Vec2{X: 250, Y: 250}, 20)
	c.Deposit(colony.ResourceFood, 100)
	c.Deposit(colony.ResourceWater, 50)
	c.Population = 30

	if err := db.InsertColony(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cols, err := db.ColoniesBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(cols) != 1 {
		t.Fatalf("got %d colonies, want 1", len(cols))
	}
	got := cols[0]
	if got.Resources[colony.ResourceFood] != 100 || got.Resources[colony.ResourceWater] != 50 {
		t.Errorf("resources = %v", got.Resources)
	}
	if got.Population != 30 || got.TerritoryRadius != c.TerritoryRadius {
		t.Errorf("fields mismatch: %+v", got)
	}

	got.Active = false
	if err := db.UpdateColony(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	cols, err = db.ColoniesBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("query after deactivate: %v", err)
	}
	if len(cols) != 0 {
		t.Errorf("inactive colony still returned")
	}
}

func TestAntBatchUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var batch []*ants.Ant
	for i := 0; i < 5; i++ {
		a := ants.NewAnt("sim-1", "col-1", ants.RoleWorker, world.Vec2{X: float64(i), Y: 0})
		if err := db.InsertAnt(ctx, a); err != nil {
			t.Fatalf("insert ant %d: %v", i, err)
		}
		a.Pos = world.Vec2{X: float64(i) + 10, Y: 5}
		a.Energy = 80
		a.State = ants.StateSeekingFood
		a.Target = &ants.Target{Kind: ants.TargetFood, ID: "food-1", Pos: world.Vec2{X: 1, Y: 2}}
		a.Carried[colony.ResourceFood] = 1.5
		batch = append(batch, a)
	}

	if err := db.UpdateAnts(ctx, batch); err != nil {
		t.Fatalf("batch update: %v", err)
	}

	loaded, err := db.AntsBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(loaded) != 5 {
		t.Fatalf("got %d ants, want 5", len(loaded))
	}
	for _, a := range loaded {
		if a.Energy != 80 || a.State != ants.StateSeekingFood {
			t.Errorf("ant %s not updated: %+v", a.ID, a)
		}
		if a.Target == nil || a.Target.ID != "food-1" {
			t.Errorf("ant %s target not restored: %+v", a.ID, a.Target)
		}
		if a.Carried[colony.ResourceFood] != 1.5 {
			t.Errorf("ant %s carried = %v", a.ID, a.Carried)
		}
	}
}

func TestLivingAntCountExcludesDead(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	alive := ants.NewAnt("sim-1", "col-1", ants.RoleWorker, world.Vec2{})
	dead := ants.NewAnt("sim-1", "col-1", ants.RoleWorker, world.Vec2{})
	dead.State = ants.StateDead

	for _, a := range []*ants.Ant{alive, dead} {
		if err := db.InsertAnt(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	count, err := db.LivingAntCountByColony(ctx, "col-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("living count = %d, want 1", count)
	}
}

func TestFoodSourceLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	f := environment.NewFoodSource("sim-1", world.Vec2{X: 30, Y: 40}, 50, 0.02, true)
	if err := db.InsertFoodSource(ctx, f); err != nil {
		t.Fatalf("insert: %v", err)
	}

	f.Collect(20)
	if err := db.UpdateFoodSource(ctx, f); err != nil {
		t.Fatalf("update: %v", err)
	}

	foods, err := db.FoodBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(foods) != 1 {
		t.Fatalf("got %d food sources, want 1", len(foods))
	}
	if foods[0].Amount != 30 || !foods[0].Renewable {
		t.Errorf("food mismatch: %+v", foods[0])
	}

	if err := db.DeleteFoodSource(ctx, f.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	foods, err = db.FoodBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("query after delete: %v", err)
	}
	if len(foods) != 0 {
		t.Errorf("deleted food still present")
	}
}

func TestReplaceTrailsAndCleanup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	first := pheromone.NewTrail("sim-1", "col-1", world.Vec2{X: 1, Y: 1}, pheromone.KindFood, now)
	if err := db.ReplaceTrails(ctx, "sim-1", []*pheromone.Trail{first}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// Second replace drops the first set entirely.
	weak := pheromone.NewTrail("sim-1", "col-1", world.Vec2{X: 2, Y: 2}, pheromone.KindFood, now)
	weak.Strength = 0.05
	strong := pheromone.NewTrail("sim-1", "col-1", world.Vec2{X: 3, Y: 3}, pheromone.KindDanger, now)
	strong.SourceAntID = "ant-9"
	if err := db.ReplaceTrails(ctx, "sim-1", []*pheromone.Trail{weak, strong}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	trails, err := db.TrailsBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(trails) != 2 {
		t.Fatalf("got %d trails after replace, want 2", len(trails))
	}

	if err := db.DeleteTrailsBelow(ctx, "sim-1", 0.1, now); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	trails, err = db.TrailsBySimulation(ctx, "sim-1")
	if err != nil {
		t.Fatalf("query after cleanup: %v", err)
	}
	if len(trails) != 1 {
		t.Fatalf("got %d trails after cleanup, want 1", len(trails))
	}
	got := trails[0]
	if got.Kind != pheromone.KindDanger || got.SourceAntID != "ant-9" {
		t.Errorf("surviving trail mismatch: %+v", got)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sim := world.NewSimulation(500, 500)
	sim.Tick = 7
	sim.FoodCollected = 25
	if err := db.InsertSimulation(ctx, sim); err != nil {
		t.Fatalf("insert sim: %v", err)
	}

	c := colony.New(sim.ID, world.Vec2{X: 100, Y: 100}, 10)
	if err := db.InsertColony(ctx, c); err != nil {
		t.Fatalf("insert colony: %v", err)
	}

	for i := 0; i < 3; i++ {
		a := ants.NewAnt(sim.ID, c.ID, ants.RoleWorker, c.Center)
		if i == 2 {
			a.State = ants.StateDead
		}
		if err := db.InsertAnt(ctx, a); err != nil {
			t.Fatalf("insert ant: %v", err)
		}
	}

	trail := pheromone.NewTrail(sim.ID, c.ID, world.Vec2{X: 5, Y: 5}, pheromone.KindFood, time.Now())
	if err := db.ReplaceTrails(ctx, sim.ID, []*pheromone.Trail{trail}); err != nil {
		t.Fatalf("replace trails: %v", err)
	}

	stats, err := db.Stats(ctx, sim.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAnts != 2 {
		t.Errorf("total ants = %d, want 2", stats.TotalAnts)
	}
	if stats.ActiveColonies != 1 {
		t.Errorf("active colonies = %d, want 1", stats.ActiveColonies)
	}
	if stats.ActivePheromoneTrails != 1 {
		t.Errorf("active trails = %d, want 1", stats.ActivePheromoneTrails)
	}
	if stats.TotalFoodCollected != 25 || stats.CurrentTick != 7 {
		t.Errorf("sim counters mismatch: %+v", stats)
	}
}
