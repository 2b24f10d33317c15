package ants

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/talgya/anthill/internal/world"
)

func TestLevyStepStaysClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10_000; i++ {
		step := LevyStep(rng, 1.9, 1.0, 50.0)
		if step < 1.0 || step > 50.0 {
			t.Fatalf("step %v outside [1, 50]", step)
		}
	}
}

// A scout's Lévy walk must show a heavier-tailed step-length distribution
// than a worker's bounded random walk over the same duration.
func TestLevyStepsHeavierTailedThanBoundedWalk(t *testing.T) {
	const ticks = 1000
	b := world.Bounds{Width: 10_000, Height: 10_000}
	home := world.Vec2{X: 5000, Y: 5000}

	scout := NewAnt("sim", "col", RoleScout, home)
	worker := NewAnt("sim", "col", RoleWorker, home)
	rng := rand.New(rand.NewSource(42))

	scoutSteps := make([]float64, 0, ticks)
	workerSteps := make([]float64, 0, ticks)
	for i := 0; i < ticks; i++ {
		prev := scout.Pos
		LevyWalk(scout, b, home, rng, 1.9, 1.0, 50.0, 1.0)
		scoutSteps = append(scoutSteps, world.Dist(prev, scout.Pos))

		prev = worker.Pos
		BoundedWalk(worker, b, rng, 0.2, 0.5, 1.0)
		workerSteps = append(workerSteps, world.Dist(prev, worker.Pos))
	}

	sort.Float64s(scoutSteps)
	sort.Float64s(workerSteps)

	// Tail weight: p99 relative to the median. The bounded walk moves a
	// near-constant distance each tick, so its ratio sits near 1; the Lévy
	// walk's occasional long jumps push the ratio well past it.
	scoutRatio := stat.Quantile(0.99, stat.Empirical, scoutSteps, nil) /
		stat.Quantile(0.5, stat.Empirical, scoutSteps, nil)
	workerRatio := stat.Quantile(0.99, stat.Empirical, workerSteps, nil) /
		stat.Quantile(0.5, stat.Empirical, workerSteps, nil)

	if scoutRatio <= workerRatio*2 {
		t.Errorf("levy tail ratio %v not heavier than bounded walk ratio %v", scoutRatio, workerRatio)
	}
}

func TestBoundedWalkStaysInBounds(t *testing.T) {
	b := world.Bounds{Width: 50, Height: 50}
	a := NewAnt("sim", "col", RoleWorker, world.Vec2{X: 1, Y: 1})
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		BoundedWalk(a, b, rng, 0.2, 0.5, 2.0)
		if !b.Contains(a.Pos) {
			t.Fatalf("tick %d: position %v escaped bounds", i, a.Pos)
		}
	}
}

func TestLevyWalkBiasesAwayFromHome(t *testing.T) {
	b := world.Bounds{Width: 100_000, Height: 100_000}
	home := world.Vec2{X: 50_000, Y: 50_000}
	rng := rand.New(rand.NewSource(3))

	a := NewAnt("sim", "col", RoleScout, world.Vec2{X: 50_010, Y: 50_000})
	start := world.Dist(home, a.Pos)
	for i := 0; i < 500; i++ {
		LevyWalk(a, b, home, rng, 1.9, 1.0, 50.0, 1.0)
	}
	if world.Dist(home, a.Pos) <= start {
		t.Errorf("scout ended %v from home, started at %v; expected outward drift",
			world.Dist(home, a.Pos), start)
	}
}

func TestTrailWalkSpeedBonusIsCapped(t *testing.T) {
	b := world.Bounds{Width: 10_000, Height: 10_000}
	rng := rand.New(rand.NewSource(5))

	// At maximum trail strength the step must not exceed base × cap.
	a := NewAnt("sim", "col", RoleWorker, world.Vec2{X: 5000, Y: 5000})
	prev := a.Pos
	TrailWalk(a, b, rng, 0, 1e9, 2.0, 1.5)
	if step := world.Dist(prev, a.Pos); step > 2.0*1.5+1e-9 {
		t.Errorf("step %v exceeded capped speed %v", step, 2.0*1.5)
	}
}

func TestTrailWalkFollowsHeadingWhenStrong(t *testing.T) {
	b := world.Bounds{Width: 10_000, Height: 10_000}
	rng := rand.New(rand.NewSource(5))

	// Strong trails leave little room for jitter: heading stays near the
	// influence direction.
	a := NewAnt("sim", "col", RoleWorker, world.Vec2{X: 5000, Y: 5000})
	TrailWalk(a, b, rng, math.Pi/4, 200, 1.0, 1.5)
	if math.Abs(a.Heading-math.Pi/4) > math.Pi/(1+200) {
		t.Errorf("heading %v strayed from trail heading %v", a.Heading, math.Pi/4)
	}
}

func TestSteerTowardArrives(t *testing.T) {
	b := world.Bounds{Width: 100, Height: 100}
	a := NewAnt("sim", "col", RoleWorker, world.Vec2{X: 10, Y: 10})
	target := world.Vec2{X: 14, Y: 10}

	if remaining := SteerToward(a, b, target, 3); math.Abs(remaining-1) > 1e-9 {
		t.Errorf("remaining = %v, want 1", remaining)
	}
	if remaining := SteerToward(a, b, target, 3); remaining != 0 {
		t.Errorf("remaining = %v, want 0 (overshoot snaps to target)", remaining)
	}
	if a.Pos != target {
		t.Errorf("pos = %v, want %v", a.Pos, target)
	}
}
