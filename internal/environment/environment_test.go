package environment

import (
	"testing"

	"github.com/talgya/anthill/internal/world"
)

func TestRegenerateClampsAtMax(t *testing.T) {
	f := NewFoodSource("sim-1", world.Vec2{X: 10, Y: 10}, 50, 5, true)
	f.Amount = 48

	f.Regenerate()
	if f.Amount != 50 {
		t.Errorf("amount = %v, want clamped at max 50", f.Amount)
	}
	f.Regenerate()
	if f.Amount != 50 {
		t.Errorf("amount = %v, want to stay at max", f.Amount)
	}
}

func TestNonRenewableNeverRegrows(t *testing.T) {
	f := NewFoodSource("sim-1", world.Vec2{}, 50, 5, false)
	f.Amount = 10

	f.Regenerate()
	if f.Amount != 10 {
		t.Errorf("amount = %v, want unchanged 10", f.Amount)
	}
}

func TestCollectNeverGoesNegative(t *testing.T) {
	f := NewFoodSource("sim-1", world.Vec2{}, 50, 1, true)
	f.Amount = 2.5

	if taken := f.Collect(1); taken != 1 {
		t.Errorf("taken = %v, want 1", taken)
	}
	if taken := f.Collect(5); taken != 1.5 {
		t.Errorf("taken = %v, want remaining 1.5", taken)
	}
	if f.Amount != 0 {
		t.Errorf("amount = %v, want 0", f.Amount)
	}
	if taken := f.Collect(1); taken != 0 {
		t.Errorf("taken from empty source = %v, want 0", taken)
	}
	if !f.Exhausted() {
		t.Error("source with amount 0 should be exhausted")
	}
}

func TestSpawnFoodStaysInBounds(t *testing.T) {
	env := New(7, 100)
	b := world.Bounds{Width: 300, Height: 200}

	food := env.SpawnFood("sim-1", b, 25)
	if len(food) != 25 {
		t.Fatalf("spawned %d sources, want 25", len(food))
	}
	for _, f := range food {
		if !b.Contains(f.Pos) {
			t.Errorf("source at %v outside bounds", f.Pos)
		}
		if f.MaxAmount <= 0 || f.MaxAmount > 100 {
			t.Errorf("max amount = %v, want in (0, 100]", f.MaxAmount)
		}
		if f.Amount != f.MaxAmount {
			t.Errorf("new source amount = %v, want full %v", f.Amount, f.MaxAmount)
		}
		if f.SimulationID != "sim-1" {
			t.Errorf("simulation id = %q", f.SimulationID)
		}
	}
}

func TestEvolveWeatherSetsIntensity(t *testing.T) {
	env := New(3, 100)
	sim := world.NewSimulation(100, 100)

	seen := make(map[world.WeatherKind]bool)
	for i := 0; i < 200; i++ {
		env.EvolveWeather(sim)
		seen[sim.Weather] = true
		if sim.WeatherIntensity < 0.2 || sim.WeatherIntensity > 1.0 {
			t.Fatalf("intensity = %v, want in [0.2, 1.0]", sim.WeatherIntensity)
		}
	}
	// Over 200 draws the categorical choice should visit several kinds.
	if len(seen) < 3 {
		t.Errorf("saw %d weather kinds over 200 draws, want at least 3", len(seen))
	}
}

func TestCurrentEffects(t *testing.T) {
	tests := []struct {
		name      string
		weather   world.WeatherKind
		intensity float64
		timeOfDay float64
		slowed    bool
		dimmed    bool
	}{
		{"clear noon", world.WeatherClear, 0.5, 12, false, false},
		{"storm", world.WeatherStorm, 1.0, 12, true, true},
		{"fog dims only", world.WeatherFog, 1.0, 12, false, true},
		{"heatwave slows only", world.WeatherHeatwave, 1.0, 12, true, false},
		{"clear night dims", world.WeatherClear, 0.5, 23, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := world.NewSimulation(100, 100)
			sim.Weather = tt.weather
			sim.WeatherIntensity = tt.intensity
			sim.TimeOfDay = tt.timeOfDay

			eff := CurrentEffects(sim)
			if eff.Speed < 0.1 || eff.Visibility < 0.1 {
				t.Fatalf("effects %+v below floors", eff)
			}
			if tt.slowed != (eff.Speed < 1.0) {
				t.Errorf("speed = %v, slowed = %v, want %v", eff.Speed, eff.Speed < 1.0, tt.slowed)
			}
			if tt.dimmed != (eff.Visibility < 1.0) {
				t.Errorf("visibility = %v, dimmed = %v, want %v", eff.Visibility, eff.Visibility < 1.0, tt.dimmed)
			}
		})
	}
}
