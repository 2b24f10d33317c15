package environment

import (
	"log/slog"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/anthill/internal/world"
)

// Environment drives weather evolution and food source replacement for one
// simulation.
type Environment struct {
	rng       *rand.Rand
	fertility opensimplex.Noise

	// MaxFoodAmount caps the capacity of spawned sources.
	MaxFoodAmount float64
}

// New creates an environment seeded deterministically.
func New(seed int64, maxFoodAmount float64) *Environment {
	return &Environment{
		rng:           rand.New(rand.NewSource(seed)),
		fertility:     opensimplex.NewNormalized(seed),
		MaxFoodAmount: maxFoodAmount,
	}
}

// weatherWeights biases the categorical draw toward mild conditions.
var weatherWeights = []struct {
	kind   world.WeatherKind
	weight float64
}{
	{world.WeatherClear, 0.40},
	{world.WeatherRain, 0.25},
	{world.WeatherFog, 0.15},
	{world.WeatherStorm, 0.10},
	{world.WeatherHeatwave, 0.10},
}

// EvolveWeather mutates the simulation's weather by weighted categorical
// choice with a fresh random intensity. Runs on the weather cadence.
func (e *Environment) EvolveWeather(sim *world.Simulation) {
	roll := e.rng.Float64()
	var cum float64
	for _, w := range weatherWeights {
		cum += w.weight
		if roll < cum {
			sim.Weather = w.kind
			break
		}
	}
	sim.WeatherIntensity = 0.2 + 0.8*e.rng.Float64()

	slog.Info("weather change",
		"tick", sim.Tick,
		"weather", world.WeatherName(sim.Weather),
		"intensity", sim.WeatherIntensity,
	)
}

// RegeneratePass restores every renewable source one tick toward capacity.
func (e *Environment) RegeneratePass(food []*FoodSource) {
	for _, f := range food {
		f.Regenerate()
	}
}

// SpawnFood creates count new sources with randomized capacity, regeneration,
// and renewability. Positions are rejection-sampled against the fertility
// noise field so food clusters in fertile regions instead of spreading
// uniformly.
func (e *Environment) SpawnFood(simID string, b world.Bounds, count int) []*FoodSource {
	out := make([]*FoodSource, 0, count)
	for i := 0; i < count; i++ {
		pos := e.fertilePosition(b)
		maxAmount := e.MaxFoodAmount * (0.3 + 0.7*e.rng.Float64())
		regen := 0.01 + 0.05*e.rng.Float64()
		renewable := e.rng.Float64() < 0.7

		f := NewFoodSource(simID, pos, maxAmount, regen, renewable)
		out = append(out, f)
	}
	return out
}

// fertilePosition samples positions until one clears a fertility roll,
// bounded at a few tries so barren worlds still get food somewhere.
func (e *Environment) fertilePosition(b world.Bounds) world.Vec2 {
	var pos world.Vec2
	for try := 0; try < 8; try++ {
		pos = world.Vec2{
			X: e.rng.Float64() * b.Width,
			Y: e.rng.Float64() * b.Height,
		}
		fert := e.fertility.Eval2(pos.X/200, pos.Y/200)
		if e.rng.Float64() < fert {
			return pos
		}
	}
	return pos
}

// Effects are the movement modifiers derived from current conditions.
type Effects struct {
	Speed      float64 // Movement speed multiplier
	Visibility float64 // Detection radius multiplier
}

// CurrentEffects combines weather kind/intensity and time-of-day into the
// modifiers movement logic consumes.
func CurrentEffects(sim *world.Simulation) Effects {
	eff := Effects{Speed: 1.0, Visibility: 1.0}

	switch sim.Weather {
	case world.WeatherRain:
		eff.Speed -= 0.2 * sim.WeatherIntensity
		eff.Visibility -= 0.1 * sim.WeatherIntensity
	case world.WeatherStorm:
		eff.Speed -= 0.5 * sim.WeatherIntensity
		eff.Visibility -= 0.4 * sim.WeatherIntensity
	case world.WeatherFog:
		eff.Visibility -= 0.5 * sim.WeatherIntensity
	case world.WeatherHeatwave:
		eff.Speed -= 0.3 * sim.WeatherIntensity
	}

	if sim.IsNight() {
		eff.Visibility *= 0.6
	}

	if eff.Speed < 0.1 {
		eff.Speed = 0.1
	}
	if eff.Visibility < 0.1 {
		eff.Visibility = 0.1
	}
	return eff
}
