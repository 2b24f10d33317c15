package world

import (
	"github.com/google/uuid"
)

// WeatherKind enumerates the simulated weather states.
type WeatherKind uint8

const (
	WeatherClear WeatherKind = iota
	WeatherRain
	WeatherStorm
	WeatherFog
	WeatherHeatwave
)

// WeatherName returns a human-readable weather name.
func WeatherName(w WeatherKind) string {
	switch w {
	case WeatherClear:
		return "Clear"
	case WeatherRain:
		return "Rain"
	case WeatherStorm:
		return "Storm"
	case WeatherFog:
		return "Fog"
	case WeatherHeatwave:
		return "Heatwave"
	default:
		return "Unknown"
	}
}

// Season constants.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// TicksPerSeason controls how fast seasons roll over.
const TicksPerSeason = 90000

// SeasonName returns a human-readable season name.
func SeasonName(season uint8) string {
	switch season {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// Simulation is the root entity. Every other entity belongs to exactly one
// simulation via its simulation id.
type Simulation struct {
	ID               string      `json:"id"`
	Width            float64     `json:"width"`
	Height           float64     `json:"height"`
	Tick             uint64      `json:"tick"`
	Active           bool        `json:"active"`
	Weather          WeatherKind `json:"weather"`
	WeatherIntensity float64     `json:"weatherIntensity"` // 0.0–1.0
	Season           uint8       `json:"season"`
	TimeOfDay        float64     `json:"timeOfDay"` // Hours, [0, 24)

	// FoodCollected accumulates delivered food over the simulation's life.
	FoodCollected float64 `json:"foodCollected"`
}

// NewSimulation creates a fresh simulation with the given world size.
func NewSimulation(width, height float64) *Simulation {
	return &Simulation{
		ID:        uuid.NewString(),
		Width:     width,
		Height:    height,
		Active:    true,
		Weather:   WeatherClear,
		TimeOfDay: 8.0,
	}
}

// Bounds returns the world extent.
func (s *Simulation) Bounds() Bounds {
	return Bounds{Width: s.Width, Height: s.Height}
}

// AdvanceClock moves time-of-day and season forward for one tick.
// One tick is one sim-minute, matching the tick scheduler's base rate.
func (s *Simulation) AdvanceClock() {
	s.TimeOfDay += 1.0 / 60.0
	if s.TimeOfDay >= 24 {
		s.TimeOfDay -= 24
	}
	s.Season = uint8((s.Tick / TicksPerSeason) % 4)
}

// IsNight reports whether the current time-of-day falls in the dark hours.
func (s *Simulation) IsNight() bool {
	return s.TimeOfDay < 6 || s.TimeOfDay >= 20
}
