// Package colony provides the colony entity and its resource economy:
// population resync, consumption, spawn policy, and bootstrap creation.
package colony

import (
	"math"

	"github.com/google/uuid"

	"github.com/talgya/anthill/internal/world"
)

// ResourceKind names a stored resource. String-keyed so the resources map
// serializes cleanly to JSON columns and wire messages.
type ResourceKind string

const (
	ResourceFood     ResourceKind = "food"
	ResourceWater    ResourceKind = "water"
	ResourceMaterial ResourceKind = "material"
)

// Colony is a home base ants forage for. Colonies are deactivated rather
// than deleted.
type Colony struct {
	ID              string                   `json:"id"`
	SimulationID    string                   `json:"simulationId"`
	Center          world.Vec2               `json:"center"`
	Radius          float64                  `json:"radius"`
	TerritoryRadius float64                  `json:"territoryRadius"`
	Population      int                      `json:"population"`
	Resources       map[ResourceKind]float64 `json:"resources"`
	Aggression      float64                  `json:"aggression"`
	Active          bool                     `json:"active"`
}

// New creates an active colony at center with empty stores.
func New(simID string, center world.Vec2, radius float64) *Colony {
	return &Colony{
		ID:              uuid.NewString(),
		SimulationID:    simID,
		Center:          center,
		Radius:          radius,
		TerritoryRadius: radius * 5,
		Resources:       make(map[ResourceKind]float64),
		Aggression:      0.3,
		Active:          true,
	}
}

// Deposit adds delivered resources to the colony's stores.
func (c *Colony) Deposit(kind ResourceKind, amount float64) {
	if amount <= 0 {
		return
	}
	if c.Resources == nil {
		c.Resources = make(map[ResourceKind]float64)
	}
	c.Resources[kind] += amount
}

// TotalResources sums stores across all kinds.
func (c *Colony) TotalResources() float64 {
	var total float64
	for _, qty := range c.Resources {
		total += qty
	}
	return total
}

// Economy holds the tuning for the per-colony economy pass.
type Economy struct {
	ConsumptionPerCapita float64
	SpawnThreshold       float64
	PopulationCap        int
}

// Resync sets the derived population field from the live ant count.
func (e Economy) Resync(c *Colony, livingAnts int) {
	c.Population = livingAnts
}

// Consume subtracts per-capita upkeep from every resource kind, floored at
// zero. Runs on the consumption cadence, not every tick.
func (e Economy) Consume(c *Colony) {
	upkeep := float64(c.Population) * e.ConsumptionPerCapita
	for kind, qty := range c.Resources {
		c.Resources[kind] = math.Max(0, qty-upkeep)
	}
}

// ShouldSpawn reports whether the colony can afford a new worker.
func (e Economy) ShouldSpawn(c *Colony) bool {
	return c.Active &&
		c.TotalResources() > e.SpawnThreshold &&
		c.Population < e.PopulationCap
}

// Bootstrap deterministically creates the initial colony pair for an empty
// simulation: symmetric offsets from the world center along the diagonal,
// separated by half the smaller world dimension, each with distinct seeded
// stores.
func Bootstrap(simID string, b world.Bounds) [2]*Colony {
	offset := math.Min(b.Width, b.Height) / 4
	center := b.Center()
	radius := math.Min(b.Width, b.Height) / 50

	first := New(simID, world.Vec2{X: center.X - offset, Y: center.Y - offset}, radius)
	first.Resources[ResourceFood] = 100
	first.Resources[ResourceWater] = 50

	second := New(simID, world.Vec2{X: center.X + offset, Y: center.Y + offset}, radius)
	second.Resources[ResourceFood] = 80
	second.Resources[ResourceMaterial] = 60

	return [2]*Colony{first, second}
}
