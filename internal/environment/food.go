// Package environment provides food source lifecycle, simulated weather, and
// the environmental-effects query consumed by movement logic.
package environment

import (
	"math"

	"github.com/google/uuid"

	"github.com/talgya/anthill/internal/world"
)

// FoodSource is a collectable, optionally regenerating resource node.
// Invariant: 0 ≤ Amount ≤ MaxAmount.
type FoodSource struct {
	ID           string     `json:"id"`
	SimulationID string     `json:"simulationId"`
	Pos          world.Vec2 `json:"pos"`
	Amount       float64    `json:"amount"`
	MaxAmount    float64    `json:"maxAmount"`
	RegenRate    float64    `json:"regenRate"` // Units restored per tick when renewable
	Renewable    bool       `json:"renewable"`
	Nutrition    float64    `json:"nutrition"` // Energy value per unit
}

// NewFoodSource creates a full food source at pos.
func NewFoodSource(simID string, pos world.Vec2, maxAmount, regenRate float64, renewable bool) *FoodSource {
	return &FoodSource{
		ID:           uuid.NewString(),
		SimulationID: simID,
		Pos:          pos,
		Amount:       maxAmount,
		MaxAmount:    maxAmount,
		RegenRate:    regenRate,
		Renewable:    renewable,
		Nutrition:    1.0,
	}
}

// Regenerate restores one tick of growth toward MaxAmount. Non-renewable
// sources never regrow.
func (f *FoodSource) Regenerate() {
	if !f.Renewable || f.Amount >= f.MaxAmount {
		return
	}
	f.Amount = math.Min(f.MaxAmount, f.Amount+f.RegenRate)
}

// Collect removes up to amount units and returns what was actually taken.
// Amount never goes below zero.
func (f *FoodSource) Collect(amount float64) float64 {
	if amount <= 0 || f.Amount <= 0 {
		return 0
	}
	taken := math.Min(amount, f.Amount)
	f.Amount -= taken
	return taken
}

// Exhausted reports whether the source has nothing left to collect.
func (f *FoodSource) Exhausted() bool {
	return f.Amount <= 0
}
