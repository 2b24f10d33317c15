// Package pheromone provides the chemical trail model: decay, cleanup,
// deposit-or-reinforce, and the directional influence query ants steer by.
package pheromone

import (
	"time"

	"github.com/google/uuid"

	"github.com/talgya/anthill/internal/world"
)

// Kind enumerates the trail varieties.
type Kind uint8

const (
	KindFood Kind = iota
	KindDanger
	KindTerritory
	KindRecruitment
)

// KindName returns a human-readable trail kind name.
func KindName(k Kind) string {
	switch k {
	case KindFood:
		return "food"
	case KindDanger:
		return "danger"
	case KindTerritory:
		return "territory"
	case KindRecruitment:
		return "recruitment"
	default:
		return "unknown"
	}
}

// MaxStrength caps trail strength regardless of reinforcement.
const MaxStrength = 100.0

// Params holds the kind-specific deposit tuning.
type Params struct {
	InitialStrength float64
	DecayRate       float64 // Strength lost per tick
	TTL             time.Duration
}

// DefaultParams returns the deposit parameters for a trail kind.
// Food trails are moderate and long-lived; danger trails burn bright and fast.
func DefaultParams(k Kind) Params {
	switch k {
	case KindDanger:
		return Params{InitialStrength: 80, DecayRate: 2.0, TTL: 10 * time.Minute}
	case KindTerritory:
		return Params{InitialStrength: 30, DecayRate: 0.2, TTL: 60 * time.Minute}
	case KindRecruitment:
		return Params{InitialStrength: 60, DecayRate: 1.0, TTL: 15 * time.Minute}
	default:
		return Params{InitialStrength: 50, DecayRate: 0.5, TTL: 30 * time.Minute}
	}
}

// Trail is a decaying chemical marker on the world plane.
type Trail struct {
	ID           string     `json:"id"`
	SimulationID string     `json:"simulationId"`
	ColonyID     string     `json:"colonyId"`
	Pos          world.Vec2 `json:"pos"`
	Kind         Kind       `json:"kind"`
	Strength     float64    `json:"strength"`
	DecayRate    float64    `json:"decayRate"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	SourceAntID  string     `json:"sourceAntId,omitempty"`
	TargetFoodID string     `json:"targetFoodId,omitempty"`
}

// NewTrail creates a trail at pos with the kind's default parameters.
func NewTrail(simID, colonyID string, pos world.Vec2, kind Kind, now time.Time) *Trail {
	p := DefaultParams(kind)
	return &Trail{
		ID:           uuid.NewString(),
		SimulationID: simID,
		ColonyID:     colonyID,
		Pos:          pos,
		Kind:         kind,
		Strength:     p.InitialStrength,
		DecayRate:    p.DecayRate,
		ExpiresAt:    now.Add(p.TTL),
	}
}

// Reinforce adds strength to the trail, capped at MaxStrength.
func (t *Trail) Reinforce(amount float64) {
	t.Strength += amount
	if t.Strength > MaxStrength {
		t.Strength = MaxStrength
	}
}

// Decay reduces strength by the trail's decay rate, floored at zero.
func (t *Trail) Decay() {
	t.Strength -= t.DecayRate
	if t.Strength < 0 {
		t.Strength = 0
	}
}

// Expired reports whether the trail's expiry timestamp has elapsed.
func (t *Trail) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
