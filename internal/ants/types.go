// Package ants provides the ant data model, caste reference data, the
// per-agent behavior state machine, and the movement models.
package ants

import (
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/world"
)

// Role is an ant's behavioral caste.
type Role uint8

const (
	RoleWorker Role = iota
	RoleSoldier
	RoleScout
	RoleNurse
	RoleQueen
)

// RoleName returns a human-readable role name.
func RoleName(r Role) string {
	switch r {
	case RoleWorker:
		return "worker"
	case RoleSoldier:
		return "soldier"
	case RoleScout:
		return "scout"
	case RoleNurse:
		return "nurse"
	case RoleQueen:
		return "queen"
	default:
		return "unknown"
	}
}

// BehaviorState enumerates the states of the behavior machine.
// StateDead is terminal.
type BehaviorState uint8

const (
	StateWandering BehaviorState = iota
	StateSeekingFood
	StateCarryingFood
	StateFollowingTrail
	StatePatrolling
	StateExploring
	StateDead
)

// StateName returns a human-readable state name.
func StateName(s BehaviorState) string {
	switch s {
	case StateWandering:
		return "wandering"
	case StateSeekingFood:
		return "seeking_food"
	case StateCarryingFood:
		return "carrying_food"
	case StateFollowingTrail:
		return "following_trail"
	case StatePatrolling:
		return "patrolling"
	case StateExploring:
		return "exploring"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Caste is the immutable per-role reference data.
type Caste struct {
	Role            Role
	BaseSpeed       float64
	Strength        float64
	BaseHealth      float64
	Size            float64
	Lifespan        uint64 // Ticks
	CarryCapacity   float64
	DetectionRadius float64
	FollowThreshold float64 // Minimum trail strength worth following
	SpeedMult       float64
	CanFight        bool
}

// Castes holds the role reference table. Scouts see further and follow
// fainter trails; soldiers barely notice food unless on top of it; queens
// barely move.
var Castes = map[Role]Caste{
	RoleWorker: {
		Role: RoleWorker, BaseSpeed: 1.0, Strength: 1.0, BaseHealth: 100,
		Size: 1.0, Lifespan: 100_000, CarryCapacity: 2,
		DetectionRadius: 15, FollowThreshold: 2.0, SpeedMult: 1.0,
	},
	RoleSoldier: {
		Role: RoleSoldier, BaseSpeed: 1.1, Strength: 3.0, BaseHealth: 150,
		Size: 1.6, Lifespan: 120_000, CarryCapacity: 1,
		DetectionRadius: 4, FollowThreshold: 10.0, SpeedMult: 1.2,
		CanFight: true,
	},
	RoleScout: {
		Role: RoleScout, BaseSpeed: 1.3, Strength: 0.8, BaseHealth: 80,
		Size: 0.9, Lifespan: 80_000, CarryCapacity: 1,
		DetectionRadius: 25, FollowThreshold: 1.0, SpeedMult: 1.3,
	},
	RoleNurse: {
		Role: RoleNurse, BaseSpeed: 0.8, Strength: 0.8, BaseHealth: 90,
		Size: 0.9, Lifespan: 110_000, CarryCapacity: 1.5,
		DetectionRadius: 10, FollowThreshold: 3.0, SpeedMult: 0.8,
	},
	RoleQueen: {
		Role: RoleQueen, BaseSpeed: 0.2, Strength: 2.0, BaseHealth: 300,
		Size: 3.0, Lifespan: 1_000_000, CarryCapacity: 0,
		DetectionRadius: 5, FollowThreshold: MaxFollowThreshold, SpeedMult: 0.2,
	},
}

// MaxFollowThreshold marks a caste that never follows trails.
const MaxFollowThreshold = 1e9

// CasteOf returns the reference data for a role, defaulting to worker for
// unknown roles.
func CasteOf(r Role) Caste {
	if c, ok := Castes[r]; ok {
		return c
	}
	return Castes[RoleWorker]
}

// TargetKind says what an ant's target reference points at.
type TargetKind uint8

const (
	TargetFood TargetKind = iota
	TargetColony
	TargetPosition
)

// Target is an ant's current objective.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
	Pos  world.Vec2 `json:"pos"`
}

// Ant is an autonomous agent. Mutated every tick by the behavior pass;
// transition to StateDead is the only destruction the engine performs.
type Ant struct {
	ID           string                          `json:"id"`
	SimulationID string                          `json:"simulationId"`
	ColonyID     string                          `json:"colonyId"`
	Role         Role                            `json:"role"`
	Pos          world.Vec2                      `json:"pos"`
	Heading      float64                         `json:"heading"`
	Speed        float64                         `json:"speed"`
	Health       float64                         `json:"health"`
	Energy       float64                         `json:"energy"` // 0–100
	Age          uint64                          `json:"age"`
	State        BehaviorState                   `json:"state"`
	Target       *Target                         `json:"target,omitempty"`
	Carried      map[colony.ResourceKind]float64 `json:"carried,omitempty"`
}

// NewAnt creates an ant of the given role at pos with caste baseline stats.
func NewAnt(simID, colonyID string, role Role, pos world.Vec2) *Ant {
	c := CasteOf(role)
	return &Ant{
		ID:           uuid.NewString(),
		SimulationID: simID,
		ColonyID:     colonyID,
		Role:         role,
		Pos:          pos,
		Speed:        c.BaseSpeed,
		Health:       c.BaseHealth,
		Energy:       100,
		State:        StateWandering,
		Carried:      make(map[colony.ResourceKind]float64),
	}
}

// SpawnNear creates an ant at a random point within radius of center.
func SpawnNear(simID, colonyID string, role Role, center world.Vec2, radius float64, rng *rand.Rand) *Ant {
	pos := world.Vec2{
		X: center.X + (rng.Float64()*2-1)*radius,
		Y: center.Y + (rng.Float64()*2-1)*radius,
	}
	a := NewAnt(simID, colonyID, role, pos)
	a.Heading = (rng.Float64()*2 - 1) * math.Pi
	return a
}

// Alive reports whether the ant is still participating in the simulation.
func (a *Ant) Alive() bool {
	return a.State != StateDead
}

// CarriedTotal sums everything the ant is carrying.
func (a *Ant) CarriedTotal() float64 {
	var total float64
	for _, qty := range a.Carried {
		total += qty
	}
	return total
}

// clampEnergy pins energy into [0, 100].
func clampEnergy(a *Ant) {
	if a.Energy < 0 {
		a.Energy = 0
	}
	if a.Energy > 100 {
		a.Energy = 100
	}
}
