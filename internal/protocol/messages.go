// Package protocol frames the observer synchronization wire format: full
// snapshots, incremental deltas, and the subscription handshake.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/anthill/internal/ants"
	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/environment"
	"github.com/talgya/anthill/internal/pheromone"
	"github.com/talgya/anthill/internal/world"
)

// Message type discriminators.
const (
	TypeFullState        = "fullState"
	TypeDeltaUpdate      = "deltaUpdate"
	TypeSimulationStatus = "simulationStatus"
	TypeError            = "error"
	TypeSubscribe        = "subscribe"
	TypeResync           = "resync"
)

// SimulationView is the observer-facing simulation snapshot.
type SimulationView struct {
	ID               string  `json:"id"`
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	Tick             uint64  `json:"tick"`
	Weather          string  `json:"weather"`
	WeatherIntensity float64 `json:"weatherIntensity"`
	Season           string  `json:"season"`
	TimeOfDay        float64 `json:"timeOfDay"`
	FoodCollected    float64 `json:"foodCollected"`
}

// AntView is the observer-facing ant projection.
type AntView struct {
	ID           string  `json:"id"`
	ColonyID     string  `json:"colonyId"`
	Role         string  `json:"role"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Heading      float64 `json:"heading"`
	Health       float64 `json:"health"`
	Energy       float64 `json:"energy"`
	State        string  `json:"state"`
	CarriedTotal float64 `json:"carriedTotal"`
}

// ColonyView is the observer-facing colony projection.
type ColonyView struct {
	ID         string             `json:"id"`
	X          float64            `json:"x"`
	Y          float64            `json:"y"`
	Radius     float64            `json:"radius"`
	Population int                `json:"population"`
	Resources  map[string]float64 `json:"resources"`
}

// FoodView is the observer-facing food source projection.
type FoodView struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Amount    float64 `json:"amount"`
	MaxAmount float64 `json:"maxAmount"`
}

// TrailView is the observer-facing pheromone trail projection.
type TrailView struct {
	ID       string  `json:"id"`
	ColonyID string  `json:"colonyId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Kind     string  `json:"kind"`
	Strength float64 `json:"strength"`
}

// FullState carries a complete world snapshot at one tick.
type FullState struct {
	Type       string         `json:"type"`
	Tick       uint64         `json:"tick"`
	Simulation SimulationView `json:"simulation"`
	Ants       []AntView      `json:"ants"`
	Colonies   []ColonyView   `json:"colonies"`
	Food       []FoodView     `json:"food"`
	Trails     []TrailView    `json:"trails"`
}

// DeltaUpdate carries an incremental change set. Trails are always a full
// replacement list; they churn too fast for per-row diffing to pay off.
type DeltaUpdate struct {
	Type            string       `json:"type"`
	Tick            uint64       `json:"tick"`
	UpdatedAnts     []AntView    `json:"updatedAnts,omitempty"`
	RemovedAntIDs   []string     `json:"removedAntIds,omitempty"`
	UpdatedColonies []ColonyView `json:"updatedColonies,omitempty"`
	UpdatedFood     []FoodView   `json:"updatedFood,omitempty"`
	RemovedFoodIDs  []string     `json:"removedFoodIds,omitempty"`
	Trails          []TrailView  `json:"trails"`
}

// Empty reports whether the delta carries no entity changes at all.
func (d *DeltaUpdate) Empty() bool {
	return len(d.UpdatedAnts) == 0 && len(d.RemovedAntIDs) == 0 &&
		len(d.UpdatedColonies) == 0 && len(d.UpdatedFood) == 0 &&
		len(d.RemovedFoodIDs) == 0 && len(d.Trails) == 0
}

// SimulationStatus is the periodic heartbeat.
type SimulationStatus struct {
	Type    string `json:"type"`
	Running bool   `json:"running"`
	Tick    uint64 `json:"tick"`
}

// ErrorMessage surfaces a protocol-level failure to the observer.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Subscribe is the observer's opening handshake.
type Subscribe struct {
	Type         string `json:"type"`
	SimulationID string `json:"simulationId"`
}

// Resync asks the server for a fresh baseline after a delta arrived with no
// usable base snapshot.
type Resync struct {
	Type         string `json:"type"`
	SimulationID string `json:"simulationId"`
}

// DecodeMessage parses a raw frame into its concrete message struct.
func DecodeMessage(data []byte) (any, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message head: %w", err)
	}

	var msg any
	switch head.Type {
	case TypeFullState:
		msg = &FullState{}
	case TypeDeltaUpdate:
		msg = &DeltaUpdate{}
	case TypeSimulationStatus:
		msg = &SimulationStatus{}
	case TypeError:
		msg = &ErrorMessage{}
	case TypeSubscribe:
		msg = &Subscribe{}
	case TypeResync:
		msg = &Resync{}
	default:
		return nil, fmt.Errorf("unknown message type %q", head.Type)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return msg, nil
}

// ── Entity projections ───────────────────────────────────────────────

// SimulationViewOf projects a simulation into its wire shape.
func SimulationViewOf(s *world.Simulation) SimulationView {
	return SimulationView{
		ID:               s.ID,
		Width:            s.Width,
		Height:           s.Height,
		Tick:             s.Tick,
		Weather:          world.WeatherName(s.Weather),
		WeatherIntensity: s.WeatherIntensity,
		Season:           world.SeasonName(s.Season),
		TimeOfDay:        s.TimeOfDay,
		FoodCollected:    s.FoodCollected,
	}
}

// AntViewOf projects an ant into its wire shape.
func AntViewOf(a *ants.Ant) AntView {
	return AntView{
		ID:           a.ID,
		ColonyID:     a.ColonyID,
		Role:         ants.RoleName(a.Role),
		X:            a.Pos.X,
		Y:            a.Pos.Y,
		Heading:      a.Heading,
		Health:       a.Health,
		Energy:       a.Energy,
		State:        ants.StateName(a.State),
		CarriedTotal: a.CarriedTotal(),
	}
}

// ColonyViewOf projects a colony into its wire shape.
func ColonyViewOf(c *colony.Colony) ColonyView {
	resources := make(map[string]float64, len(c.Resources))
	for kind, amount := range c.Resources {
		resources[string(kind)] = amount
	}
	return ColonyView{
		ID:         c.ID,
		X:          c.Center.X,
		Y:          c.Center.Y,
		Radius:     c.Radius,
		Population: c.Population,
		Resources:  resources,
	}
}

// FoodViewOf projects a food source into its wire shape.
func FoodViewOf(f *environment.FoodSource) FoodView {
	return FoodView{
		ID:        f.ID,
		X:         f.Pos.X,
		Y:         f.Pos.Y,
		Amount:    f.Amount,
		MaxAmount: f.MaxAmount,
	}
}

// TrailViewOf projects a pheromone trail into its wire shape.
func TrailViewOf(t *pheromone.Trail) TrailView {
	return TrailView{
		ID:       t.ID,
		ColonyID: t.ColonyID,
		X:        t.Pos.X,
		Y:        t.Pos.Y,
		Kind:     pheromone.KindName(t.Kind),
		Strength: t.Strength,
	}
}
