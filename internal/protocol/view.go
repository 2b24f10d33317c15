package protocol

import "errors"

// ErrNoBaseline is returned when a delta arrives before any full snapshot;
// the observer must request a resync instead of applying against nothing.
var ErrNoBaseline = errors.New("delta received before full state baseline")

// WorldView is the observer-side materialized snapshot, kept current by
// applying full states and deltas in arrival order.
type WorldView struct {
	Tick       uint64
	Simulation SimulationView
	Ants       map[string]AntView
	Colonies   map[string]ColonyView
	Food       map[string]FoodView
	Trails     map[string]TrailView

	baseline bool
}

// NewWorldView returns an empty view with no baseline.
func NewWorldView() *WorldView {
	return &WorldView{
		Ants:     make(map[string]AntView),
		Colonies: make(map[string]ColonyView),
		Food:     make(map[string]FoodView),
		Trails:   make(map[string]TrailView),
	}
}

// HasBaseline reports whether a full state has been applied.
func (v *WorldView) HasBaseline() bool {
	return v.baseline
}

// ApplyFull replaces the entire view with a snapshot.
func (v *WorldView) ApplyFull(fs *FullState) {
	v.Tick = fs.Tick
	v.Simulation = fs.Simulation
	v.Ants = make(map[string]AntView, len(fs.Ants))
	for _, a := range fs.Ants {
		v.Ants[a.ID] = a
	}
	v.Colonies = make(map[string]ColonyView, len(fs.Colonies))
	for _, c := range fs.Colonies {
		v.Colonies[c.ID] = c
	}
	v.Food = make(map[string]FoodView, len(fs.Food))
	for _, f := range fs.Food {
		v.Food[f.ID] = f
	}
	v.Trails = make(map[string]TrailView, len(fs.Trails))
	for _, t := range fs.Trails {
		v.Trails[t.ID] = t
	}
	v.baseline = true
}

// ApplyDelta merges an incremental change set into the view. Applying the
// same delta twice leaves the same entity-id set as applying it once.
func (v *WorldView) ApplyDelta(d *DeltaUpdate) error {
	if !v.baseline {
		return ErrNoBaseline
	}

	v.Tick = d.Tick
	for _, a := range d.UpdatedAnts {
		v.Ants[a.ID] = a
	}
	for _, id := range d.RemovedAntIDs {
		delete(v.Ants, id)
	}
	for _, c := range d.UpdatedColonies {
		v.Colonies[c.ID] = c
	}
	for _, f := range d.UpdatedFood {
		v.Food[f.ID] = f
	}
	for _, id := range d.RemovedFoodIDs {
		delete(v.Food, id)
	}

	// Trails arrive as a full replacement list; a nil list means the
	// sender omitted the field and the current set stands.
	if d.Trails != nil {
		v.Trails = make(map[string]TrailView, len(d.Trails))
		for _, t := range d.Trails {
			v.Trails[t.ID] = t
		}
	}
	return nil
}
