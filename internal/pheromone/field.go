package pheromone

import (
	"math"
	"sync"
	"time"

	"github.com/talgya/anthill/internal/world"
)

// Field holds all live trails for a simulation. Reads and writes are
// mutex-guarded; reinforcement from concurrent batches is best-effort and two
// ants strengthening the same trail in one tick may interleave.
type Field struct {
	mu     sync.Mutex
	trails map[string]*Trail
}

// NewField creates an empty trail field.
func NewField() *Field {
	return &Field{trails: make(map[string]*Trail)}
}

// Load replaces the field contents, used when resuming from the store.
func (f *Field) Load(trails []*Trail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trails = make(map[string]*Trail, len(trails))
	for _, t := range trails {
		f.trails[t.ID] = t
	}
}

// Count returns the number of live trails.
func (f *Field) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.trails)
}

// Snapshot returns a copy of every live trail.
func (f *Field) Snapshot() []*Trail {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Trail, 0, len(f.trails))
	for _, t := range f.trails {
		c := *t
		out = append(out, &c)
	}
	return out
}

// Decay applies one tick of linear decay to every trail.
func (f *Field) Decay() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.trails {
		t.Decay()
	}
}

// Cleanup removes trails whose strength has fallen to the epsilon or whose
// expiry has elapsed, returning the removed ids.
func (f *Field) Cleanup(epsilon float64, now time.Time) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []string
	for id, t := range f.trails {
		if t.Strength <= epsilon || t.Expired(now) {
			delete(f.trails, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Deposit lays a trail of the given kind at pos for a colony. If a same-kind
// trail of that colony already sits within radius and above minStrength it is
// reinforced instead of duplicated. Returns the affected trail and whether an
// existing one was reinforced.
func (f *Field) Deposit(simID, colonyID string, pos world.Vec2, kind Kind, radius, minStrength float64, now time.Time) (*Trail, bool) {
	return f.DepositWithStrength(simID, colonyID, pos, kind, radius, minStrength, DefaultParams(kind).InitialStrength, now)
}

// DepositWithStrength is Deposit with an explicit initial strength, used for
// discovery trails that start stronger than the kind's default.
func (f *Field) DepositWithStrength(simID, colonyID string, pos world.Vec2, kind Kind, radius, minStrength, initial float64, now time.Time) (*Trail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var nearest *Trail
	nearestDist := radius
	for _, t := range f.trails {
		if t.ColonyID != colonyID || t.Kind != kind || t.Strength < minStrength {
			continue
		}
		if d := world.Dist(t.Pos, pos); d <= nearestDist {
			nearest = t
			nearestDist = d
		}
	}

	if nearest != nil {
		nearest.Reinforce(initial / 2)
		return nearest, true
	}

	t := NewTrail(simID, colonyID, pos, kind, now)
	if initial > t.Strength {
		t.Strength = math.Min(initial, MaxStrength)
	}
	f.trails[t.ID] = t
	return t, false
}

// Influence sums the pull of a colony's trails within radius of a point.
// Each trail contributes a unit direction from the query point toward the
// trail, weighted by strength with inverse-distance falloff. The returned
// heading is the atan2 of the summed vector; strength is its magnitude. A
// zero-strength result means no trail qualified.
func (f *Field) Influence(pos world.Vec2, colonyID string, kind Kind, radius float64) (heading, strength float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var vx, vy float64
	for _, t := range f.trails {
		if t.ColonyID != colonyID || t.Kind != kind || t.Strength <= 0 {
			continue
		}
		d := world.Dist(pos, t.Pos)
		if d > radius {
			continue
		}
		w := t.Strength / (1 + d)
		if d < 1e-9 {
			// Standing on the trail: weight with no direction.
			continue
		}
		vx += w * (t.Pos.X - pos.X) / d
		vy += w * (t.Pos.Y - pos.Y) / d
	}

	strength = math.Hypot(vx, vy)
	if strength == 0 {
		return 0, 0
	}
	return math.Atan2(vy, vx), strength
}
