// Behavior state machine and the batched evaluation pass.
//
// State flow: wandering → {seeking_food, following_trail, patrolling,
// exploring} → seeking_food → carrying_food → wandering. dead is terminal
// and reachable from any state once aging is enabled.
package ants

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/talgya/anthill/internal/cache"
	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/config"
	"github.com/talgya/anthill/internal/environment"
	"github.com/talgya/anthill/internal/pheromone"
	"github.com/talgya/anthill/internal/world"
)

// DiscoveryStrength is the initial strength of the trail laid at a
// collection point. Stronger than the en-route deposit so fresh finds
// recruit aggressively.
const DiscoveryStrength = 80

// Evaluator runs the behavior pass over a simulation's ants.
type Evaluator struct {
	Cache *cache.SpatialCache
	Field *pheromone.Field
	Cfg   config.BehaviorConfig

	seed int64
}

// NewEvaluator creates an evaluator over the given cache and trail field.
func NewEvaluator(c *cache.SpatialCache, f *pheromone.Field, cfg config.BehaviorConfig, seed int64) *Evaluator {
	return &Evaluator{Cache: c, Field: f, Cfg: cfg, seed: seed}
}

// PassResult aggregates what one behavior pass did. The goroutines of a
// batch share one PassResult, so the mutators are mutex-guarded.
type PassResult struct {
	mu sync.Mutex

	Evaluated    int
	Failures     int
	Died         []string // Ant ids that reached the terminal state this pass
	DepletedFood []string // Food source ids exhausted this pass
	Delivered    float64  // Total resources deposited at colonies
}

func (r *PassResult) recordFailure(antID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures++
	slog.Warn("ant evaluation failed", "ant", antID, "error", err)
}

func (r *PassResult) recordDeath(antID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Died = append(r.Died, antID)
}

func (r *PassResult) recordDepleted(foodID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DepletedFood = append(r.DepletedFood, foodID)
}

func (r *PassResult) recordDelivery(amount float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Delivered += amount
}

// RunPass evaluates every living ant against the start-of-tick cache
// snapshot. Ants are partitioned into fixed-size batches; each batch fans
// out one goroutine per ant and waits for all of them, batches run
// sequentially. A failure evaluating one ant is isolated and counted,
// never aborting the batch or the tick.
func (e *Evaluator) RunPass(antList []*Ant, eff environment.Effects, tick uint64) *PassResult {
	result := &PassResult{}
	batchSize := e.Cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for start := 0; start < len(antList); start += batchSize {
		end := start + batchSize
		if end > len(antList) {
			end = len(antList)
		}

		var wg sync.WaitGroup
		for i, a := range antList[start:end] {
			if !a.Alive() {
				continue
			}
			wg.Add(1)
			go func(a *Ant, rngSeed int64) {
				defer wg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						result.recordFailure(a.ID, fmt.Errorf("panic: %v", rec))
					}
				}()
				rng := rand.New(rand.NewSource(rngSeed))
				if err := e.Evaluate(a, rng, eff, result); err != nil {
					result.recordFailure(a.ID, err)
				}
			}(a, e.seed+int64(tick)*65_537+int64(start+i))
		}
		wg.Wait()
		result.Evaluated += end - start
	}
	return result
}

// Evaluate advances one ant one tick.
func (e *Evaluator) Evaluate(a *Ant, rng *rand.Rand, eff environment.Effects, result *PassResult) error {
	if a.State == StateDead {
		return nil
	}

	caste := CasteOf(a.Role)

	if e.Cfg.AgingEnabled {
		a.Age++
		a.Energy -= e.Cfg.EnergyDecay
		clampEnergy(a)
		if a.Energy <= 0 || a.Health <= 0 || a.Age > caste.Lifespan {
			a.State = StateDead
			a.Target = nil
			result.recordDeath(a.ID)
			return nil
		}
	}

	bounds := e.Cache.Bounds()
	detection := caste.DetectionRadius * eff.Visibility
	speed := a.Speed * caste.SpeedMult * eff.Speed

	switch a.State {
	case StateWandering, StatePatrolling, StateExploring:
		return e.roam(a, rng, bounds, caste, detection, speed)
	case StateFollowingTrail:
		return e.followTrail(a, rng, bounds, caste, detection, speed)
	case StateSeekingFood:
		return e.seekFood(a, bounds, speed, result)
	case StateCarryingFood:
		return e.deliver(a, bounds, speed, result)
	default:
		return fmt.Errorf("unknown behavior state %d", a.State)
	}
}

// roam handles the undirected states: look for food, then for a trail, then
// move in the role's idle style.
func (e *Evaluator) roam(a *Ant, rng *rand.Rand, bounds world.Bounds, caste Caste, detection, speed float64) error {
	if food := e.Cache.NearestFood(a.Pos, detection); food != nil {
		a.State = StateSeekingFood
		a.Target = &Target{Kind: TargetFood, ID: food.ID, Pos: food.Pos}
		return nil
	}

	heading, strength := e.Field.Influence(a.Pos, a.ColonyID, pheromone.KindFood, detection)
	if strength >= caste.FollowThreshold {
		a.State = StateFollowingTrail
		TrailWalk(a, bounds, rng, heading, strength, speed, e.Cfg.TrailSpeedBonusCap)
		return nil
	}

	switch a.Role {
	case RoleScout:
		a.State = StateExploring
		home := a.Pos
		if col := e.Cache.Colony(a.ColonyID); col != nil {
			home = col.Center
		}
		LevyWalk(a, bounds, home, rng, e.Cfg.LevyMu, e.Cfg.LevyMinStep, e.Cfg.LevyMaxStep, speed)
	case RoleSoldier:
		a.State = StatePatrolling
		BoundedWalk(a, bounds, rng, e.Cfg.TurnProbability, e.Cfg.TurnArc, speed)
	default:
		a.State = StateWandering
		BoundedWalk(a, bounds, rng, e.Cfg.TurnProbability, e.Cfg.TurnArc, speed)
	}
	return nil
}

// followTrail keeps the ant on a trail until it fades or food appears.
func (e *Evaluator) followTrail(a *Ant, rng *rand.Rand, bounds world.Bounds, caste Caste, detection, speed float64) error {
	if food := e.Cache.NearestFood(a.Pos, detection); food != nil {
		a.State = StateSeekingFood
		a.Target = &Target{Kind: TargetFood, ID: food.ID, Pos: food.Pos}
		return nil
	}

	heading, strength := e.Field.Influence(a.Pos, a.ColonyID, pheromone.KindFood, detection)
	if strength < caste.FollowThreshold {
		a.State = StateWandering
		BoundedWalk(a, bounds, rng, e.Cfg.TurnProbability, e.Cfg.TurnArc, speed)
		return nil
	}
	TrailWalk(a, bounds, rng, heading, strength, speed, e.Cfg.TrailSpeedBonusCap)
	return nil
}

// seekFood steers toward the targeted source and collects on arrival.
func (e *Evaluator) seekFood(a *Ant, bounds world.Bounds, speed float64, result *PassResult) error {
	if a.Target == nil || a.Target.Kind != TargetFood {
		a.State = StateWandering
		a.Target = nil
		return nil
	}

	remaining := SteerToward(a, bounds, a.Target.Pos, speed)
	if remaining > e.Cfg.CollectRadius {
		return nil
	}

	taken, depleted := e.Cache.CollectFood(a.Target.ID, e.Cfg.CollectAmount)
	if taken == 0 {
		// Another ant emptied it first, or the cache refreshed it away.
		a.State = StateWandering
		a.Target = nil
		return nil
	}
	if depleted {
		result.recordDepleted(a.Target.ID)
	}

	a.Carried[colony.ResourceFood] += taken
	e.Field.DepositWithStrength(a.SimulationID, a.ColonyID, a.Pos, pheromone.KindFood,
		e.Cfg.CollectRadius, 0, DiscoveryStrength, time.Now())

	col := e.Cache.Colony(a.ColonyID)
	if col == nil {
		a.State = StateWandering
		a.Target = nil
		return fmt.Errorf("colony %s missing from cache", a.ColonyID)
	}
	a.State = StateCarryingFood
	a.Target = &Target{Kind: TargetColony, ID: col.ID, Pos: col.Center}
	return nil
}

// deliver steers home and deposits everything carried on arrival.
func (e *Evaluator) deliver(a *Ant, bounds world.Bounds, speed float64, result *PassResult) error {
	col := e.Cache.Colony(a.ColonyID)
	if col == nil {
		a.State = StateWandering
		a.Target = nil
		return fmt.Errorf("colony %s missing from cache", a.ColonyID)
	}

	arrival := e.Cfg.DeliverRadius
	if col.Radius > arrival {
		arrival = col.Radius
	}
	remaining := SteerToward(a, bounds, col.Center, speed)
	if remaining > arrival {
		return nil
	}

	total := a.CarriedTotal()
	if total > 0 && e.Cache.DepositResources(a.ColonyID, a.Carried) {
		result.recordDelivery(total)
	}
	a.Carried = make(map[colony.ResourceKind]float64)
	a.Energy += e.Cfg.EnergyRestore
	clampEnergy(a)
	a.State = StateWandering
	a.Target = nil
	return nil
}
