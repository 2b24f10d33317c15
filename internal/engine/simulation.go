// Simulation ties the subsystems together and runs them each tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/anthill/internal/ants"
	"github.com/talgya/anthill/internal/cache"
	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/config"
	"github.com/talgya/anthill/internal/environment"
	"github.com/talgya/anthill/internal/metrics"
	"github.com/talgya/anthill/internal/persistence"
	"github.com/talgya/anthill/internal/pheromone"
	"github.com/talgya/anthill/internal/protocol"
	"github.com/talgya/anthill/internal/world"
)

// Broadcaster fans simulation frames out to observers.
type Broadcaster interface {
	Broadcast(msg any)
	SubscriberCount() int
}

// Simulation holds the live world state and sequences the per-tick passes:
// behavior, pheromone, environment, colony economy, stats, broadcast.
type Simulation struct {
	cfg     *config.Config
	db      *persistence.DB
	cache   *cache.SpatialCache
	field   *pheromone.Field
	env     *environment.Environment
	eval    *ants.Evaluator
	economy colony.Economy
	hub     Broadcaster
	mx      *metrics.Collector
	rng     *rand.Rand

	mu       sync.Mutex
	sim      *world.Simulation
	antList  []*ants.Ant
	prevFood map[string]float64 // Amounts at last delta, for change detection
}

// New assembles a simulation from its collaborators. The metrics collector
// and broadcaster may be nil; both are then skipped.
func New(cfg *config.Config, db *persistence.DB, hub Broadcaster, mx *metrics.Collector) *Simulation {
	field := pheromone.NewField()
	spatial := cache.New(db, cfg.Cache.TTL())
	return &Simulation{
		cfg:   cfg,
		db:    db,
		cache: spatial,
		field: field,
		env:   environment.New(cfg.Simulation.Seed, cfg.Environment.FoodMaxAmount),
		eval:  ants.NewEvaluator(spatial, field, cfg.Behavior, cfg.Simulation.Seed),
		economy: colony.Economy{
			ConsumptionPerCapita: cfg.Colony.ConsumptionPerCapita,
			SpawnThreshold:       cfg.Colony.SpawnThreshold,
			PopulationCap:        cfg.Colony.PopulationCap,
		},
		hub:      hub,
		mx:       mx,
		rng:      rand.New(rand.NewSource(cfg.Simulation.Seed)),
		prevFood: make(map[string]float64),
	}
}

// Start resumes the persisted active simulation or creates a fresh one,
// bootstraps colonies and food when absent, and primes the cache and
// pheromone field. It must succeed before the scheduler runs.
func (s *Simulation) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, err := s.db.ActiveSimulation(ctx)
	if err != nil {
		return fmt.Errorf("load active simulation: %w", err)
	}
	if sim == nil {
		sim = world.NewSimulation(s.cfg.Simulation.Width, s.cfg.Simulation.Height)
		if err := s.db.InsertSimulation(ctx, sim); err != nil {
			return fmt.Errorf("create simulation: %w", err)
		}
		slog.Info("created simulation", "id", sim.ID,
			"width", sim.Width, "height", sim.Height)
	} else {
		slog.Info("resuming simulation", "id", sim.ID, "tick", sim.Tick)
	}
	s.sim = sim

	cols, err := s.db.ColoniesBySimulation(ctx, sim.ID)
	if err != nil {
		return fmt.Errorf("load colonies: %w", err)
	}
	if len(cols) == 0 {
		if err := s.bootstrap(ctx); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	if err := s.cache.Initialize(ctx, sim.ID); err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}

	s.antList, err = s.db.AntsBySimulation(ctx, sim.ID)
	if err != nil {
		return fmt.Errorf("load ants: %w", err)
	}

	// Drop trails that went stale while the process was down, then load
	// the survivors into the field.
	now := time.Now()
	if err := s.db.DeleteTrailsBelow(ctx, sim.ID, s.cfg.Pheromone.CleanupEpsilon, now); err != nil {
		return fmt.Errorf("prune trails: %w", err)
	}
	trails, err := s.db.TrailsBySimulation(ctx, sim.ID)
	if err != nil {
		return fmt.Errorf("load trails: %w", err)
	}
	s.field.Load(trails)

	slog.Info("simulation ready", "id", sim.ID, "tick", sim.Tick,
		"ants", len(s.antList), "colonies", len(s.cache.Colonies()),
		"food", len(s.cache.FoodSources()), "trails", s.field.Count())
	return nil
}

// bootstrap creates the fixed colony pair with seed populations and tops up
// food sources to the configured floor. Caller holds the lock.
func (s *Simulation) bootstrap(ctx context.Context) error {
	bounds := s.sim.Bounds()
	pair := colony.Bootstrap(s.sim.ID, bounds)
	for _, col := range pair {
		if err := s.db.InsertColony(ctx, col); err != nil {
			return err
		}
		for i := 0; i < s.cfg.Colony.InitialPopulation; i++ {
			a := ants.SpawnNear(s.sim.ID, col.ID, ants.RoleWorker, col.Center, col.Radius, s.rng)
			if i%5 == 4 {
				// Every fifth founder is a scout to seed exploration.
				a.Role = ants.RoleScout
			}
			if err := s.db.InsertAnt(ctx, a); err != nil {
				return err
			}
		}
		slog.Info("bootstrapped colony", "id", col.ID,
			"x", col.Center.X, "y", col.Center.Y,
			"resources", col.TotalResources())
	}

	existing, err := s.db.FoodBySimulation(ctx, s.sim.ID)
	if err != nil {
		return err
	}
	active := 0
	for _, f := range existing {
		if !f.Exhausted() {
			active++
		}
	}
	if missing := s.cfg.Environment.FoodFloor - active; missing > 0 {
		for _, f := range s.env.SpawnFood(s.sim.ID, bounds, missing) {
			if err := s.db.InsertFoodSource(ctx, f); err != nil {
				return err
			}
		}
		slog.Info("seeded food sources", "count", missing)
	}
	return nil
}

// Tick runs one complete pass. Transient per-entity failures are logged and
// counted, never aborting the tick.
func (s *Simulation) Tick(ctx context.Context, tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	s.sim.Tick = tick
	s.sim.AdvanceClock()
	s.cache.RefreshIfNeeded(ctx)

	// A simulation with no colonies re-bootstraps before normal processing.
	if len(s.cache.Colonies()) == 0 {
		if err := s.bootstrap(ctx); err != nil {
			slog.Error("re-bootstrap failed", "error", err)
			return
		}
		if err := s.cache.ForceRefresh(ctx); err != nil {
			slog.Error("cache refresh after bootstrap failed", "error", err)
			return
		}
		antList, err := s.db.AntsBySimulation(ctx, s.sim.ID)
		if err != nil {
			slog.Error("ant reload after bootstrap failed", "error", err)
			return
		}
		s.antList = antList
	}

	eff := environment.CurrentEffects(s.sim)
	result := s.eval.RunPass(s.antList, eff, tick)
	s.sim.FoodCollected += result.Delivered

	s.pheromonePass(tick)
	s.environmentPass(ctx, tick)
	s.colonyPass(ctx, tick)

	for _, id := range result.DepletedFood {
		if err := s.db.DeleteFoodSource(ctx, id); err != nil {
			slog.Warn("depleted food delete failed", "food", id, "error", err)
		}
	}

	s.updateStats(tick, result, time.Since(start))

	if s.cfg.Simulation.FlushEvery > 0 && tick%s.cfg.Simulation.FlushEvery == 0 {
		s.flush(ctx)
	}

	s.broadcast(tick, result)
}

// pheromonePass decays the field, lays trails for carrying ants on the
// deposit cadence, and evicts trails below the cleanup epsilon.
func (s *Simulation) pheromonePass(tick uint64) {
	s.field.Decay()

	if s.cfg.Pheromone.DepositEvery > 0 && tick%s.cfg.Pheromone.DepositEvery == 0 {
		now := time.Now()
		for _, a := range s.antList {
			if a.State != ants.StateCarryingFood {
				continue
			}
			s.field.Deposit(s.sim.ID, a.ColonyID, a.Pos, pheromone.KindFood,
				s.cfg.Pheromone.ReinforceRadius, s.cfg.Pheromone.ReinforceMin, now)
		}
	}

	removed := s.field.Cleanup(s.cfg.Pheromone.CleanupEpsilon, time.Now())
	if len(removed) > 0 {
		slog.Debug("trails evicted", "count", len(removed))
	}
}

func (s *Simulation) environmentPass(ctx context.Context, tick uint64) {
	s.env.RegeneratePass(s.cache.FoodSources())

	if s.cfg.Environment.WeatherEvery > 0 && tick%s.cfg.Environment.WeatherEvery == 0 {
		s.env.EvolveWeather(s.sim)
	}

	if s.cfg.Environment.FoodSpawnEvery > 0 && tick%s.cfg.Environment.FoodSpawnEvery == 0 {
		active := len(s.cache.FoodSources())
		if missing := s.cfg.Environment.FoodFloor - active; missing > 0 {
			for _, f := range s.env.SpawnFood(s.sim.ID, s.sim.Bounds(), missing) {
				if err := s.db.InsertFoodSource(ctx, f); err != nil {
					slog.Warn("food insert failed", "error", err)
					continue
				}
				s.cache.AddFoodSource(f)
			}
			slog.Info("spawned replacement food", "count", missing, "tick", tick)
		}
	}
}

// colonyPass resynchronizes populations every tick and runs consumption and
// spawning on their cadences.
func (s *Simulation) colonyPass(ctx context.Context, tick uint64) {
	living := make(map[string]int)
	for _, a := range s.antList {
		if a.Alive() {
			living[a.ColonyID]++
		}
	}

	for _, col := range s.cache.Colonies() {
		s.economy.Resync(col, living[col.ID])

		if s.cfg.Colony.ConsumeEvery > 0 && tick%s.cfg.Colony.ConsumeEvery == 0 {
			s.economy.Consume(col)
		}

		if s.cfg.Colony.SpawnEvery > 0 && tick%s.cfg.Colony.SpawnEvery == 0 &&
			s.economy.ShouldSpawn(col) {
			a := ants.SpawnNear(s.sim.ID, col.ID, ants.RoleWorker, col.Center, col.Radius, s.rng)
			if err := s.db.InsertAnt(ctx, a); err != nil {
				slog.Warn("spawn insert failed", "colony", col.ID, "error", err)
				continue
			}
			s.antList = append(s.antList, a)
			col.Population++
			slog.Info("colony spawned worker", "colony", col.ID,
				"population", col.Population, "tick", tick)
		}
	}
}

func (s *Simulation) updateStats(tick uint64, result *ants.PassResult, elapsed time.Duration) {
	living := 0
	energies := make([]float64, 0, len(s.antList))
	for _, a := range s.antList {
		if a.Alive() {
			living++
			energies = append(energies, a.Energy)
		}
	}

	if s.mx != nil {
		s.mx.TicksTotal.Inc()
		s.mx.TickDuration.Observe(elapsed.Seconds())
		s.mx.EvalFailures.Add(float64(result.Failures))
		s.mx.LivingAnts.Set(float64(living))
		s.mx.Colonies.Set(float64(len(s.cache.Colonies())))
		s.mx.FoodSources.Set(float64(len(s.cache.FoodSources())))
		s.mx.ActiveTrails.Set(float64(s.field.Count()))
		s.mx.FoodCollected.Set(s.sim.FoodCollected)
		if s.hub != nil {
			s.mx.Subscribers.Set(float64(s.hub.SubscriberCount()))
		}
	}

	if s.cfg.Simulation.ReportEvery > 0 && tick%s.cfg.Simulation.ReportEvery == 0 {
		meanEnergy := 0.0
		if len(energies) > 0 {
			meanEnergy = stat.Mean(energies, nil)
		}
		slog.Info("simulation report",
			"tick", humanize.Comma(int64(tick)),
			"weather", world.WeatherName(s.sim.Weather),
			"ants", humanize.Comma(int64(living)),
			"meanEnergy", fmt.Sprintf("%.1f", meanEnergy),
			"colonies", len(s.cache.Colonies()),
			"food", len(s.cache.FoodSources()),
			"trails", s.field.Count(),
			"collected", humanize.CommafWithDigits(s.sim.FoodCollected, 1))
	}
}

// flush persists the dirty in-memory state. Failures are logged; the next
// flush retries the same state.
func (s *Simulation) flush(ctx context.Context) {
	if err := s.db.UpdateSimulation(ctx, s.sim); err != nil {
		slog.Warn("simulation flush failed", "error", err)
	}
	if err := s.db.UpdateAnts(ctx, s.antList); err != nil {
		slog.Warn("ant flush failed", "error", err)
	}
	for _, col := range s.cache.Colonies() {
		if err := s.db.UpdateColony(ctx, col); err != nil {
			slog.Warn("colony flush failed", "colony", col.ID, "error", err)
		}
	}
	for _, f := range s.cache.FoodSources() {
		if err := s.db.UpdateFoodSource(ctx, f); err != nil {
			slog.Warn("food flush failed", "food", f.ID, "error", err)
		}
	}
	if err := s.db.ReplaceTrails(ctx, s.sim.ID, s.field.Snapshot()); err != nil {
		slog.Warn("trail flush failed", "error", err)
	}
}

// Flush persists current state immediately, for shutdown.
func (s *Simulation) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return
	}
	s.flush(ctx)
}

func (s *Simulation) broadcast(tick uint64, result *ants.PassResult) {
	if s.hub == nil {
		return
	}

	delta := &protocol.DeltaUpdate{
		Type:          protocol.TypeDeltaUpdate,
		Tick:          tick,
		RemovedAntIDs: result.Died,
	}

	for _, a := range s.antList {
		if a.Alive() {
			delta.UpdatedAnts = append(delta.UpdatedAnts, protocol.AntViewOf(a))
		}
	}
	for _, col := range s.cache.Colonies() {
		delta.UpdatedColonies = append(delta.UpdatedColonies, protocol.ColonyViewOf(col))
	}

	// Food changes are sparse; diff against the last broadcast amounts.
	current := make(map[string]float64)
	for _, f := range s.cache.FoodSources() {
		current[f.ID] = f.Amount
		if prev, ok := s.prevFood[f.ID]; !ok || prev != f.Amount {
			delta.UpdatedFood = append(delta.UpdatedFood, protocol.FoodViewOf(f))
		}
	}
	for id := range s.prevFood {
		if _, ok := current[id]; !ok {
			delta.RemovedFoodIDs = append(delta.RemovedFoodIDs, id)
		}
	}
	s.prevFood = current

	// Trails go out as a full replacement list every delta.
	trails := s.field.Snapshot()
	delta.Trails = make([]protocol.TrailView, 0, len(trails))
	for _, t := range trails {
		delta.Trails = append(delta.Trails, protocol.TrailViewOf(t))
	}

	s.hub.Broadcast(delta)

	if s.cfg.Simulation.StatusEvery > 0 && tick%s.cfg.Simulation.StatusEvery == 0 {
		s.hub.Broadcast(&protocol.SimulationStatus{
			Type:    protocol.TypeSimulationStatus,
			Running: true,
			Tick:    tick,
		})
	}
}

// Snapshot builds a full state frame for the subscribe/resync handshake.
func (s *Simulation) Snapshot(simID string) (*protocol.FullState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sim == nil {
		return nil, fmt.Errorf("simulation not started")
	}
	if simID != "" && simID != s.sim.ID {
		return nil, fmt.Errorf("unknown simulation %q", simID)
	}

	fs := &protocol.FullState{
		Type:       protocol.TypeFullState,
		Tick:       s.sim.Tick,
		Simulation: protocol.SimulationViewOf(s.sim),
	}
	for _, a := range s.antList {
		if a.Alive() {
			fs.Ants = append(fs.Ants, protocol.AntViewOf(a))
		}
	}
	for _, col := range s.cache.Colonies() {
		fs.Colonies = append(fs.Colonies, protocol.ColonyViewOf(col))
	}
	for _, f := range s.cache.FoodSources() {
		fs.Food = append(fs.Food, protocol.FoodViewOf(f))
	}
	for _, t := range s.field.Snapshot() {
		fs.Trails = append(fs.Trails, protocol.TrailViewOf(t))
	}
	return fs, nil
}

// CurrentTick returns the last processed tick.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return 0
	}
	return s.sim.Tick
}
