// Package persistence provides the SQLite-backed entity store.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/anthill/internal/ants"
	"github.com/talgya/anthill/internal/colony"
	"github.com/talgya/anthill/internal/environment"
	"github.com/talgya/anthill/internal/pheromone"
	"github.com/talgya/anthill/internal/world"
)

// DB wraps a SQLite connection for simulation state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulations (
		id TEXT PRIMARY KEY,
		width REAL NOT NULL,
		height REAL NOT NULL,
		tick INTEGER NOT NULL,
		active INTEGER NOT NULL,
		weather INTEGER NOT NULL,
		weather_intensity REAL NOT NULL,
		season INTEGER NOT NULL,
		time_of_day REAL NOT NULL,
		food_collected REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS colonies (
		id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		center_x REAL NOT NULL,
		center_y REAL NOT NULL,
		radius REAL NOT NULL,
		territory_radius REAL NOT NULL,
		population INTEGER NOT NULL,
		resources_json TEXT NOT NULL,
		aggression REAL NOT NULL,
		active INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ants (
		id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		colony_id TEXT NOT NULL,
		role INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		heading REAL NOT NULL,
		speed REAL NOT NULL,
		health REAL NOT NULL,
		energy REAL NOT NULL,
		age INTEGER NOT NULL,
		state INTEGER NOT NULL,
		target_json TEXT,
		carried_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS food_sources (
		id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		amount REAL NOT NULL,
		max_amount REAL NOT NULL,
		regen_rate REAL NOT NULL,
		renewable INTEGER NOT NULL,
		nutrition REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pheromone_trails (
		id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		colony_id TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		kind INTEGER NOT NULL,
		strength REAL NOT NULL,
		decay_rate REAL NOT NULL,
		expires_at INTEGER NOT NULL,
		source_ant_id TEXT,
		target_food_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_colonies_sim ON colonies(simulation_id, active);
	CREATE INDEX IF NOT EXISTS idx_ants_sim ON ants(simulation_id);
	CREATE INDEX IF NOT EXISTS idx_ants_colony_state ON ants(colony_id, state);
	CREATE INDEX IF NOT EXISTS idx_food_sim ON food_sources(simulation_id);
	CREATE INDEX IF NOT EXISTS idx_trails_sim ON pheromone_trails(simulation_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// ── Simulations ──────────────────────────────────────────────────────

type simulationRow struct {
	ID               string  `db:"id"`
	Width            float64 `db:"width"`
	Height           float64 `db:"height"`
	Tick             uint64  `db:"tick"`
	Active           bool    `db:"active"`
	Weather          uint8   `db:"weather"`
	WeatherIntensity float64 `db:"weather_intensity"`
	Season           uint8   `db:"season"`
	TimeOfDay        float64 `db:"time_of_day"`
	FoodCollected    float64 `db:"food_collected"`
}

func (r simulationRow) entity() *world.Simulation {
	return &world.Simulation{
		ID:               r.ID,
		Width:            r.Width,
		Height:           r.Height,
		Tick:             r.Tick,
		Active:           r.Active,
		Weather:          world.WeatherKind(r.Weather),
		WeatherIntensity: r.WeatherIntensity,
		Season:           r.Season,
		TimeOfDay:        r.TimeOfDay,
		FoodCollected:    r.FoodCollected,
	}
}

// ActiveSimulation returns the active simulation, or nil when none exists.
func (db *DB) ActiveSimulation(ctx context.Context) (*world.Simulation, error) {
	var row simulationRow
	err := db.conn.GetContext(ctx, &row,
		"SELECT * FROM simulations WHERE active = 1 LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active simulation: %w", err)
	}
	return row.entity(), nil
}

// SimulationByID returns a simulation by id.
func (db *DB) SimulationByID(ctx context.Context, id string) (*world.Simulation, error) {
	var row simulationRow
	if err := db.conn.GetContext(ctx, &row,
		"SELECT * FROM simulations WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("query simulation %s: %w", id, err)
	}
	return row.entity(), nil
}

// InsertSimulation writes a new simulation record.
func (db *DB) InsertSimulation(ctx context.Context, s *world.Simulation) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO simulations
		(id, width, height, tick, active, weather, weather_intensity, season, time_of_day, food_collected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Width, s.Height, s.Tick, s.Active, uint8(s.Weather),
		s.WeatherIntensity, s.Season, s.TimeOfDay, s.FoodCollected,
	)
	if err != nil {
		return fmt.Errorf("insert simulation %s: %w", s.ID, err)
	}
	return nil
}

// UpdateSimulation writes the mutable simulation fields.
func (db *DB) UpdateSimulation(ctx context.Context, s *world.Simulation) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE simulations SET
		tick = ?, active = ?, weather = ?, weather_intensity = ?,
		season = ?, time_of_day = ?, food_collected = ?
		WHERE id = ?`,
		s.Tick, s.Active, uint8(s.Weather), s.WeatherIntensity,
		s.Season, s.TimeOfDay, s.FoodCollected, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update simulation %s: %w", s.ID, err)
	}
	return nil
}

// ── Colonies ─────────────────────────────────────────────────────────

type colonyRow struct {
	ID              string  `db:"id"`
	SimulationID    string  `db:"simulation_id"`
	CenterX         float64 `db:"center_x"`
	CenterY         float64 `db:"center_y"`
	Radius          float64 `db:"radius"`
	TerritoryRadius float64 `db:"territory_radius"`
	Population      int     `db:"population"`
	ResourcesJSON   string  `db:"resources_json"`
	Aggression      float64 `db:"aggression"`
	Active          bool    `db:"active"`
}

func (r colonyRow) entity() (*colony.Colony, error) {
	resources := make(map[colony.ResourceKind]float64)
	if err := json.Unmarshal([]byte(r.ResourcesJSON), &resources); err != nil {
		return nil, fmt.Errorf("decode colony %s resources: %w", r.ID, err)
	}
	return &colony.Colony{
		ID:              r.ID,
		SimulationID:    r.SimulationID,
		Center:          world.Vec2{X: r.CenterX, Y: r.CenterY},
		Radius:          r.Radius,
		TerritoryRadius: r.TerritoryRadius,
		Population:      r.Population,
		Resources:       resources,
		Aggression:      r.Aggression,
		Active:          r.Active,
	}, nil
}

// ColoniesBySimulation returns the active colonies of a simulation.
func (db *DB) ColoniesBySimulation(ctx context.Context, simID string) ([]*colony.Colony, error) {
	var rows []colonyRow
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM colonies WHERE simulation_id = ? AND active = 1", simID); err != nil {
		return nil, fmt.Errorf("query colonies: %w", err)
	}
	out := make([]*colony.Colony, 0, len(rows))
	for _, r := range rows {
		c, err := r.entity()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// InsertColony writes a new colony record.
func (db *DB) InsertColony(ctx context.Context, c *colony.Colony) error {
	resources, _ := json.Marshal(c.Resources)
	_, err := db.conn.ExecContext(ctx, `INSERT INTO colonies
		(id, simulation_id, center_x, center_y, radius, territory_radius,
		 population, resources_json, aggression, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SimulationID, c.Center.X, c.Center.Y, c.Radius, c.TerritoryRadius,
		c.Population, string(resources), c.Aggression, c.Active,
	)
	if err != nil {
		return fmt.Errorf("insert colony %s: %w", c.ID, err)
	}
	return nil
}

// UpdateColony writes the mutable colony fields.
func (db *DB) UpdateColony(ctx context.Context, c *colony.Colony) error {
	resources, _ := json.Marshal(c.Resources)
	_, err := db.conn.ExecContext(ctx, `UPDATE colonies SET
		population = ?, resources_json = ?, aggression = ?, active = ?
		WHERE id = ?`,
		c.Population, string(resources), c.Aggression, c.Active, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update colony %s: %w", c.ID, err)
	}
	return nil
}

// ── Ants ─────────────────────────────────────────────────────────────

type antRow struct {
	ID           string         `db:"id"`
	SimulationID string         `db:"simulation_id"`
	ColonyID     string         `db:"colony_id"`
	Role         uint8          `db:"role"`
	PosX         float64        `db:"pos_x"`
	PosY         float64        `db:"pos_y"`
	Heading      float64        `db:"heading"`
	Speed        float64        `db:"speed"`
	Health       float64        `db:"health"`
	Energy       float64        `db:"energy"`
	Age          uint64         `db:"age"`
	State        uint8          `db:"state"`
	TargetJSON   sql.NullString `db:"target_json"`
	CarriedJSON  string         `db:"carried_json"`
}

func (r antRow) entity() (*ants.Ant, error) {
	carried := make(map[colony.ResourceKind]float64)
	if err := json.Unmarshal([]byte(r.CarriedJSON), &carried); err != nil {
		return nil, fmt.Errorf("decode ant %s carried: %w", r.ID, err)
	}
	var target *ants.Target
	if r.TargetJSON.Valid && r.TargetJSON.String != "" {
		target = &ants.Target{}
		if err := json.Unmarshal([]byte(r.TargetJSON.String), target); err != nil {
			return nil, fmt.Errorf("decode ant %s target: %w", r.ID, err)
		}
	}
	return &ants.Ant{
		ID:           r.ID,
		SimulationID: r.SimulationID,
		ColonyID:     r.ColonyID,
		Role:         ants.Role(r.Role),
		Pos:          world.Vec2{X: r.PosX, Y: r.PosY},
		Heading:      r.Heading,
		Speed:        r.Speed,
		Health:       r.Health,
		Energy:       r.Energy,
		Age:          r.Age,
		State:        ants.BehaviorState(r.State),
		Target:       target,
		Carried:      carried,
	}, nil
}

func antArgs(a *ants.Ant) ([]any, error) {
	carried, _ := json.Marshal(a.Carried)
	var target any
	if a.Target != nil {
		data, err := json.Marshal(a.Target)
		if err != nil {
			return nil, fmt.Errorf("encode ant %s target: %w", a.ID, err)
		}
		target = string(data)
	}
	return []any{
		a.ID, a.SimulationID, a.ColonyID, uint8(a.Role),
		a.Pos.X, a.Pos.Y, a.Heading, a.Speed, a.Health, a.Energy,
		a.Age, uint8(a.State), target, string(carried),
	}, nil
}

// AntsBySimulation returns every ant of a simulation, dead ones included.
func (db *DB) AntsBySimulation(ctx context.Context, simID string) ([]*ants.Ant, error) {
	var rows []antRow
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM ants WHERE simulation_id = ?", simID); err != nil {
		return nil, fmt.Errorf("query ants: %w", err)
	}
	out := make([]*ants.Ant, 0, len(rows))
	for _, r := range rows {
		a, err := r.entity()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// LivingAntCountByColony returns the number of non-dead ants in a colony.
func (db *DB) LivingAntCountByColony(ctx context.Context, colonyID string) (int, error) {
	var count int
	err := db.conn.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM ants WHERE colony_id = ? AND state != ?",
		colonyID, uint8(ants.StateDead))
	if err != nil {
		return 0, fmt.Errorf("count living ants: %w", err)
	}
	return count, nil
}

// InsertAnt writes a new ant record.
func (db *DB) InsertAnt(ctx context.Context, a *ants.Ant) error {
	args, err := antArgs(a)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO ants
		(id, simulation_id, colony_id, role, pos_x, pos_y, heading, speed,
		 health, energy, age, state, target_json, carried_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert ant %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAnts rewrites a batch of ants in one transaction.
func (db *DB) UpdateAnts(ctx context.Context, antList []*ants.Ant) error {
	if len(antList) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE ants SET
		colony_id = ?, pos_x = ?, pos_y = ?, heading = ?, speed = ?,
		health = ?, energy = ?, age = ?, state = ?, target_json = ?, carried_json = ?
		WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range antList {
		args, err := antArgs(a)
		if err != nil {
			return err
		}
		// antArgs order: id, sim, colony, role, posx, posy, heading, speed,
		// health, energy, age, state, target, carried.
		_, err = stmt.ExecContext(ctx,
			args[2], args[4], args[5], args[6], args[7],
			args[8], args[9], args[10], args[11], args[12], args[13],
			args[0],
		)
		if err != nil {
			return fmt.Errorf("update ant %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// ── Food sources ─────────────────────────────────────────────────────

type foodRow struct {
	ID           string  `db:"id"`
	SimulationID string  `db:"simulation_id"`
	PosX         float64 `db:"pos_x"`
	PosY         float64 `db:"pos_y"`
	Amount       float64 `db:"amount"`
	MaxAmount    float64 `db:"max_amount"`
	RegenRate    float64 `db:"regen_rate"`
	Renewable    bool    `db:"renewable"`
	Nutrition    float64 `db:"nutrition"`
}

func (r foodRow) entity() *environment.FoodSource {
	return &environment.FoodSource{
		ID:           r.ID,
		SimulationID: r.SimulationID,
		Pos:          world.Vec2{X: r.PosX, Y: r.PosY},
		Amount:       r.Amount,
		MaxAmount:    r.MaxAmount,
		RegenRate:    r.RegenRate,
		Renewable:    r.Renewable,
		Nutrition:    r.Nutrition,
	}
}

// FoodBySimulation returns every food source of a simulation, depleted
// records included; the spatial cache filters out exhausted ones.
func (db *DB) FoodBySimulation(ctx context.Context, simID string) ([]*environment.FoodSource, error) {
	var rows []foodRow
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM food_sources WHERE simulation_id = ?", simID); err != nil {
		return nil, fmt.Errorf("query food sources: %w", err)
	}
	out := make([]*environment.FoodSource, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entity())
	}
	return out, nil
}

// InsertFoodSource writes a new food source record.
func (db *DB) InsertFoodSource(ctx context.Context, f *environment.FoodSource) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO food_sources
		(id, simulation_id, pos_x, pos_y, amount, max_amount, regen_rate, renewable, nutrition)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SimulationID, f.Pos.X, f.Pos.Y, f.Amount, f.MaxAmount,
		f.RegenRate, f.Renewable, f.Nutrition,
	)
	if err != nil {
		return fmt.Errorf("insert food source %s: %w", f.ID, err)
	}
	return nil
}

// UpdateFoodSource writes the mutable food source fields.
func (db *DB) UpdateFoodSource(ctx context.Context, f *environment.FoodSource) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE food_sources SET amount = ? WHERE id = ?", f.Amount, f.ID)
	if err != nil {
		return fmt.Errorf("update food source %s: %w", f.ID, err)
	}
	return nil
}

// DeleteFoodSource removes a food source record.
func (db *DB) DeleteFoodSource(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM food_sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete food source %s: %w", id, err)
	}
	return nil
}

// ── Pheromone trails ─────────────────────────────────────────────────

type trailRow struct {
	ID           string         `db:"id"`
	SimulationID string         `db:"simulation_id"`
	ColonyID     string         `db:"colony_id"`
	PosX         float64        `db:"pos_x"`
	PosY         float64        `db:"pos_y"`
	Kind         uint8          `db:"kind"`
	Strength     float64        `db:"strength"`
	DecayRate    float64        `db:"decay_rate"`
	ExpiresAt    int64          `db:"expires_at"`
	SourceAntID  sql.NullString `db:"source_ant_id"`
	TargetFoodID sql.NullString `db:"target_food_id"`
}

func (r trailRow) entity() *pheromone.Trail {
	return &pheromone.Trail{
		ID:           r.ID,
		SimulationID: r.SimulationID,
		ColonyID:     r.ColonyID,
		Pos:          world.Vec2{X: r.PosX, Y: r.PosY},
		Kind:         pheromone.Kind(r.Kind),
		Strength:     r.Strength,
		DecayRate:    r.DecayRate,
		ExpiresAt:    time.Unix(r.ExpiresAt, 0),
		SourceAntID:  r.SourceAntID.String,
		TargetFoodID: r.TargetFoodID.String,
	}
}

// TrailsBySimulation returns every persisted trail of a simulation.
func (db *DB) TrailsBySimulation(ctx context.Context, simID string) ([]*pheromone.Trail, error) {
	var rows []trailRow
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM pheromone_trails WHERE simulation_id = ?", simID); err != nil {
		return nil, fmt.Errorf("query trails: %w", err)
	}
	out := make([]*pheromone.Trail, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entity())
	}
	return out, nil
}

// ReplaceTrails rewrites a simulation's trail set in one transaction.
// Trails churn every tick, so a full replace beats row-level diffing.
func (db *DB) ReplaceTrails(ctx context.Context, simID string, trails []*pheromone.Trail) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM pheromone_trails WHERE simulation_id = ?", simID); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO pheromone_trails
		(id, simulation_id, colony_id, pos_x, pos_y, kind, strength,
		 decay_rate, expires_at, source_ant_id, target_food_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trails {
		_, err := stmt.ExecContext(ctx,
			t.ID, t.SimulationID, t.ColonyID, t.Pos.X, t.Pos.Y, uint8(t.Kind),
			t.Strength, t.DecayRate, t.ExpiresAt.Unix(),
			nullable(t.SourceAntID), nullable(t.TargetFoodID),
		)
		if err != nil {
			return fmt.Errorf("insert trail %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteTrailsBelow removes trails at or below the strength epsilon or past
// their expiry.
func (db *DB) DeleteTrailsBelow(ctx context.Context, simID string, epsilon float64, now time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM pheromone_trails WHERE simulation_id = ? AND (strength <= ? OR expires_at <= ?)",
		simID, epsilon, now.Unix())
	if err != nil {
		return fmt.Errorf("cleanup trails: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ── Stats ────────────────────────────────────────────────────────────

// SimStats is the aggregate stats query surface.
type SimStats struct {
	TotalAnts             int     `json:"totalAnts"`
	ActiveColonies        int     `json:"activeColonies"`
	TotalFoodCollected    float64 `json:"totalFoodCollected"`
	ActivePheromoneTrails int     `json:"activePheromoneTrails"`
	CurrentTick           uint64  `json:"currentTick"`
}

// Stats returns the aggregate counters for a simulation.
func (db *DB) Stats(ctx context.Context, simID string) (SimStats, error) {
	var stats SimStats

	if err := db.conn.GetContext(ctx, &stats.TotalAnts,
		"SELECT COUNT(*) FROM ants WHERE simulation_id = ? AND state != ?",
		simID, uint8(ants.StateDead)); err != nil {
		return stats, fmt.Errorf("count ants: %w", err)
	}
	if err := db.conn.GetContext(ctx, &stats.ActiveColonies,
		"SELECT COUNT(*) FROM colonies WHERE simulation_id = ? AND active = 1", simID); err != nil {
		return stats, fmt.Errorf("count colonies: %w", err)
	}
	if err := db.conn.GetContext(ctx, &stats.ActivePheromoneTrails,
		"SELECT COUNT(*) FROM pheromone_trails WHERE simulation_id = ? AND strength > 0", simID); err != nil {
		return stats, fmt.Errorf("count trails: %w", err)
	}

	var row simulationRow
	if err := db.conn.GetContext(ctx, &row,
		"SELECT * FROM simulations WHERE id = ?", simID); err != nil {
		return stats, fmt.Errorf("query simulation: %w", err)
	}
	stats.TotalFoodCollected = row.FoodCollected
	stats.CurrentTick = row.Tick
	return stats, nil
}
