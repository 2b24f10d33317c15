// Movement models: bounded random walk, Lévy flight, and pheromone-biased
// walk. All of them reflect off the world edges.
package ants

import (
	"math"
	"math/rand"

	"github.com/talgya/anthill/internal/pheromone"
	"github.com/talgya/anthill/internal/world"
)

// BoundedWalk advances the ant one step of a bounded random walk: a small
// chance of a heading change within ±arc, then a step at the given speed.
func BoundedWalk(a *Ant, b world.Bounds, rng *rand.Rand, turnProb, turnArc, speed float64) {
	if rng.Float64() < turnProb {
		a.Heading = world.NormalizeHeading(a.Heading + (rng.Float64()*2-1)*turnArc)
	}
	pos := world.Step(a.Pos, a.Heading, speed)
	a.Pos, a.Heading = b.Reflect(pos, a.Heading)
}

// LevyStep draws a step length from a power-law distribution with exponent
// mu via inverse-transform sampling, clamped to [minStep, maxStep]. For
// 1 < mu ≤ 3 this produces the occasional long-range jump that makes Lévy
// search cover ground a diffusive walk never reaches.
func LevyStep(rng *rand.Rand, mu, minStep, maxStep float64) float64 {
	u := rng.Float64()
	step := minStep * math.Pow(1-u, -1/(mu-1))
	if step > maxStep {
		step = maxStep
	}
	return step
}

// LevyWalk advances the ant one Lévy-flight step, biased away from the
// colony center so scouts push outward instead of orbiting home.
func LevyWalk(a *Ant, b world.Bounds, home world.Vec2, rng *rand.Rand, mu, minStep, maxStep, speedMod float64) {
	outward := world.HeadingTo(home, a.Pos)
	if world.Dist(home, a.Pos) < 1e-9 {
		outward = (rng.Float64()*2 - 1) * math.Pi
	}
	a.Heading = world.NormalizeHeading(outward + (rng.Float64()*2-1)*math.Pi/2)

	step := LevyStep(rng, mu, minStep, maxStep) * speedMod
	pos := world.Step(a.Pos, a.Heading, step)
	a.Pos, a.Heading = b.Reflect(pos, a.Heading)
}

// TrailWalk advances the ant along a pheromone influence heading, blending
// in residual randomness inversely weighted by trail strength. Strong trails
// also grant a speed bonus, capped at bonusCap times base speed.
func TrailWalk(a *Ant, b world.Bounds, rng *rand.Rand, trailHeading, trailStrength, baseSpeed, bonusCap float64) {
	jitter := math.Pi / (1 + trailStrength)
	a.Heading = world.NormalizeHeading(trailHeading + (rng.Float64()*2-1)*jitter)

	bonus := 1 + trailStrength/pheromone.MaxStrength*(bonusCap-1)
	if bonus > bonusCap {
		bonus = bonusCap
	}
	pos := world.Step(a.Pos, a.Heading, baseSpeed*bonus)
	a.Pos, a.Heading = b.Reflect(pos, a.Heading)
}

// SteerToward points the ant at a target and advances one step, returning
// the remaining distance after the move.
func SteerToward(a *Ant, b world.Bounds, target world.Vec2, speed float64) float64 {
	d := world.Dist(a.Pos, target)
	if d <= speed {
		a.Pos = b.Clamp(target)
		return 0
	}
	a.Heading = world.HeadingTo(a.Pos, target)
	pos := world.Step(a.Pos, a.Heading, speed)
	a.Pos, a.Heading = b.Reflect(pos, a.Heading)
	return world.Dist(a.Pos, target)
}
