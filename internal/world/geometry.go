// Package world provides the simulation entity and the continuous 2D
// geometry the rest of the engine moves through.
package world

import "math"

// Vec2 is a point or direction on the world plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Len returns the vector magnitude.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the distance between two points.
func Dist(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// HeadingTo returns the angle in radians from `from` toward `to`.
func HeadingTo(from, to Vec2) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}

// Step returns the point reached by moving dist along heading from p.
func Step(p Vec2, heading, dist float64) Vec2 {
	return Vec2{
		X: p.X + math.Cos(heading)*dist,
		Y: p.Y + math.Sin(heading)*dist,
	}
}

// NormalizeHeading wraps an angle into (-π, π].
func NormalizeHeading(h float64) float64 {
	for h > math.Pi {
		h -= 2 * math.Pi
	}
	for h <= -math.Pi {
		h += 2 * math.Pi
	}
	return h
}

// Bounds is the rectangular extent of a simulation's world.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() Vec2 {
	return Vec2{b.Width / 2, b.Height / 2}
}

// Contains reports whether p lies inside the bounds.
func (b Bounds) Contains(p Vec2) bool {
	return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y <= b.Height
}

// Clamp pins p to the bounds.
func (b Bounds) Clamp(p Vec2) Vec2 {
	p.X = math.Max(0, math.Min(b.Width, p.X))
	p.Y = math.Max(0, math.Min(b.Height, p.Y))
	return p
}

// Reflect bounces a position and heading off the world edges. Both the
// position and the heading are mirrored, so an agent leaving through a wall
// re-enters along the reflected path.
func (b Bounds) Reflect(p Vec2, heading float64) (Vec2, float64) {
	for !b.Contains(p) {
		if p.X < 0 {
			p.X = -p.X
			heading = math.Pi - heading
		} else if p.X > b.Width {
			p.X = 2*b.Width - p.X
			heading = math.Pi - heading
		}
		if p.Y < 0 {
			p.Y = -p.Y
			heading = -heading
		} else if p.Y > b.Height {
			p.Y = 2*b.Height - p.Y
			heading = -heading
		}
	}
	return p, NormalizeHeading(heading)
}
