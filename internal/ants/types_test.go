package ants

import (
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/anthill/internal/world"
)

func TestSpawnNearKeepsHeadingAndPositionInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	center := world.Vec2{X: 100, Y: 100}
	const radius = 12.0

	for i := 0; i < 500; i++ {
		a := SpawnNear("sim", "col", RoleWorker, center, radius, rng)

		if a.Heading < -math.Pi || a.Heading > math.Pi {
			t.Fatalf("heading %v outside [-pi, pi]", a.Heading)
		}
		if dx := math.Abs(a.Pos.X - center.X); dx > radius {
			t.Fatalf("spawn x offset %v exceeds radius %v", dx, radius)
		}
		if dy := math.Abs(a.Pos.Y - center.Y); dy > radius {
			t.Fatalf("spawn y offset %v exceeds radius %v", dy, radius)
		}
	}
}

func TestSpawnNearHeadingCoversFullCircle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	center := world.Vec2{X: 50, Y: 50}

	var minH, maxH = math.Inf(1), math.Inf(-1)
	for i := 0; i < 2000; i++ {
		a := SpawnNear("sim", "col", RoleScout, center, 5, rng)
		minH = math.Min(minH, a.Heading)
		maxH = math.Max(maxH, a.Heading)
	}

	// With 2000 draws the extremes must land well past +-3 radians if the
	// heading really spans the full [-pi, pi) circle.
	if minH > -3 || maxH < 3 {
		t.Fatalf("headings span [%v, %v], want close to [-pi, pi]", minH, maxH)
	}
}
