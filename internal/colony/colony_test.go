package colony

import (
	"math"
	"testing"

	"github.com/talgya/anthill/internal/world"
)

func TestBootstrapCreatesSymmetricPair(t *testing.T) {
	b := world.Bounds{Width: 1000, Height: 800}
	pair := Bootstrap("sim-1", b)

	center := b.Center()
	offset := math.Min(b.Width, b.Height) / 4

	want := [2]world.Vec2{
		{X: center.X - offset, Y: center.Y - offset},
		{X: center.X + offset, Y: center.Y + offset},
	}
	for i, c := range pair {
		if c.Center != want[i] {
			t.Errorf("colony %d center = %v, want %v", i, c.Center, want[i])
		}
		if !c.Active {
			t.Errorf("colony %d should start active", i)
		}
		if c.SimulationID != "sim-1" {
			t.Errorf("colony %d simulation id = %q", i, c.SimulationID)
		}
		if c.TotalResources() == 0 {
			t.Errorf("colony %d has no seeded resources", i)
		}
	}

	// Separation is guaranteed: the pair sits a fixed fraction of the
	// smaller dimension apart.
	sep := world.Dist(pair[0].Center, pair[1].Center)
	wantSep := 2 * offset * math.Sqrt2
	if math.Abs(sep-wantSep) > 1e-9 {
		t.Errorf("separation = %v, want %v", sep, wantSep)
	}

	// Seeded stores differ between the two colonies.
	if pair[0].Resources[ResourceFood] == pair[1].Resources[ResourceFood] {
		t.Error("colonies should seed distinct food stores")
	}
}

func TestConsumeFloorsAtZero(t *testing.T) {
	c := New("sim-1", world.Vec2{X: 100, Y: 100}, 10)
	c.Resources[ResourceFood] = 5
	c.Resources[ResourceWater] = 100

	e := Economy{ConsumptionPerCapita: 0.1}
	e.Resync(c, 200) // Upkeep = 20 per kind

	e.Consume(c)

	if got := c.Resources[ResourceFood]; got != 0 {
		t.Errorf("food = %v, want floored at 0", got)
	}
	if got := c.Resources[ResourceWater]; got != 80 {
		t.Errorf("water = %v, want 80", got)
	}
}

func TestShouldSpawn(t *testing.T) {
	e := Economy{SpawnThreshold: 50, PopulationCap: 200}

	tests := []struct {
		name       string
		food       float64
		population int
		active     bool
		want       bool
	}{
		{"affordable and under cap", 60, 10, true, true},
		{"too poor", 40, 10, true, false},
		{"at threshold exactly", 50, 10, true, false},
		{"at population cap", 60, 200, true, false},
		{"inactive colony", 60, 10, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("sim-1", world.Vec2{}, 10)
			c.Resources[ResourceFood] = tt.food
			c.Population = tt.population
			c.Active = tt.active
			if got := e.ShouldSpawn(c); got != tt.want {
				t.Errorf("ShouldSpawn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDepositAccumulates(t *testing.T) {
	c := New("sim-1", world.Vec2{}, 10)

	// A colony restored from a snapshot may carry a nil map.
	c.Resources = nil
	c.Deposit(ResourceFood, 3)
	c.Deposit(ResourceFood, 2)
	c.Deposit(ResourceMaterial, 1)
	c.Deposit(ResourceWater, -5) // Ignored

	if got := c.Resources[ResourceFood]; got != 5 {
		t.Errorf("food = %v, want 5", got)
	}
	if got := c.TotalResources(); got != 6 {
		t.Errorf("total = %v, want 6", got)
	}
}

func TestDeliveryConservation(t *testing.T) {
	// Sum of N deposits equals the sum of amounts delivered.
	c := New("sim-1", world.Vec2{}, 10)
	var delivered float64
	for i := 1; i <= 50; i++ {
		amt := float64(i%3) + 0.5
		c.Deposit(ResourceFood, amt)
		delivered += amt
	}
	if got := c.Resources[ResourceFood]; math.Abs(got-delivered) > 1e-9 {
		t.Errorf("stored food = %v, want %v", got, delivered)
	}
}
