package fleet

import (
	"testing"

	"github.com/talgya/portsim/internal/catalog"
	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/weather"
	"github.com/talgya/portsim/internal/world"
)

func lineGraph() *world.Graph {
	return world.NewGraph([]catalog.RouteEdge{
		{A: "A", B: "B", Distance: 2},
		{A: "B", B: "C", Distance: 3},
	})
}

func sloop(location string) *Ship {
	return NewShip("s1", "Gull", OwnerPlayer, Spec{TypeID: "sloop", Capacity: 50, Speed: 5, Hull: 60}, location)
}

func TestLoadNeverExceedsCapacity(t *testing.T) {
	s := sloop("A")
	s.Load("grain", 40)
	s.Load("fish", 20)
	if s.CargoTotal() != 50 || s.Held("fish") != 10 {
		t.Fatalf("cargo = %v", s.Cargo)
	}
	if s.FreeCapacity() != 0 {
		t.Fatalf("free = %d", s.FreeCapacity())
	}
	if got := s.Unload("grain", 100); got != 40 {
		t.Fatalf("unloaded %d", got)
	}
	if _, ok := s.Cargo["grain"]; ok {
		t.Fatal("empty slot not removed")
	}
	if got := s.CargoGoods(); len(got) != 1 || got[0] != "fish" {
		t.Fatalf("CargoGoods = %v", got)
	}
}

func TestSailRequiresDockedAtRouteStart(t *testing.T) {
	s := sloop("A")
	if s.Sail([]string{"B", "C"}) {
		t.Fatal("sailed from wrong city")
	}
	if s.Sail([]string{"A"}) {
		t.Fatal("sailed on one-city route")
	}
	if !s.Sail([]string{"A", "B", "C"}) {
		t.Fatal("Sail failed")
	}
	if s.Location != "" || s.Status != StatusSailing || s.Destination != "C" || s.RouteIndex != 0 || s.Progress != 0 {
		t.Fatalf("ship = %+v", s)
	}
	if s.Sail([]string{"A", "B"}) {
		t.Fatal("sailing ship accepted a second Sail")
	}
	if s.Destination != "C" {
		t.Fatal("second Sail changed the voyage")
	}
}

func TestTwoSegmentVoyageDocksOnlyAtDestination(t *testing.T) {
	g := lineGraph()
	s := sloop("A")
	s.Sail([]string{"A", "B", "C"})
	p := TransitParams{Wind: weather.Wind{Strength: 0}, Scale: 5, Floor: 0.3}
	rng := entropy.New(1)

	segments := 0
	for day := 1; day <= 20; day++ {
		step := Advance(s, g, p, rng)
		if step.Segment {
			segments++
		}
		if s.Docked() {
			if !step.Arrived || s.Location != "C" {
				t.Fatalf("day %d: docked at %q (step %+v)", day, s.Location, step)
			}
			if segments != 2 {
				t.Fatalf("docked after %d segments", segments)
			}
			if day < 5 {
				t.Fatalf("arrived too early on day %d", day)
			}
			if s.Route != nil || s.Destination != "" || s.Progress != 0 {
				t.Fatalf("voyage not cleared: %+v", s)
			}
			return
		}
		if s.Progress < 0 || s.Progress >= 1 {
			t.Fatalf("day %d: progress %v", day, s.Progress)
		}
	}
	t.Fatal("ship never arrived")
}

func TestAppliedSpeedFloor(t *testing.T) {
	if got := AppliedSpeed(10, 1.0, -1, 0.3); got != 3 {
		t.Fatalf("full headwind speed = %v, want floor 3", got)
	}
	if got := AppliedSpeed(10, 0.5, 1, 0.3); got != 15 {
		t.Fatalf("tailwind speed = %v", got)
	}
	for i := 0; i < 1000; i++ {
		u := entropy.Signed(entropy.New(int64(i + 1)))
		if got := AppliedSpeed(4, 1.0, u, 0.3); got < 1.2 {
			t.Fatalf("speed %v below floor", got)
		}
	}
}

func TestAdvanceToleratesTamperedShip(t *testing.T) {
	g := lineGraph()
	p := TransitParams{Scale: 5, Floor: 0.3}
	rng := entropy.New(2)

	s := sloop("A")
	s.Sail([]string{"A", "B", "C"})
	s.Progress = -4
	s.Cargo["grain"] = -3
	s.Hull = -10
	Advance(s, g, p, rng)
	if s.Progress < 0 || s.Hull != 0 {
		t.Fatalf("not normalized: %+v", s)
	}
	if _, ok := s.Cargo["grain"]; ok {
		t.Fatal("negative cargo kept")
	}

	// A collaborator pushed the route index to the end.
	s.RouteIndex = 2
	step := Advance(s, g, p, rng)
	if !step.Arrived || s.Location != "C" {
		t.Fatalf("step = %+v ship = %+v", step, s)
	}

	// A route over a lane that does not exist strands the ship where it is.
	s2 := sloop("A")
	s2.Sail([]string{"A", "C"})
	step = Advance(s2, g, p, rng)
	if !step.Stranded || s2.Location != "A" || !s2.Docked() {
		t.Fatalf("step = %+v ship = %+v", step, s2)
	}
}

func TestRerouteDiscardsVoyage(t *testing.T) {
	s := sloop("A")
	s.Sail([]string{"A", "B", "C"})
	s.Progress = 0.7
	if !s.Reroute([]string{"A", "B"}) {
		t.Fatal("Reroute failed")
	}
	if s.Destination != "B" || s.Progress != 0 {
		t.Fatalf("ship = %+v", s)
	}
	if s.Reroute([]string{"C", "B"}) {
		t.Fatal("reroute from a city the ship is not leaving")
	}
	docked := sloop("A")
	if docked.Reroute([]string{"A", "B"}) {
		t.Fatal("docked ship rerouted")
	}
}

func TestDamageFloorsAtZero(t *testing.T) {
	s := sloop("A")
	s.Damage(100)
	if s.Hull != 0 {
		t.Fatalf("hull = %v", s.Hull)
	}
}
