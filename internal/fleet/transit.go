package fleet

import (
	"math"

	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/weather"
)

// Lanes resolves the length of the lane between two adjacent cities.
type Lanes interface {
	EdgeDistance(a, b string) (float64, bool)
}

// TransitParams are the per-day inputs to the transit model.
type TransitParams struct {
	Wind  weather.Wind
	Scale float64 // progress per day = speed / (distance × Scale)
	Floor float64 // applied speed never drops below Floor × nominal
}

// Step reports what happened to one ship during one day.
type Step struct {
	ShipID   string  `json:"ship_id"`
	Speed    float64 `json:"speed"`
	Segment  bool    `json:"segment"`  // a lane was completed
	Arrived  bool    `json:"arrived"`  // the voyage ended
	Stranded bool    `json:"stranded"` // the route was invalid and the ship docked where it was
	City     string  `json:"city,omitempty"`
}

// Sail starts a voyage along route. The ship must be docked at route[0] and
// the route must name at least two cities. Anything else is a no-op and
// returns false; a sailing ship keeps its current voyage.
func (s *Ship) Sail(route []string) bool {
	if !s.Docked() || len(route) < 2 || route[0] != s.Location {
		return false
	}
	s.Status = StatusSailing
	s.Route = append([]string(nil), route...)
	s.RouteIndex = 0
	s.Progress = 0
	s.Destination = route[len(route)-1]
	s.Location = ""
	return true
}

// Reroute replaces the voyage of a sailing ship, discarding the old one.
// The new route must start at the city the ship last left.
func (s *Ship) Reroute(route []string) bool {
	if !s.Sailing() || len(route) < 2 {
		return false
	}
	if s.RouteIndex < 0 || s.RouteIndex >= len(s.Route) || route[0] != s.Route[s.RouteIndex] {
		return false
	}
	s.Route = append([]string(nil), route...)
	s.RouteIndex = 0
	s.Progress = 0
	s.Destination = route[len(route)-1]
	return true
}

func (s *Ship) dock(city string) {
	s.Status = StatusDocked
	s.Location = city
	s.Route = nil
	s.RouteIndex = 0
	s.Progress = 0
	s.Destination = ""
}

// AppliedSpeed returns the nominal speed adjusted by wind. u is a uniform
// draw in [-1, 1); the result is floored at floor × nominal.
func AppliedSpeed(nominal, windStrength, u, floor float64) float64 {
	speed := nominal * (1 + windStrength*u)
	return math.Max(speed, nominal*floor)
}

// Advance moves a sailing ship forward by one day. Ship fields are
// revalidated first because collaborators may have changed them since the
// last tick. Docked ships are left untouched.
func Advance(s *Ship, lanes Lanes, p TransitParams, rng entropy.Source) Step {
	step := Step{ShipID: s.ID}
	if !s.Sailing() {
		return step
	}
	s.Normalize()

	last := len(s.Route) - 1
	if last < 1 || s.RouteIndex < 0 {
		city := s.Destination
		if last >= 0 {
			city = s.Route[last]
		}
		s.dock(city)
		step.Stranded, step.City = true, city
		return step
	}
	if s.RouteIndex >= last {
		s.dock(s.Route[last])
		step.Arrived, step.City = true, s.Location
		return step
	}

	from, to := s.Route[s.RouteIndex], s.Route[s.RouteIndex+1]
	dist, ok := lanes.EdgeDistance(from, to)
	if !ok || dist <= 0 {
		s.dock(from)
		step.Stranded, step.City = true, from
		return step
	}

	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	step.Speed = AppliedSpeed(s.Spec.Speed, p.Wind.Strength, entropy.Signed(rng), p.Floor)
	s.Progress += step.Speed / (dist * scale)

	if s.Progress >= 1 {
		s.Progress = 0
		s.RouteIndex++
		step.Segment = true
		if s.RouteIndex >= last {
			s.dock(s.Route[last])
			step.Arrived, step.City = true, s.Location
		}
	}
	return step
}
