// Package fleet provides the ship entity shared by the player and trader
// agents, and the transit model that moves ships along their routes.
package fleet

import (
	"sort"

	"github.com/talgya/portsim/internal/catalog"
)

// OwnerPlayer tags ships owned by the player. Agent ships carry the agent id.
const OwnerPlayer = "player"

// Status is whether a ship is in port or at sea.
type Status string

const (
	StatusDocked  Status = "docked"
	StatusSailing Status = "sailing"
)

// Spec is the type descriptor of a ship.
type Spec struct {
	TypeID   string  `json:"type_id"`
	Capacity int     `json:"capacity"`
	Speed    float64 `json:"speed"`
	Hull     float64 `json:"hull"`
	Cannons  int     `json:"cannons"`
}

// SpecFrom builds a Spec from a catalog ship type.
func SpecFrom(t catalog.ShipType) Spec {
	return Spec{TypeID: t.ID, Capacity: t.Capacity, Speed: t.Speed, Hull: t.Hull, Cannons: t.Cannons}
}

// Ship is a vessel owned by the player or an agent. When docked, Location is
// set and Route is empty; when sailing, Location is empty and Route,
// RouteIndex, Progress and Destination describe the voyage.
type Ship struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Owner       string         `json:"owner"`
	Spec        Spec           `json:"spec"`
	Hull        float64        `json:"hull"`
	Cargo       map[string]int `json:"cargo"`
	Status      Status         `json:"status"`
	Location    string         `json:"location,omitempty"`
	Route       []string       `json:"route,omitempty"`
	RouteIndex  int            `json:"route_index"`
	Progress    float64        `json:"progress"`
	Destination string         `json:"destination,omitempty"`
}

// NewShip creates a docked ship with an empty hold.
func NewShip(id, name, owner string, spec Spec, location string) *Ship {
	return &Ship{
		ID:       id,
		Name:     name,
		Owner:    owner,
		Spec:     spec,
		Hull:     spec.Hull,
		Cargo:    make(map[string]int),
		Status:   StatusDocked,
		Location: location,
	}
}

// Docked reports whether the ship is in port.
func (s *Ship) Docked() bool { return s.Status == StatusDocked }

// Sailing reports whether the ship is at sea.
func (s *Ship) Sailing() bool { return s.Status == StatusSailing }

// CargoTotal returns the units aboard.
func (s *Ship) CargoTotal() int {
	total := 0
	for _, n := range s.Cargo {
		if n > 0 {
			total += n
		}
	}
	return total
}

// Held implements economy.Hold.
func (s *Ship) Held(good string) int {
	if n := s.Cargo[good]; n > 0 {
		return n
	}
	return 0
}

// FreeCapacity implements economy.Hold.
func (s *Ship) FreeCapacity() int {
	free := s.Spec.Capacity - s.CargoTotal()
	if free < 0 {
		return 0
	}
	return free
}

// Load implements economy.Hold. The amount is capped at free capacity.
func (s *Ship) Load(good string, n int) {
	if n > s.FreeCapacity() {
		n = s.FreeCapacity()
	}
	if n <= 0 {
		return
	}
	if s.Cargo == nil {
		s.Cargo = make(map[string]int)
	}
	s.Cargo[good] += n
}

// Unload implements economy.Hold and returns the units removed.
func (s *Ship) Unload(good string, n int) int {
	held := s.Held(good)
	if n > held {
		n = held
	}
	if n <= 0 {
		return 0
	}
	s.Cargo[good] = held - n
	if s.Cargo[good] == 0 {
		delete(s.Cargo, good)
	}
	return n
}

// CargoGoods returns the goods aboard with positive amounts, sorted by id.
func (s *Ship) CargoGoods() []string {
	goods := make([]string, 0, len(s.Cargo))
	for g, n := range s.Cargo {
		if n > 0 {
			goods = append(goods, g)
		}
	}
	sort.Strings(goods)
	return goods
}

// Damage reduces hull, floored at zero.
func (s *Ship) Damage(amount float64) {
	s.Hull -= amount
	if s.Hull < 0 {
		s.Hull = 0
	}
}

// Normalize repairs field values that external collaborators may have left
// out of range: negative cargo or hull, and progress outside [0, 1).
func (s *Ship) Normalize() {
	for g, n := range s.Cargo {
		if n <= 0 {
			delete(s.Cargo, g)
		}
	}
	if s.Hull < 0 {
		s.Hull = 0
	}
	if s.Progress < 0 {
		s.Progress = 0
	}
}
