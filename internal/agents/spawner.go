// Trader spawning: rival houses with one ship each at game start.
package agents

import (
	"fmt"

	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/fleet"
)

// SpawnConfig controls initial trader generation.
type SpawnConfig struct {
	Count         int
	Gold          float64
	Ship          fleet.Spec
	HomePorts     []string // candidate starting cities
	Interval      int      // decision interval in days
	StaggerTimers bool     // spread initial timers over the interval
}

// Spawner creates trader agents.
type Spawner struct {
	rng    entropy.Source
	nextID int
}

// NewSpawner creates a trader spawner drawing from rng.
func NewSpawner(rng entropy.Source) *Spawner {
	return &Spawner{rng: rng, nextID: 1}
}

// Spawn creates cfg.Count traders in stable id order.
func (s *Spawner) Spawn(cfg SpawnConfig) []*TraderAgent {
	if len(cfg.HomePorts) == 0 {
		return nil
	}
	out := make([]*TraderAgent, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		out = append(out, s.spawnOne(cfg))
	}
	return out
}

func (s *Spawner) spawnOne(cfg SpawnConfig) *TraderAgent {
	n := s.nextID
	s.nextID++

	id := fmt.Sprintf("agent-%02d", n)
	family := lastNames[s.rng.Intn(len(lastNames))]
	home := cfg.HomePorts[s.rng.Intn(len(cfg.HomePorts))]
	shipName := shipNames[s.rng.Intn(len(shipNames))]

	a := &TraderAgent{
		ID:         id,
		Name:       "House " + family,
		Gold:       cfg.Gold,
		Aggression: entropy.Between(s.rng, 0.2, 1.0),
	}
	a.Ships = []*fleet.Ship{
		fleet.NewShip(id+"-ship-1", shipName, id, cfg.Ship, home),
	}
	if cfg.StaggerTimers && cfg.Interval > 1 {
		a.Timer = s.rng.Intn(cfg.Interval)
	}
	return a
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Ironhand", "Dunmore",
	"Greenvale", "Stormcrow", "Frostborn", "Hearthstone", "Millward",
	"Copperfield", "Ravenmoor", "Silverdale", "Deepwell", "Brightwater",
	"Redforge", "Windholm", "Goldhaven", "Riverstone", "Holloway",
	"Farrow", "Caldwell", "Harper", "Mercer", "Ward", "Cross",
}

var shipNames = []string{
	"Fortuna", "Santa Clara", "Sea Hawk", "Grey Heron", "Albatross",
	"Morning Star", "Windrunner", "Saltwife", "Golden Hind", "Pelican",
	"Merlin", "Good Hope", "Swift", "Dolphin", "Nightjar",
}
