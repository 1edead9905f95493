package engine

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/portsim/internal/agents"
	"github.com/talgya/portsim/internal/economy"
	"github.com/talgya/portsim/internal/fleet"
	"github.com/talgya/portsim/internal/weather"
)

// State is the aggregate root of a running game. It is plain data: every
// subsystem works on pointers into it, and it serializes as-is.
type State struct {
	SessionID      string                `json:"session_id"`
	Seed           int64                 `json:"seed"`
	Date           Date                  `json:"date"`
	Day            uint64                `json:"day"` // days elapsed since the start
	MonthProcessed bool                  `json:"month_processed"`
	CityOrder      []string              `json:"city_order"`
	Cities         map[string]*CityState `json:"cities"`
	Player         Player                `json:"player"`
	Agents         []*agents.TraderAgent `json:"agents"`
	Wind           weather.Wind          `json:"wind"`
	Boosts         []ProductionBoost     `json:"boosts,omitempty"`
	NextShipID     int                   `json:"next_ship_id"`
	EventSeq       uint64                `json:"event_seq"` // last event sequence number issued
}

// CityState is the mutable state of one city.
type CityState struct {
	ID         string          `json:"id"`
	Population int             `json:"population"`
	Market     *economy.Market `json:"market"`
	Buildings  []Building      `json:"buildings"`
	Visited    bool            `json:"visited"` // the player has docked here
}

// Building is a production modifier in a city.
type Building struct {
	Type  string `json:"type"`
	Level int    `json:"level"`
}

// Player holds the player's purse and fleet.
type Player struct {
	Gold  float64       `json:"gold"`
	Ships []*fleet.Ship `json:"ships"`
}

// Clone returns a deep copy of st that shares no pointers with it.
func (st *State) Clone() (*State, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	var out State
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &out, nil
}

// MinPopulation is the floor for any city's population.
const MinPopulation = 500

// Market implements agents.Markets.
func (st *State) Market(city string) *economy.Market {
	cs := st.Cities[city]
	if cs == nil {
		return nil
	}
	return cs.Market
}

// City returns a city's state, or nil.
func (st *State) City(id string) *CityState {
	return st.Cities[id]
}

// PlayerShip returns the player's ship with the given id, or nil.
func (st *State) PlayerShip(id string) *fleet.Ship {
	for _, s := range st.Player.Ships {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// AllShips returns every ship in the game, player ships first, then agent
// ships in agent order.
func (st *State) AllShips() []*fleet.Ship {
	ships := append([]*fleet.Ship(nil), st.Player.Ships...)
	for _, a := range st.Agents {
		ships = append(ships, a.Ships...)
	}
	return ships
}

func (st *State) newShipID() string {
	st.NextShipID++
	return fmt.Sprintf("ship-%03d", st.NextShipID)
}

// BuildingBonus sums the per-update production bonus of a city's buildings.
func (cs *CityState) BuildingBonus(lookup func(typeID string) (good string, bonus float64, ok bool)) map[string]float64 {
	if len(cs.Buildings) == 0 {
		return nil
	}
	out := make(map[string]float64)
	for _, b := range cs.Buildings {
		good, bonus, ok := lookup(b.Type)
		if !ok || b.Level <= 0 {
			continue
		}
		out[good] += bonus * float64(b.Level)
	}
	return out
}
