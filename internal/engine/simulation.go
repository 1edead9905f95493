// Simulation ties the subsystems together and advances them one day at a time.
package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/talgya/portsim/internal/agents"
	"github.com/talgya/portsim/internal/catalog"
	"github.com/talgya/portsim/internal/economy"
	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/fleet"
	"github.com/talgya/portsim/internal/weather"
	"github.com/talgya/portsim/internal/world"
)

// maxEvents bounds the recent-event ring.
const maxEvents = 500

// Simulation holds the game state and the read-only context around it.
type Simulation struct {
	State   *State
	Catalog *catalog.Catalog
	Graph   *world.Graph
	Collab  Collaborators
	Metrics *Metrics
	Events  []Event // most recent last

	rng    entropy.Source
	wind   *weather.Field
	policy agents.Policy
}

// Event is a notable occurrence in the game.
type Event struct {
	Seq         uint64         `json:"seq"`
	Day         uint64         `json:"day"`
	Date        string         `json:"date"`
	Category    string         `json:"category"` // "voyage", "market", "month", "admin", ...
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Arrival is a ship docking at the end of its voyage.
type Arrival struct {
	ShipID string `json:"ship_id"`
	Owner  string `json:"owner"`
	City   string `json:"city"`
}

// DayReport summarizes one simulated day.
type DayReport struct {
	Day            uint64              `json:"day"`
	Date           Date                `json:"date"`
	Wind           weather.Wind        `json:"wind"`
	Arrivals       []Arrival           `json:"arrivals,omitempty"`
	Decisions      []agents.Decision   `json:"decisions,omitempty"`
	PriceMoves     []economy.PriceMove `json:"price_moves,omitempty"`
	MarketsUpdated bool                `json:"markets_updated"`
	MonthProcessed bool                `json:"month_processed"`
}

// NewGame builds the starting state from a catalog. A zero seed picks a
// random one.
func NewGame(cat *catalog.Catalog, seed int64) (*State, error) {
	rng := entropy.New(seed)
	t := cat.Tuning

	st := &State{
		SessionID: uuid.NewString(),
		Seed:      rng.Seed(),
		Date:      Date{Year: t.StartYear, Month: t.StartMonth, Day: t.StartDay},
		Cities:    make(map[string]*CityState, len(cat.Cities)),
		Player:    Player{Gold: t.PlayerGold},
	}
	st.MonthProcessed = st.Date.Day == 1

	for _, c := range cat.Cities {
		pop := c.Population
		if pop < MinPopulation {
			pop = MinPopulation
		}
		st.CityOrder = append(st.CityOrder, c.ID)
		st.Cities[c.ID] = &CityState{
			ID:         c.ID,
			Population: pop,
			Market:     economy.NewMarket(c, cat.Goods, rng),
		}
	}

	pt, ok := cat.ShipType(t.PlayerShip)
	if !ok {
		return nil, fmt.Errorf("player ship type %q not in catalog", t.PlayerShip)
	}
	home := st.Cities[t.PlayerCity]
	if home == nil {
		return nil, fmt.Errorf("player city %q not in catalog", t.PlayerCity)
	}
	home.Visited = true
	st.Player.Ships = []*fleet.Ship{
		fleet.NewShip(st.newShipID(), pt.Name, fleet.OwnerPlayer, fleet.SpecFrom(pt), home.ID),
	}

	if t.AgentCount > 0 {
		at, ok := cat.ShipType(t.AgentShip)
		if !ok {
			return nil, fmt.Errorf("agent ship type %q not in catalog", t.AgentShip)
		}
		st.Agents = agents.NewSpawner(rng).Spawn(agents.SpawnConfig{
			Count:         t.AgentCount,
			Gold:          t.AgentGold,
			Ship:          fleet.SpecFrom(at),
			HomePorts:     cat.CityIDs(),
			Interval:      t.AgentDecisionDays,
			StaggerTimers: t.StaggerAgentTimers,
		})
	}

	slog.Info("new game created",
		"session", st.SessionID, "seed", st.Seed, "date", st.Date.String(),
		"cities", len(st.Cities), "agents", len(st.Agents),
	)
	return st, nil
}

// NewSimulation wires a state to its catalog. rng drives every random draw
// made while the game runs.
func NewSimulation(cat *catalog.Catalog, st *State, rng entropy.Source) *Simulation {
	g := world.NewGraph(cat.Routes)
	for _, id := range st.CityOrder {
		g.AddIsolated(id)
	}
	sort.SliceStable(st.Agents, func(i, j int) bool { return st.Agents[i].ID < st.Agents[j].ID })

	s := &Simulation{
		State:   st,
		Catalog: cat,
		Graph:   g,
		rng:     rng,
		wind:    weather.NewField(st.Seed),
	}
	s.policy = agents.Policy{Graph: g, Markets: st, StockShare: cat.Tuning.AgentStockShare}
	return s
}

// AdvanceDay runs one simulated day: calendar and wind, player transit,
// agents, the periodic market pass and, on the first of a month, monthly
// processing.
func (s *Simulation) AdvanceDay() DayReport {
	st := s.State
	t := s.Catalog.Tuning

	st.Date = st.Date.Next()
	st.Day++
	if st.Date.Day == 2 {
		st.MonthProcessed = false
	}
	st.Wind = s.wind.At(st.Day)
	rep := DayReport{Day: st.Day, Date: st.Date, Wind: st.Wind}

	params := fleet.TransitParams{Wind: st.Wind, Scale: t.TransitScale, Floor: t.WindFloor}
	for _, ship := range st.Player.Ships {
		s.advanceShip(ship, params, &rep)
	}

	for _, a := range st.Agents {
		for _, ship := range a.Ships {
			s.advanceShip(ship, params, &rep)
		}
		if a.Tick(t.AgentDecisionDays) {
			for _, d := range s.policy.Decide(a, s.rng) {
				s.Metrics.decision(decisionKind(d))
				rep.Decisions = append(rep.Decisions, d)
			}
		}
	}

	if every := t.MarketUpdateDays; every > 0 && st.Day%uint64(every) == 0 {
		rep.PriceMoves = s.updateMarkets()
		rep.MarketsUpdated = true
	}

	if st.Date.Day == 1 && !st.MonthProcessed {
		s.processMonth()
		st.MonthProcessed = true
		rep.MonthProcessed = true
	}

	s.Metrics.day()
	s.Metrics.observeState(st)
	return rep
}

func (s *Simulation) advanceShip(ship *fleet.Ship, p fleet.TransitParams, rep *DayReport) {
	if !ship.Sailing() {
		return
	}
	step := fleet.Advance(ship, s.Graph, p, s.rng)
	switch {
	case step.Arrived:
		s.arrive(ship, step.City, rep)
	case step.Stranded:
		s.emit("voyage", fmt.Sprintf("%s lost its course and put in at %s", ship.Name, step.City),
			map[string]any{"ship": ship.ID, "city": step.City})
	}
}

func (s *Simulation) arrive(ship *fleet.Ship, city string, rep *DayReport) {
	rep.Arrivals = append(rep.Arrivals, Arrival{ShipID: ship.ID, Owner: ship.Owner, City: city})

	if ship.Owner == fleet.OwnerPlayer {
		s.Metrics.arrival("player")
		if cs := s.State.City(city); cs != nil && !cs.Visited {
			cs.Visited = true
			s.Collab.cityVisited(city)
		}
		s.emit("voyage", fmt.Sprintf("%s arrived at %s", ship.Name, s.cityName(city)),
			map[string]any{"ship": ship.ID, "city": city})
	} else {
		s.Metrics.arrival("agent")
	}
	s.Collab.shipArrived(s.State, ship, city)
}

func decisionKind(d agents.Decision) string {
	switch {
	case !d.Sailed:
		return "idle"
	case d.Random:
		return "random"
	default:
		return "trade"
	}
}

// emit appends to the recent-event ring.
func (s *Simulation) emit(category, desc string, meta map[string]any) {
	s.State.EventSeq++
	s.Events = append(s.Events, Event{
		Seq:         s.State.EventSeq,
		Day:         s.State.Day,
		Date:        s.State.Date.String(),
		Category:    category,
		Description: desc,
		Meta:        meta,
	})
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// RecentEvents returns up to n of the latest events, newest last.
func (s *Simulation) RecentEvents(n int) []Event {
	if n <= 0 || n > len(s.Events) {
		n = len(s.Events)
	}
	return append([]Event(nil), s.Events[len(s.Events)-n:]...)
}

func (s *Simulation) cityName(id string) string {
	if c, ok := s.Catalog.City(id); ok && c.Name != "" {
		return c.Name
	}
	return id
}
