package engine

import "github.com/talgya/portsim/internal/fleet"

// TradeEvent describes one executed player trade.
type TradeEvent struct {
	Day       uint64  `json:"day"`
	ShipID    string  `json:"ship_id"`
	City      string  `json:"city"`
	Good      string  `json:"good"`
	Side      string  `json:"side"` // "buy" or "sell"
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// ReputationSink receives player trades and first visits.
type ReputationSink interface {
	TradeRecorded(TradeEvent)
	CityVisited(city string)
}

// ArrivalHandler is told whenever any ship docks at the end of a voyage.
type ArrivalHandler interface {
	ShipArrived(st *State, ship *fleet.Ship, city string)
}

// MonthlyProcessor runs once at the start of every month.
type MonthlyProcessor interface {
	MonthStarted(st *State, date Date)
}

// ArrivalFunc adapts a function to ArrivalHandler.
type ArrivalFunc func(st *State, ship *fleet.Ship, city string)

func (f ArrivalFunc) ShipArrived(st *State, ship *fleet.Ship, city string) { f(st, ship, city) }

// MonthlyFunc adapts a function to MonthlyProcessor.
type MonthlyFunc func(st *State, date Date)

func (f MonthlyFunc) MonthStarted(st *State, date Date) { f(st, date) }

// Collaborators are the optional hooks outside the core loop. Nil entries
// are skipped.
type Collaborators struct {
	Reputation ReputationSink
	Arrivals   []ArrivalHandler
	Monthly    []MonthlyProcessor
}

func (c Collaborators) tradeRecorded(ev TradeEvent) {
	if c.Reputation != nil {
		c.Reputation.TradeRecorded(ev)
	}
}

func (c Collaborators) cityVisited(city string) {
	if c.Reputation != nil {
		c.Reputation.CityVisited(city)
	}
}

func (c Collaborators) shipArrived(st *State, ship *fleet.Ship, city string) {
	for _, h := range c.Arrivals {
		if h != nil {
			h.ShipArrived(st, ship, city)
		}
	}
}

func (c Collaborators) monthStarted(st *State, date Date) {
	for _, p := range c.Monthly {
		if p != nil {
			p.MonthStarted(st, date)
		}
	}
}
