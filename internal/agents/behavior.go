// Trader decision policy: liquidate, pick a destination, load cargo, sail.
package agents

import (
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/portsim/internal/economy"
	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/fleet"
	"github.com/talgya/portsim/internal/world"
)

// Markets resolves a city's market.
type Markets interface {
	Market(city string) *economy.Market
}

// Policy holds the read-only context a trader decides against.
type Policy struct {
	Graph      *world.Graph
	Markets    Markets
	StockShare float64 // max fraction of origin stock bought per good
}

// Decision records what one docked ship did during a decision cycle.
type Decision struct {
	AgentID  string         `json:"agent_id"`
	ShipID   string         `json:"ship_id"`
	From     string         `json:"from"`
	To       string         `json:"to,omitempty"`
	Random   bool           `json:"random,omitempty"` // no profitable destination was found
	Sold     map[string]int `json:"sold,omitempty"`
	Bought   map[string]int `json:"bought,omitempty"`
	Revenue  float64        `json:"revenue"`
	Spent    float64        `json:"spent"`
	Sailed   bool           `json:"sailed"`
	Reason   economy.Reason `json:"reason,omitempty"`
	Distance float64        `json:"distance,omitempty"`
}

// Opportunity is the per-unit profit of carrying a good between two cities.
type Opportunity struct {
	Good   string  `json:"good"`
	Profit float64 `json:"profit"`
}

// Decide runs one decision cycle for every docked ship of the agent.
// Sailing ships are left to the transit model.
func (p Policy) Decide(a *TraderAgent, rng entropy.Source) []Decision {
	var out []Decision
	for _, s := range a.Ships {
		if !s.Docked() {
			continue
		}
		d := p.decideShip(a, s, rng)
		slog.Debug("trader decision",
			"agent", a.ID, "ship", s.ID, "from", d.From, "to", d.To,
			"random", d.Random, "revenue", d.Revenue, "spent", d.Spent,
			"sailed", d.Sailed, "reason", d.Reason,
		)
		out = append(out, d)
	}
	return out
}

func (p Policy) decideShip(a *TraderAgent, s *fleet.Ship, rng entropy.Source) Decision {
	origin := s.Location
	d := Decision{AgentID: a.ID, ShipID: s.ID, From: origin}

	om := p.Markets.Market(origin)
	if om == nil {
		d.Reason = economy.ReasonUnknownCity
		return d
	}

	d.Sold, d.Revenue = Liquidate(s, om, &a.Gold)

	dest, random := p.chooseDestination(om, origin, s.Spec.Capacity, rng)
	if dest == "" {
		d.Reason = economy.ReasonNoPath
		return d
	}
	d.To, d.Random = dest, random

	path, ok := p.Graph.ShortestPath(origin, dest)
	if !ok || path.Segments() < 1 {
		d.Reason = economy.ReasonNoPath
		return d
	}
	d.Distance = path.Distance

	if dm := p.Markets.Market(dest); dm != nil {
		d.Bought, d.Spent = p.load(a, s, om, dm)
	}

	d.Sailed = s.Sail(path.Cities)
	if d.Sailed {
		a.TargetCity = dest
	}
	return d
}

// Liquidate sells every good aboard into the local market at the local
// price and empties the hold. Goods the market does not trade are dumped.
func Liquidate(s *fleet.Ship, m *economy.Market, gold *float64) (map[string]int, float64) {
	sold := make(map[string]int)
	revenue := 0.0
	for _, g := range s.CargoGoods() {
		held := s.Held(g)
		out := m.Sell(g, held, gold, s)
		if out.OK {
			sold[g] = out.Executed
			revenue += out.Total
		}
		if rest := s.Held(g); rest > 0 {
			s.Unload(g, rest)
		}
	}
	if len(sold) == 0 {
		return nil, 0
	}
	return sold, revenue
}

// chooseDestination scores every reachable city and good by
// (dest price - origin price) × min(origin stock, capacity) × jitter.
// Without a positive score it falls back to a random direct neighbor.
func (p Policy) chooseDestination(om *economy.Market, origin string, capacity int, rng entropy.Source) (string, bool) {
	best, bestScore := "", 0.0
	for _, dest := range p.Graph.Reachable(origin) {
		dm := p.Markets.Market(dest)
		if dm == nil {
			continue
		}
		for _, g := range om.Goods {
			oe, de := om.Entry(g), dm.Entry(g)
			if oe == nil || de == nil {
				continue
			}
			volume := math.Min(oe.Stock, float64(capacity))
			score := (de.Price - oe.Price) * volume * entropy.Between(rng, 0.5, 1.0)
			if score > bestScore {
				best, bestScore = dest, score
			}
		}
	}
	if best != "" {
		return best, false
	}

	neighbors := p.Graph.Neighbors(origin)
	if len(neighbors) == 0 {
		return "", false
	}
	return neighbors[rng.Intn(len(neighbors))], true
}

// RankOpportunities lists goods that sell for more at dest than they cost at
// origin, most profitable first. Ties keep the market's good order.
func RankOpportunities(om, dm *economy.Market) []Opportunity {
	var ops []Opportunity
	for _, g := range om.Goods {
		oe, de := om.Entry(g), dm.Entry(g)
		if oe == nil || de == nil {
			continue
		}
		if profit := de.Price - oe.Price; profit > 0 {
			ops = append(ops, Opportunity{Good: g, Profit: profit})
		}
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Profit > ops[j].Profit })
	return ops
}

// load buys profitable goods greedily, each bounded by free capacity, the
// stock share of origin stock, and what the agent can afford.
func (p Policy) load(a *TraderAgent, s *fleet.Ship, om, dm *economy.Market) (map[string]int, float64) {
	share := p.StockShare
	if share <= 0 {
		share = 0.3
	}
	bought := make(map[string]int)
	spent := 0.0
	for _, op := range RankOpportunities(om, dm) {
		free := s.FreeCapacity()
		if free <= 0 {
			break
		}
		qty := int(math.Floor(om.Entry(op.Good).Stock * share))
		if qty > free {
			qty = free
		}
		if qty <= 0 {
			continue
		}
		out := om.Buy(op.Good, qty, &a.Gold, s)
		if out.OK {
			bought[op.Good] = out.Executed
			spent += out.Total
		}
	}
	if len(bought) == 0 {
		return nil, 0
	}
	return bought, spent
}
