package engine

import (
	"fmt"
	"math"

	"github.com/talgya/portsim/internal/economy"
	"github.com/talgya/portsim/internal/fleet"
	"github.com/talgya/portsim/internal/world"
)

// Buy purchases up to qty units of good into a docked player ship from the
// market where it lies.
func (s *Simulation) Buy(shipID, good string, qty int) economy.Outcome {
	return s.trade("buy", shipID, good, qty)
}

// Sell sells up to qty units of good from a docked player ship.
func (s *Simulation) Sell(shipID, good string, qty int) economy.Outcome {
	return s.trade("sell", shipID, good, qty)
}

func (s *Simulation) trade(side, shipID, good string, qty int) economy.Outcome {
	ship := s.State.PlayerShip(shipID)
	if ship == nil {
		s.Metrics.trade(side, false)
		return economy.Fail(economy.ReasonUnknownShip)
	}
	if !ship.Docked() {
		s.Metrics.trade(side, false)
		return economy.Fail(economy.ReasonNotDocked)
	}
	m := s.State.Market(ship.Location)
	if m == nil {
		s.Metrics.trade(side, false)
		return economy.Fail(economy.ReasonUnknownCity)
	}

	var out economy.Outcome
	if side == "buy" {
		out = m.Buy(good, qty, &s.State.Player.Gold, ship)
	} else {
		out = m.Sell(good, qty, &s.State.Player.Gold, ship)
	}
	out.Good = good
	s.Metrics.trade(side, out.OK)
	if !out.OK {
		return out
	}

	s.Metrics.gold(s.State.Player.Gold)
	s.Collab.tradeRecorded(TradeEvent{
		Day:       s.State.Day,
		ShipID:    ship.ID,
		City:      ship.Location,
		Good:      good,
		Side:      side,
		Quantity:  out.Executed,
		UnitPrice: out.UnitPrice,
		Total:     out.Total,
	})
	return out
}

// Sail sends a player ship along the shortest path to dest.
//
// A player ship already at sea is rerouted rather than refused: the new
// path starts at the city it last left and the rest of the old voyage is
// dropped. This is the only way to change course. Rerouting to that same
// city fails with already_sailing, and the lower-level fleet.Ship.Sail
// stays a no-op for a sailing ship, which is what trader agents use.
func (s *Simulation) Sail(shipID, dest string) (economy.Outcome, world.Path) {
	ship := s.State.PlayerShip(shipID)
	if ship == nil {
		return economy.Fail(economy.ReasonUnknownShip), world.Path{}
	}
	if !s.Graph.Has(dest) {
		return economy.Fail(economy.ReasonUnknownCity), world.Path{}
	}

	from := ship.Location
	if ship.Sailing() {
		if ship.RouteIndex < 0 || ship.RouteIndex >= len(ship.Route) {
			return economy.Fail(economy.ReasonAlreadySailing), world.Path{}
		}
		from = ship.Route[ship.RouteIndex]
	}
	if from == dest {
		if ship.Sailing() {
			return economy.Fail(economy.ReasonAlreadySailing), world.Path{}
		}
		return economy.Fail(economy.ReasonAlreadyThere), world.Path{}
	}

	path, ok := s.Graph.ShortestPath(from, dest)
	if !ok {
		return economy.Fail(economy.ReasonNoPath), world.Path{}
	}

	if ship.Sailing() {
		ok = ship.Reroute(path.Cities)
	} else {
		ok = ship.Sail(path.Cities)
	}
	if !ok {
		return economy.Fail(economy.ReasonAlreadySailing), world.Path{}
	}

	s.emit("voyage", fmt.Sprintf("%s set sail for %s", ship.Name, s.cityName(dest)),
		map[string]any{"ship": ship.ID, "route": path.String()})
	return economy.Outcome{OK: true, Requested: 1, Executed: 1}, path
}

// BuyShip buys a new ship of typeID at a shipyard city.
func (s *Simulation) BuyShip(city, typeID string) (economy.Outcome, *fleet.Ship) {
	c, ok := s.Catalog.City(city)
	if !ok || s.State.City(city) == nil {
		return economy.Fail(economy.ReasonUnknownCity), nil
	}
	if !c.Shipyard {
		return economy.Fail(economy.ReasonNotShipyard), nil
	}
	t, ok := s.Catalog.ShipType(typeID)
	if !ok {
		return economy.Fail(economy.ReasonUnknownShipType), nil
	}
	if s.State.Player.Gold < t.Price {
		return economy.Fail(economy.ReasonInsufficientFunds), nil
	}

	s.State.Player.Gold -= t.Price
	ship := fleet.NewShip(s.State.newShipID(), t.Name, fleet.OwnerPlayer, fleet.SpecFrom(t), city)
	s.State.Player.Ships = append(s.State.Player.Ships, ship)
	s.Metrics.gold(s.State.Player.Gold)

	s.emit("fleet", fmt.Sprintf("A new %s joins the fleet at %s", t.Name, c.Name),
		map[string]any{"ship": ship.ID, "type": t.ID, "price": t.Price})
	return economy.Outcome{OK: true, Requested: 1, Executed: 1, UnitPrice: t.Price, Total: t.Price}, ship
}

// SellShip sells a docked, empty player ship for its resale value. The last
// ship of the fleet cannot be sold.
func (s *Simulation) SellShip(shipID string) economy.Outcome {
	ship := s.State.PlayerShip(shipID)
	if ship == nil {
		return economy.Fail(economy.ReasonUnknownShip)
	}
	if !ship.Docked() {
		return economy.Fail(economy.ReasonNotDocked)
	}
	if len(s.State.Player.Ships) <= 1 {
		return economy.Fail(economy.ReasonLastShip)
	}
	if ship.CargoTotal() > 0 {
		return economy.Fail(economy.ReasonCargoAboard)
	}

	value := s.ResaleValue(ship)
	s.State.Player.Gold += value
	ships := s.State.Player.Ships[:0]
	for _, sh := range s.State.Player.Ships {
		if sh.ID != ship.ID {
			ships = append(ships, sh)
		}
	}
	s.State.Player.Ships = ships
	s.Metrics.gold(s.State.Player.Gold)

	s.emit("fleet", fmt.Sprintf("%s was sold at %s", ship.Name, s.cityName(ship.Location)),
		map[string]any{"ship": ship.ID, "value": value})
	return economy.Outcome{OK: true, Requested: 1, Executed: 1, UnitPrice: value, Total: value}
}

// ResaleValue is the type price scaled by the resale factor and the
// remaining hull fraction, rounded down.
func (s *Simulation) ResaleValue(ship *fleet.Ship) float64 {
	t, ok := s.Catalog.ShipType(ship.Spec.TypeID)
	if !ok {
		return 0
	}
	frac := 1.0
	if ship.Spec.Hull > 0 {
		frac = math.Max(0, math.Min(1, ship.Hull/ship.Spec.Hull))
	}
	return math.Floor(t.Price * s.Catalog.Tuning.ShipResaleFactor * frac)
}

// Build adds a building to a city, or raises its level. Each level costs
// the base cost times the new level.
func (s *Simulation) Build(city, buildingID string) economy.Outcome {
	cs := s.State.City(city)
	if cs == nil {
		return economy.Fail(economy.ReasonUnknownCity)
	}
	bt, ok := s.Catalog.Building(buildingID)
	if !ok {
		return economy.Fail(economy.ReasonUnknownBuilding)
	}

	idx := -1
	for i, b := range cs.Buildings {
		if b.Type == buildingID {
			idx = i
			break
		}
	}
	level := 1
	if idx >= 0 {
		level = cs.Buildings[idx].Level + 1
	}
	cost := bt.Cost * float64(level)
	if s.State.Player.Gold < cost {
		return economy.Fail(economy.ReasonInsufficientFunds)
	}

	s.State.Player.Gold -= cost
	if idx >= 0 {
		cs.Buildings[idx].Level = level
	} else {
		cs.Buildings = append(cs.Buildings, Building{Type: buildingID, Level: 1})
	}
	s.Metrics.gold(s.State.Player.Gold)

	s.emit("building", fmt.Sprintf("%s level %d completed in %s", bt.Name, level, s.cityName(city)),
		map[string]any{"city": city, "building": buildingID, "level": level, "cost": cost})
	return economy.Outcome{OK: true, Requested: 1, Executed: 1, UnitPrice: cost, Total: cost}
}
