package engine

import (
	"github.com/talgya/portsim/internal/economy"
)

// updateMarkets runs the production/consumption/pricing pass over every
// city in catalog order.
func (s *Simulation) updateMarkets() []economy.PriceMove {
	st := s.State
	t := s.Catalog.Tuning
	s.expireBoosts()

	var moves []economy.PriceMove
	for _, id := range st.CityOrder {
		cs := st.Cities[id]
		if cs == nil || cs.Market == nil {
			continue
		}
		p := economy.UpdateParams{
			Population:        cs.Population,
			BuildingBonus:     s.productionBonus(cs),
			ProductionFactor:  t.ProductionFactor,
			ConsumptionFactor: t.ConsumptionFactor,
			Volatility:        t.Volatility,
			Difficulty:        t.DifficultyModifier(),
		}
		moves = append(moves, cs.Market.Update(p, s.rng)...)
	}
	for _, mv := range moves {
		if mv.Trend == economy.TrendRising && mv.To-mv.From >= mv.From*0.25 {
			s.emit("market", "Price of "+mv.Good+" jumps in "+s.cityName(mv.City),
				map[string]any{"city": mv.City, "good": mv.Good, "from": mv.From, "to": mv.To})
		}
	}
	return moves
}

// productionBonus combines building bonuses and active boosts for a city.
func (s *Simulation) productionBonus(cs *CityState) map[string]float64 {
	bonus := cs.BuildingBonus(func(typeID string) (string, float64, bool) {
		b, ok := s.Catalog.Building(typeID)
		return b.Good, b.Bonus, ok
	})
	for _, b := range s.State.Boosts {
		if b.City != cs.ID {
			continue
		}
		e := cs.Market.Entry(b.Good)
		if e == nil {
			continue
		}
		if bonus == nil {
			bonus = make(map[string]float64)
		}
		bonus[b.Good] += e.Production * s.Catalog.Tuning.ProductionFactor * (b.Multiplier - 1)
	}
	return bonus
}
