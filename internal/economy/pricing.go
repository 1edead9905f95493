package economy

import (
	"math"

	"github.com/talgya/portsim/internal/entropy"
)

// UpdateParams carries everything a market update needs besides the market.
type UpdateParams struct {
	Population        int
	BuildingBonus     map[string]float64 // good → extra units per update
	ProductionFactor  float64
	ConsumptionFactor float64
	Volatility        float64 // max fractional random price swing
	Difficulty        float64 // price multiplier
}

// PriceMove records a price change that crossed the trend deadband.
type PriceMove struct {
	City  string  `json:"city"`
	Good  string  `json:"good"`
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Trend Trend   `json:"trend"`
}

// Update runs one production/consumption/pricing pass over the market and
// returns the moves that changed a trend to rising or falling.
func (m *Market) Update(p UpdateParams, rng entropy.Source) []PriceMove {
	var moves []PriceMove
	for _, good := range m.Goods {
		e := m.Entries[good]
		if e == nil {
			continue
		}

		e.Stock += e.Production*p.ProductionFactor + p.BuildingBonus[good]
		e.Stock -= e.Demand * p.ConsumptionFactor * float64(p.Population) / 1000
		if e.Stock < 0 || math.IsNaN(e.Stock) {
			e.Stock = 0
		}

		mult := SupplyMultiplier(e.SupplyRatio())
		mult *= 1 + entropy.Signed(rng)*p.Volatility
		mult *= p.Difficulty

		old := e.Price
		e.LastPrice = old
		e.Price = clampPrice(e.BasePrice*mult, e.BasePrice, PriceFloor, PriceCeiling)

		switch {
		case e.Price-old > trendDeadband:
			e.Trend = TrendRising
		case old-e.Price > trendDeadband:
			e.Trend = TrendFalling
		default:
			e.Trend = TrendStable
		}
		if e.Trend != TrendStable {
			moves = append(moves, PriceMove{City: m.CityID, Good: good, From: old, To: e.Price, Trend: e.Trend})
		}
	}
	return moves
}

// SupplyMultiplier maps a supply ratio to a price multiplier.
// Below 0.3 a scarcity premium climbs from 1.5× toward 2.5×; above 2.0 an
// oversupply discount falls from 0.5× toward 0.2×; between the two the
// multiplier interpolates linearly from 1.5× down to 0.5×.
func SupplyMultiplier(ratio float64) float64 {
	switch {
	case ratio < 0.3:
		if ratio < 0 {
			ratio = 0
		}
		return 1.5 + (0.3-ratio)/0.3
	case ratio > 2.0:
		return math.Max(0.2, 0.5-0.05*(ratio-2.0))
	default:
		return 1.5 - (ratio-0.3)/1.7
	}
}
