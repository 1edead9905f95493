// Package economy provides per-city markets: stock, pricing, and the buy/sell
// operations shared by the player and trader agents.
package economy

import (
	"math"

	"github.com/talgya/portsim/internal/catalog"
	"github.com/talgya/portsim/internal/entropy"
)

// Trend is the direction of the last price move.
type Trend string

const (
	TrendStable  Trend = "stable"
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
)

// Price regimes, as multiples of base price.
const (
	InitialPriceFloor   = 0.4
	InitialPriceCeiling = 2.5
	PriceFloor          = 0.3
	PriceCeiling        = 3.5

	// trendDeadband is the minimum price move that counts as a trend.
	trendDeadband = 1.0
)

// MarketEntry represents the state of one good in one city.
type MarketEntry struct {
	Good       string  `json:"good"`
	Stock      float64 `json:"stock"`
	Price      float64 `json:"price"`
	LastPrice  float64 `json:"last_price"`
	BasePrice  float64 `json:"base_price"`
	Demand     float64 `json:"demand"`     // consumption rate, scaled by population
	Production float64 `json:"production"` // units produced per day
	Trend      Trend   `json:"trend"`
}

// SupplyRatio is stock relative to the demand-derived reference quantity.
func (e *MarketEntry) SupplyRatio() float64 {
	return e.Stock / (e.Demand*20 + 10)
}

// Market holds the commodity state of a single city.
type Market struct {
	CityID  string                  `json:"city_id"`
	Goods   []string                `json:"goods"` // iteration order
	Entries map[string]*MarketEntry `json:"entries"`
}

// Entry returns the market entry for a good, or nil.
func (m *Market) Entry(good string) *MarketEntry {
	if m == nil {
		return nil
	}
	return m.Entries[good]
}

// NewMarket seeds a city market from the catalog. Stock starts at twenty
// days of production plus a small offset; price starts from the city's
// production/demand balance with a little jitter.
func NewMarket(city catalog.City, goods []catalog.Good, rng entropy.Source) *Market {
	m := &Market{
		CityID:  city.ID,
		Goods:   make([]string, 0, len(goods)),
		Entries: make(map[string]*MarketEntry, len(goods)),
	}
	for _, g := range goods {
		prod := city.Production[g.ID]
		demand := city.Demand[g.ID]

		stock := prod*20 + entropy.Between(rng, 0, 5)
		mult := (1 + 0.1*demand) / (1 + 0.1*prod)
		mult *= entropy.Between(rng, 0.9, 1.1)
		price := clampPrice(g.BasePrice*mult, g.BasePrice, InitialPriceFloor, InitialPriceCeiling)

		m.Goods = append(m.Goods, g.ID)
		m.Entries[g.ID] = &MarketEntry{
			Good:       g.ID,
			Stock:      stock,
			Price:      price,
			LastPrice:  price,
			BasePrice:  g.BasePrice,
			Demand:     demand,
			Production: prod,
			Trend:      TrendStable,
		}
	}
	return m
}

// PriceBounds returns the whole-coin clamp bounds for a base price and
// regime: the smallest and largest integers inside [base*lo, base*hi].
// Catalog base prices are at least 1, which keeps the range non-empty.
func PriceBounds(base, lo, hi float64) (float64, float64) {
	floor := math.Ceil(base * lo)
	ceiling := math.Floor(base * hi)
	if ceiling < floor {
		ceiling = floor
	}
	return floor, ceiling
}

// clampPrice rounds to a whole coin and clamps to the regime bounds.
func clampPrice(p, base, lo, hi float64) float64 {
	floor, ceiling := PriceBounds(base, lo, hi)
	p = math.Round(p)
	if math.IsNaN(p) || p < floor {
		return floor
	}
	if p > ceiling {
		return ceiling
	}
	return p
}
