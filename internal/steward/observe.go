// Package steward implements the harbor steward, an out-of-process
// supervisor for a running game. It observes market state via the API,
// picks at most one relief intervention per cycle by fixed rules, and acts
// via the admin intervention endpoint.
package steward

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status Status     `json:"status"`
	Cities []CityInfo `json:"cities"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	SessionID  string  `json:"session_id"`
	Day        uint64  `json:"day"`
	Date       string  `json:"date"`
	Speed      int     `json:"speed"`
	PlayerGold float64 `json:"player_gold"`
}

// CityInfo mirrors GET /api/v1/city/{id}.
type CityInfo struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Population int          `json:"population"`
	Market     []MarketInfo `json:"market"`
}

// MarketInfo mirrors one market entry of a city.
type MarketInfo struct {
	Good       string  `json:"good"`
	Stock      float64 `json:"stock"`
	Price      float64 `json:"price"`
	BasePrice  float64 `json:"base_price"`
	Demand     float64 `json:"demand"`
	Production float64 `json:"production"`
	Trend      string  `json:"trend"`
}

// SupplyRatio is stock relative to the demand reference quantity, the
// same measure the market uses when pricing.
func (m MarketInfo) SupplyRatio() float64 {
	return m.Stock / (m.Demand*20 + 10)
}

// PriceRatio is price relative to base price.
func (m MarketInfo) PriceRatio() float64 {
	if m.BasePrice <= 0 {
		return 0
	}
	return m.Price / m.BasePrice
}

// Observer reads game state through the public endpoints.
type Observer struct {
	client
}

func NewObserver(baseURL string) *Observer {
	return &Observer{newClient(baseURL, "")}
}

// Fetch decodes one public GET endpoint into out.
func (o *Observer) Fetch(ctx context.Context, path string, out any) error {
	return o.call(ctx, http.MethodGet, path, nil, out)
}

// Observe fetches the status, the city list and every city's market.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.Fetch(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	var list []struct {
		ID string `json:"id"`
	}
	if err := o.Fetch(ctx, "/api/v1/cities", &list); err != nil {
		return nil, fmt.Errorf("fetch cities: %w", err)
	}
	for _, c := range list {
		var info CityInfo
		if err := o.Fetch(ctx, "/api/v1/city/"+url.PathEscape(c.ID), &info); err != nil {
			return nil, fmt.Errorf("fetch city %s: %w", c.ID, err)
		}
		snap.Cities = append(snap.Cities, info)
	}

	return snap, nil
}
