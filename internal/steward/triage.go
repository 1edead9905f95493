package steward

import (
	"sort"
)

// Thresholds for a shortage: the market is scarce enough that pricing has
// entered its steep regime, or the price has doubled.
const (
	ScarceSupplyRatio = 0.3
	DearPriceRatio    = 2.0
)

// Crisis levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelHealthy  = "HEALTHY"
)

// Shortage is a demanded good in short supply in one city.
type Shortage struct {
	City        string  `json:"city"`
	CityName    string  `json:"city_name"`
	Good        string  `json:"good"`
	SupplyRatio float64 `json:"supply_ratio"`
	PriceRatio  float64 `json:"price_ratio"`
	Demand      float64 `json:"demand"`
	Production  float64 `json:"production"`
}

// Health holds diagnostic signals computed from a Snapshot.
type Health struct {
	Day             uint64
	Shortages       []Shortage // most severe first
	DemandedEntries int
	WorstCity       string // city with the most shortages
	WorstCount      int
	Level           string
}

// Triage computes a Health from the snapshot's markets.
func Triage(snap *Snapshot) *Health {
	h := &Health{Day: snap.Status.Day}

	for _, c := range snap.Cities {
		n := 0
		for _, m := range c.Market {
			if m.Demand <= 0 {
				continue
			}
			h.DemandedEntries++
			sr, pr := m.SupplyRatio(), m.PriceRatio()
			if sr >= ScarceSupplyRatio && pr < DearPriceRatio {
				continue
			}
			n++
			h.Shortages = append(h.Shortages, Shortage{
				City:        c.ID,
				CityName:    c.Name,
				Good:        m.Good,
				SupplyRatio: sr,
				PriceRatio:  pr,
				Demand:      m.Demand,
				Production:  m.Production,
			})
		}
		if n > h.WorstCount {
			h.WorstCity, h.WorstCount = c.ID, n
		}
	}

	sort.SliceStable(h.Shortages, func(i, j int) bool {
		a, b := h.Shortages[i], h.Shortages[j]
		if a.SupplyRatio != b.SupplyRatio {
			return a.SupplyRatio < b.SupplyRatio
		}
		return a.PriceRatio > b.PriceRatio
	})

	h.Level = LevelHealthy
	switch {
	case h.WorstCount >= 3:
		h.Level = LevelCritical
	case h.DemandedEntries > 0 && float64(len(h.Shortages)) >= 0.3*float64(h.DemandedEntries):
		h.Level = LevelCritical
	case len(h.Shortages) > 0:
		h.Level = LevelWarning
	}
	return h
}
