package engine

import (
	"fmt"
	"log/slog"
	"math"
)

// Supply thresholds for monthly population change.
const (
	growthSupplyRatio  = 1.0
	declineSupplyRatio = 0.3
)

// processMonth adjusts populations from market supply and then runs the
// monthly collaborators.
func (s *Simulation) processMonth() {
	st := s.State
	grew, shrank := 0, 0
	total := 0
	for _, id := range st.CityOrder {
		cs := st.Cities[id]
		if cs == nil {
			continue
		}
		switch PopulationChange(cs) {
		case 1:
			grew++
		case -1:
			shrank++
		}
		total += cs.Population
	}

	s.Collab.monthStarted(st, st.Date)

	s.emit("month", fmt.Sprintf("%s %d begins", st.Date.MonthName(), st.Date.Year),
		map[string]any{"grew": grew, "shrank": shrank})
	slog.Info("monthly report",
		"date", st.Date.Long(),
		"day", st.Day,
		"population", total,
		"cities_grew", grew,
		"cities_shrank", shrank,
		"player_gold", fmt.Sprintf("%.0f", st.Player.Gold),
		"player_ships", len(st.Player.Ships),
		"agents", len(st.Agents),
	)
}

// PopulationChange applies one month of growth or decline to a city based
// on the average supply ratio of the goods it demands. It returns +1, -1
// or 0 for the direction taken.
func PopulationChange(cs *CityState) int {
	ratio, ok := averageSupply(cs)
	if !ok {
		return 0
	}
	delta := int(math.Round(float64(cs.Population) * 0.01))
	if delta < 1 {
		delta = 1
	}
	switch {
	case ratio >= growthSupplyRatio:
		cs.Population += delta
		return 1
	case ratio < declineSupplyRatio:
		before := cs.Population
		cs.Population -= delta
		if cs.Population < MinPopulation {
			cs.Population = MinPopulation
		}
		if cs.Population == before {
			return 0
		}
		return -1
	}
	return 0
}

func averageSupply(cs *CityState) (float64, bool) {
	if cs.Market == nil {
		return 0, false
	}
	sum, n := 0.0, 0
	for _, g := range cs.Market.Goods {
		e := cs.Market.Entry(g)
		if e == nil || e.Demand <= 0 {
			continue
		}
		sum += e.SupplyRatio()
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
