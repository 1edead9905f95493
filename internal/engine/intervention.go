package engine

import (
	"fmt"
	"log/slog"
)

// ProductionBoost is a temporary production multiplier on one good in a city.
type ProductionBoost struct {
	City       string  `json:"city"`
	Good       string  `json:"good"`
	Multiplier float64 `json:"multiplier"`
	ExpiresDay uint64  `json:"expires_day"`
}

// ProvisionCity injects goods into a city's market stock.
func (s *Simulation) ProvisionCity(city, good string, quantity int) (string, error) {
	cs := s.State.City(city)
	if cs == nil || cs.Market == nil {
		return "", fmt.Errorf("city %q not found", city)
	}
	if quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	e := cs.Market.Entry(good)
	if e == nil {
		return "", fmt.Errorf("good %q not traded in %q", good, city)
	}

	e.Stock += float64(quantity)
	desc := fmt.Sprintf("A convoy reaches %s carrying %d units of %s", s.cityName(city), quantity, good)
	s.emit("admin", desc, map[string]any{"city": city, "good": good, "quantity": quantity})

	slog.Info("provision intervention", "city", city, "good", good, "quantity", quantity)
	return desc, nil
}

// CultivateCity multiplies a city's production of one good for a number of days.
func (s *Simulation) CultivateCity(city, good string, multiplier float64, durationDays int) (string, error) {
	cs := s.State.City(city)
	if cs == nil || cs.Market == nil {
		return "", fmt.Errorf("city %q not found", city)
	}
	if cs.Market.Entry(good) == nil {
		return "", fmt.Errorf("good %q not traded in %q", good, city)
	}
	if multiplier <= 0 || durationDays <= 0 {
		return "", fmt.Errorf("multiplier and duration must be positive")
	}

	expires := s.State.Day + uint64(durationDays)
	s.State.Boosts = append(s.State.Boosts, ProductionBoost{
		City:       city,
		Good:       good,
		Multiplier: multiplier,
		ExpiresDay: expires,
	})

	desc := fmt.Sprintf("A good season for %s in %s (%.1fx for %d days)", good, s.cityName(city), multiplier, durationDays)
	s.emit("admin", desc, map[string]any{
		"city":          city,
		"good":          good,
		"multiplier":    multiplier,
		"duration_days": durationDays,
	})

	slog.Info("cultivate intervention", "city", city, "good", good, "multiplier", multiplier, "expires_day", expires)
	return desc, nil
}

// GrantGold adds gold to (or, when negative, takes gold from) the player.
// The purse never drops below zero.
func (s *Simulation) GrantGold(amount float64) (string, error) {
	if amount == 0 {
		return "", fmt.Errorf("amount must be non-zero")
	}
	s.State.Player.Gold += amount
	if s.State.Player.Gold < 0 {
		s.State.Player.Gold = 0
	}
	s.Metrics.gold(s.State.Player.Gold)

	desc := fmt.Sprintf("The treasury adjusts the player's purse by %.0f gold", amount)
	s.emit("admin", desc, map[string]any{"amount": amount})

	slog.Info("gold intervention", "amount", amount, "gold", s.State.Player.Gold)
	return desc, nil
}

// expireBoosts removes production boosts that have run out.
func (s *Simulation) expireBoosts() {
	n := 0
	for _, b := range s.State.Boosts {
		if b.ExpiresDay > s.State.Day {
			s.State.Boosts[n] = b
			n++
		}
	}
	if n < len(s.State.Boosts) {
		slog.Info("expired production boosts cleaned", "removed", len(s.State.Boosts)-n)
	}
	s.State.Boosts = s.State.Boosts[:n]
}
