package steward

import (
	"fmt"
	"log/slog"
	"math"
)

// Rules bound what the steward may do in one cycle.
type Rules struct {
	CooldownDays   uint64  // days before the same city may be helped again
	ProvisionDays  float64 // days of demand a convoy carries
	MaxProvision   int
	CultivateMult  float64
	CultivateDays  int
	CultivateLevel string // level at which cultivation is preferred over convoys
}

// DefaultRules are the rules used by cmd/steward.
func DefaultRules() Rules {
	return Rules{
		CooldownDays:   30,
		ProvisionDays:  20,
		MaxProvision:   200,
		CultivateMult:  1.5,
		CultivateDays:  30,
		CultivateLevel: LevelWarning,
	}
}

// Decision is the steward's chosen action for a cycle.
type Decision struct {
	Action       string        `json:"action"` // "none", "provision", "cultivate"
	Rationale    string        `json:"rationale"`
	Intervention *Intervention `json:"intervention"`
}

// Intervention is the payload for POST /api/v1/intervention.
type Intervention struct {
	Type         string  `json:"type"`
	City         string  `json:"city"`
	Good         string  `json:"good"`
	Quantity     int     `json:"quantity,omitempty"`
	Multiplier   float64 `json:"multiplier,omitempty"`
	DurationDays int     `json:"duration_days,omitempty"`
}

// Decide picks zero or one intervention. The most severe shortage in a
// city not helped within the cooldown wins. A city that produces the good
// itself gets a production boost while the world is only at WARNING; in a
// crisis, or when the city cannot produce it, a convoy delivers stock.
func Decide(h *Health, mem *Memory, r Rules) *Decision {
	if h.Level == LevelHealthy || len(h.Shortages) == 0 {
		return &Decision{Action: "none", Rationale: "markets are supplied"}
	}

	for _, s := range h.Shortages {
		if last, ok := mem.LastActed(s.City); ok && h.Day < last+r.CooldownDays {
			slog.Debug("steward cooldown", "city", s.City, "last_day", last)
			continue
		}

		if s.Production > 0 && h.Level == r.CultivateLevel {
			return &Decision{
				Action: "cultivate",
				Rationale: fmt.Sprintf("%s short of %s (supply %.2f, price %.1fx); local producers can recover",
					s.CityName, s.Good, s.SupplyRatio, s.PriceRatio),
				Intervention: &Intervention{
					Type:         "cultivate",
					City:         s.City,
					Good:         s.Good,
					Multiplier:   r.CultivateMult,
					DurationDays: r.CultivateDays,
				},
			}
		}

		qty := int(math.Ceil(s.Demand * r.ProvisionDays))
		if qty < 10 {
			qty = 10
		}
		if qty > r.MaxProvision {
			qty = r.MaxProvision
		}
		return &Decision{
			Action: "provision",
			Rationale: fmt.Sprintf("%s short of %s (supply %.2f, price %.1fx) at %s",
				s.CityName, s.Good, s.SupplyRatio, s.PriceRatio, h.Level),
			Intervention: &Intervention{
				Type:     "provision",
				City:     s.City,
				Good:     s.Good,
				Quantity: qty,
			},
		}
	}

	return &Decision{Action: "none", Rationale: "every short city is on cooldown"}
}
