// Package agents provides autonomous rival traders and the decision policy
// that drives their ships.
package agents

import "github.com/talgya/portsim/internal/fleet"

// TraderAgent is a non-player merchant house. Its ships carry the agent id
// as owner tag.
type TraderAgent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Gold       float64       `json:"gold"`
	Ships      []*fleet.Ship `json:"ships"`
	Aggression float64       `json:"aggression"` // 0.0 (timid) to 1.0 (ruthless), read by combat
	Timer      int           `json:"timer"`      // days since the last decision
	TargetCity string        `json:"target_city,omitempty"`
}

// Tick advances the decision timer by a day and reports whether the agent
// decides this day. The timer resets to zero when it fires.
func (a *TraderAgent) Tick(interval int) bool {
	if interval < 1 {
		interval = 1
	}
	a.Timer++
	if a.Timer >= interval {
		a.Timer = 0
		return true
	}
	return false
}

// Ship returns the agent's ship with the given id, or nil.
func (a *TraderAgent) Ship(id string) *fleet.Ship {
	for _, s := range a.Ships {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// NetWorth returns gold plus the value of cargo at the given price lookup.
func (a *TraderAgent) NetWorth(price func(good string) float64) float64 {
	worth := a.Gold
	for _, s := range a.Ships {
		for _, g := range s.CargoGoods() {
			worth += float64(s.Held(g)) * price(g)
		}
	}
	return worth
}
