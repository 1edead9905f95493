package steward

import (
	"context"
	"fmt"
	"log/slog"
)

// RunCycle executes one observe → triage → decide → act cycle and records
// it in mem.
func RunCycle(ctx context.Context, o *Observer, a *Actor, mem *Memory, r Rules) (*Decision, error) {
	snap, err := o.Observe(ctx)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	mem.Forget(snap.Status.SessionID)

	h := Triage(snap)
	slog.Info("observation complete",
		"day", snap.Status.Day,
		"date", snap.Status.Date,
		"level", h.Level,
		"shortages", len(h.Shortages),
		"worst_city", h.WorstCity,
	)

	d := Decide(h, mem, r)
	slog.Info("decision made", "action", d.Action, "rationale", d.Rationale)

	rec := CycleRecord{
		SessionID: snap.Status.SessionID,
		Day:       snap.Status.Day,
		Action:    d.Action,
		Level:     h.Level,
		Shortages: len(h.Shortages),
		Rationale: d.Rationale,
	}
	if d.Intervention == nil {
		mem.Record(rec)
		mem.Save()
		return d, nil
	}

	res, err := a.Act(ctx, d.Intervention)
	if err != nil {
		return d, fmt.Errorf("act: %w", err)
	}
	rec.City, rec.Good = d.Intervention.City, d.Intervention.Good
	for _, s := range h.Shortages {
		if s.City == rec.City && s.Good == rec.Good {
			rec.Ratio = s.SupplyRatio
			break
		}
	}
	mem.Record(rec)
	mem.Save()

	slog.Info("intervention executed",
		"type", d.Intervention.Type,
		"city", d.Intervention.City,
		"good", d.Intervention.Good,
		"success", res.Success,
		"details", res.Details,
	)
	return d, nil
}
