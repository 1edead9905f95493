package steward

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/portsim/internal/api"
	"github.com/talgya/portsim/internal/catalog"
	"github.com/talgya/portsim/internal/engine"
	"github.com/talgya/portsim/internal/entropy"
)

// warningSnapshot has one shortage among five demanded entries.
func warningSnapshot(day uint64) *Snapshot {
	return &Snapshot{
		Status: Status{SessionID: "s1", Day: day},
		Cities: []CityInfo{
			{ID: "a", Name: "Aport", Market: []MarketInfo{
				{Good: "grain", Stock: 10, Price: 40, BasePrice: 20, Demand: 4},
				{Good: "fish", Stock: 0, Price: 15, BasePrice: 15},
				{Good: "wine", Stock: 100, Price: 45, BasePrice: 45, Demand: 2},
				{Good: "iron", Stock: 200, Price: 50, BasePrice: 55, Demand: 1},
			}},
			{ID: "b", Name: "Bport", Market: []MarketInfo{
				{Good: "cloth", Stock: 70, Price: 60, BasePrice: 60, Demand: 3, Production: 2},
				{Good: "tools", Stock: 100, Price: 80, BasePrice: 80, Demand: 1},
			}},
		},
	}
}

func TestTriageLevels(t *testing.T) {
	h := Triage(warningSnapshot(10))
	if h.Level != LevelWarning || h.DemandedEntries != 5 || len(h.Shortages) != 1 {
		t.Fatalf("health = %+v", h)
	}
	if s := h.Shortages[0]; s.City != "a" || s.Good != "grain" || s.PriceRatio != 2 {
		t.Fatalf("shortage = %+v", s)
	}

	snap := warningSnapshot(10)
	// A doubled price counts even with stock on hand.
	snap.Cities[1].Market[0].Price = 130
	snap.Cities[1].Market[1].Stock = 0
	h = Triage(snap)
	if len(h.Shortages) != 3 || h.Level != LevelCritical {
		t.Fatalf("health = %+v", h)
	}
	if h.Shortages[0].Good != "tools" || h.Shortages[2].Good != "cloth" {
		t.Fatalf("order = %+v", h.Shortages)
	}
	if h.WorstCity != "b" || h.WorstCount != 2 {
		t.Fatalf("worst = %s/%d", h.WorstCity, h.WorstCount)
	}

	snap = warningSnapshot(10)
	snap.Cities[0].Market[0].Stock = 500
	if h := Triage(snap); h.Level != LevelHealthy {
		t.Fatalf("level = %s", h.Level)
	}
}

func TestDecideProvisionAndCooldown(t *testing.T) {
	mem := LoadMemory("")
	rules := DefaultRules()

	d := Decide(Triage(warningSnapshot(10)), mem, rules)
	if d.Action != "provision" || d.Intervention.City != "a" || d.Intervention.Quantity != 80 {
		t.Fatalf("decision = %+v %+v", d, d.Intervention)
	}
	mem.Record(CycleRecord{SessionID: "s1", Day: 10, Action: d.Action, City: "a", Good: "grain"})

	if d := Decide(Triage(warningSnapshot(20)), mem, rules); d.Action != "none" {
		t.Fatalf("cooldown ignored: %+v", d)
	}
	if d := Decide(Triage(warningSnapshot(40)), mem, rules); d.Action != "provision" {
		t.Fatalf("after cooldown: %+v", d)
	}
}

func TestDecideCultivatesLocalProducers(t *testing.T) {
	snap := warningSnapshot(5)
	snap.Cities[0].Market[0].Production = 1
	d := Decide(Triage(snap), LoadMemory(""), DefaultRules())
	if d.Action != "cultivate" || d.Intervention.Multiplier != 1.5 || d.Intervention.DurationDays != 30 {
		t.Fatalf("decision = %+v %+v", d, d.Intervention)
	}
}

func TestDecideCapsConvoys(t *testing.T) {
	snap := warningSnapshot(5)
	snap.Cities[0].Market[0].Demand = 50
	snap.Cities[0].Market[0].Stock = 0
	d := Decide(Triage(snap), LoadMemory(""), DefaultRules())
	if d.Intervention == nil || d.Intervention.Quantity != 200 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestMemoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steward.json")
	mem := LoadMemory(path)
	mem.Record(CycleRecord{SessionID: "old", Day: 3, Action: "provision", City: "x"})
	mem.Record(CycleRecord{SessionID: "new", Day: 7, Action: "provision", City: "y"})
	mem.Record(CycleRecord{SessionID: "new", Day: 9, Action: "none"})
	mem.Save()

	got := LoadMemory(path)
	if len(got.Records) != 3 {
		t.Fatalf("records = %d", len(got.Records))
	}
	got.Forget("new")
	if _, ok := got.LastActed("x"); ok {
		t.Fatal("record from another session survived")
	}
	if day, ok := got.LastActed("y"); !ok || day != 7 {
		t.Fatalf("LastActed = %d, %v", day, ok)
	}
}

func TestRunCycleAgainstServer(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	st, err := engine.NewGame(cat, 5)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	eng := engine.NewEngine(engine.NewSimulation(cat, st, entropy.New(5)), time.Second)
	srv := &api.Server{Eng: eng, AdminKey: "k"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	mem := LoadMemory(filepath.Join(t.TempDir(), "mem.json"))
	obs, act := NewObserver(ts.URL), NewActor(ts.URL, "k")

	// Cities start with almost no stock of goods they do not produce.
	first, err := RunCycle(ctx, obs, act, mem, DefaultRules())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if first.Action != "provision" {
		t.Fatalf("first = %+v", first)
	}
	second, err := RunCycle(ctx, obs, act, mem, DefaultRules())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if second.Intervention == nil || second.Intervention.City == first.Intervention.City {
		t.Fatalf("second cycle ignored cooldown: %+v", second.Intervention)
	}

	var admin int
	eng.View(func(sim *engine.Simulation) {
		for _, e := range sim.RecentEvents(0) {
			if e.Category == "admin" {
				admin++
			}
		}
	})
	if admin != 2 {
		t.Fatalf("admin events = %d", admin)
	}
	if len(mem.Records) != 2 || mem.Records[0].City != first.Intervention.City {
		t.Fatalf("memory = %+v", mem.Records)
	}

	if _, err := RunCycle(ctx, obs, NewActor(ts.URL, "wrong"), LoadMemory(""), DefaultRules()); err == nil {
		t.Fatal("expected act error with a bad key")
	}
}
