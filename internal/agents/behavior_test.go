package agents

import (
	"reflect"
	"testing"

	"github.com/talgya/portsim/internal/catalog"
	"github.com/talgya/portsim/internal/economy"
	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/fleet"
	"github.com/talgya/portsim/internal/world"
)

type marketMap map[string]*economy.Market

func (m marketMap) Market(city string) *economy.Market { return m[city] }

func market(city string, prices map[string]float64, stock float64) *economy.Market {
	m := &economy.Market{CityID: city, Entries: make(map[string]*economy.MarketEntry)}
	for _, g := range []string{"grain", "wine"} {
		m.Goods = append(m.Goods, g)
		m.Entries[g] = &economy.MarketEntry{Good: g, Stock: stock, Price: prices[g], LastPrice: prices[g], BasePrice: prices[g]}
	}
	return m
}

func fixture() (Policy, marketMap) {
	g := world.NewGraph([]catalog.RouteEdge{
		{A: "A", B: "B", Distance: 2},
		{A: "B", B: "C", Distance: 3},
	})
	g.AddIsolated("D")
	mk := marketMap{
		"A": market("A", map[string]float64{"grain": 10, "wine": 50}, 100),
		"B": market("B", map[string]float64{"grain": 12, "wine": 50}, 100),
		"C": market("C", map[string]float64{"grain": 30, "wine": 40}, 100),
		"D": market("D", map[string]float64{"grain": 10, "wine": 50}, 100),
	}
	return Policy{Graph: g, Markets: mk, StockShare: 0.3}, mk
}

func trader(at string, gold float64) *TraderAgent {
	return &TraderAgent{
		ID:   "agent-01",
		Gold: gold,
		Ships: []*fleet.Ship{
			fleet.NewShip("agent-01-ship-1", "Swift", "agent-01", fleet.Spec{Capacity: 50, Speed: 5}, at),
		},
	}
}

func TestLiquidateSellsAllCargoAtLocalPrice(t *testing.T) {
	_, mk := fixture()
	a := trader("A", 0)
	s := a.Ships[0]
	s.Load("grain", 20)

	sold, revenue := Liquidate(s, mk["A"], &a.Gold)
	if a.Gold != 200 || revenue != 200 {
		t.Fatalf("gold=%v revenue=%v, want 200", a.Gold, revenue)
	}
	if got := mk["A"].Entry("grain").Stock; got != 120 {
		t.Fatalf("stock = %v, want 120", got)
	}
	if s.Held("grain") != 0 || s.CargoTotal() != 0 {
		t.Fatalf("cargo not cleared: %v", s.Cargo)
	}
	if !reflect.DeepEqual(sold, map[string]int{"grain": 20}) {
		t.Fatalf("sold = %v", sold)
	}
}

func TestLiquidateDumpsGoodsTheMarketDoesNotTrade(t *testing.T) {
	_, mk := fixture()
	a := trader("A", 0)
	a.Ships[0].Load("silk", 5)
	Liquidate(a.Ships[0], mk["A"], &a.Gold)
	if a.Ships[0].CargoTotal() != 0 || a.Gold != 0 {
		t.Fatalf("cargo=%v gold=%v", a.Ships[0].Cargo, a.Gold)
	}
}

func TestDecidePicksBestDestinationAndLoads(t *testing.T) {
	p, mk := fixture()
	a := trader("A", 10000)
	a.Ships[0].Load("wine", 10)

	ds := p.Decide(a, entropy.New(3))
	if len(ds) != 1 {
		t.Fatalf("decisions = %d", len(ds))
	}
	d := ds[0]
	if d.To != "C" || d.Random || !d.Sailed {
		t.Fatalf("decision = %+v", d)
	}
	if d.Sold["wine"] != 10 || d.Revenue != 500 {
		t.Fatalf("liquidation = %+v", d)
	}
	// 30% of 100 grain; wine is not profitable toward C.
	if !reflect.DeepEqual(d.Bought, map[string]int{"grain": 30}) || d.Spent != 300 {
		t.Fatalf("bought = %v spent = %v", d.Bought, d.Spent)
	}
	if a.Gold != 10000+500-300 {
		t.Fatalf("gold = %v", a.Gold)
	}
	if mk["A"].Entry("grain").Stock != 70 {
		t.Fatalf("origin stock = %v", mk["A"].Entry("grain").Stock)
	}
	s := a.Ships[0]
	if !s.Sailing() || !reflect.DeepEqual(s.Route, []string{"A", "B", "C"}) || a.TargetCity != "C" {
		t.Fatalf("ship = %+v", s)
	}
	if s.CargoTotal() > s.Spec.Capacity {
		t.Fatalf("cargo %d over capacity", s.CargoTotal())
	}
}

func TestDecideBoundedByFunds(t *testing.T) {
	p, _ := fixture()
	a := trader("A", 55)
	d := p.Decide(a, entropy.New(4))[0]
	if d.Bought["grain"] != 5 || a.Gold != 5 {
		t.Fatalf("bought=%v gold=%v", d.Bought, a.Gold)
	}
}

func TestDecideFallsBackToRandomNeighbor(t *testing.T) {
	p, mk := fixture()
	for _, city := range []string{"B", "C"} {
		for _, g := range []string{"grain", "wine"} {
			mk[city].Entry(g).Price = mk["A"].Entry(g).Price
		}
	}
	a := trader("A", 1000)
	d := p.Decide(a, entropy.New(5))[0]
	if d.To != "B" || !d.Random || !d.Sailed {
		t.Fatalf("decision = %+v", d)
	}
	if len(d.Bought) != 0 || a.Gold != 1000 {
		t.Fatalf("bought %v with no profit", d.Bought)
	}
}

func TestDecideWithoutPathIsNoOp(t *testing.T) {
	p, _ := fixture()
	a := trader("D", 1000)
	d := p.Decide(a, entropy.New(6))[0]
	if d.Sailed || d.Reason != economy.ReasonNoPath {
		t.Fatalf("decision = %+v", d)
	}
	if !a.Ships[0].Docked() || a.Ships[0].Location != "D" || a.Gold != 1000 {
		t.Fatalf("ship = %+v gold = %v", a.Ships[0], a.Gold)
	}
}

func TestDecideSkipsSailingShips(t *testing.T) {
	p, _ := fixture()
	a := trader("A", 1000)
	a.Ships[0].Sail([]string{"A", "B"})
	if ds := p.Decide(a, entropy.New(7)); len(ds) != 0 {
		t.Fatalf("decisions for sailing ship: %+v", ds)
	}
}

func TestRankOpportunities(t *testing.T) {
	_, mk := fixture()
	mk["C"].Entry("wine").Price = 80
	got := RankOpportunities(mk["A"], mk["C"])
	want := []Opportunity{{Good: "wine", Profit: 30}, {Good: "grain", Profit: 20}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranked = %+v", got)
	}
}

func TestTimerFiresAtInterval(t *testing.T) {
	a := &TraderAgent{}
	fired := 0
	for day := 1; day <= 15; day++ {
		if a.Tick(5) {
			fired++
			if day%5 != 0 {
				t.Fatalf("fired on day %d", day)
			}
			if a.Timer != 0 {
				t.Fatalf("timer not reset: %d", a.Timer)
			}
		}
	}
	if fired != 3 {
		t.Fatalf("fired %d times", fired)
	}
}

func TestSpawnerIsStableAndStaggers(t *testing.T) {
	cfg := SpawnConfig{Count: 3, Gold: 100, Ship: fleet.Spec{Capacity: 10, Speed: 5}, HomePorts: []string{"A", "B"}, Interval: 5}
	a := NewSpawner(entropy.New(8)).Spawn(cfg)
	b := NewSpawner(entropy.New(8)).Spawn(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("spawn not reproducible")
	}
	for i, ag := range a {
		if ag.Timer != 0 {
			t.Fatalf("agent %d timer %d without stagger", i, ag.Timer)
		}
		if ag.Ships[0].Owner != ag.ID {
			t.Fatalf("ship owner %q", ag.Ships[0].Owner)
		}
	}
	if a[0].ID != "agent-01" || a[2].ID != "agent-03" {
		t.Fatalf("ids = %s..%s", a[0].ID, a[2].ID)
	}

	cfg.StaggerTimers = true
	cfg.Count = 20
	seen := map[int]bool{}
	for _, ag := range NewSpawner(entropy.New(9)).Spawn(cfg) {
		if ag.Timer < 0 || ag.Timer >= 5 {
			t.Fatalf("timer %d out of range", ag.Timer)
		}
		seen[ag.Timer] = true
	}
	if len(seen) < 2 {
		t.Fatal("stagger produced identical timers")
	}
}
