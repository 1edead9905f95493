package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(c.Goods) == 0 || len(c.Cities) == 0 || len(c.Routes) == 0 {
		t.Fatalf("empty default catalog: goods=%d cities=%d routes=%d", len(c.Goods), len(c.Cities), len(c.Routes))
	}
	if _, ok := c.City(c.Tuning.PlayerCity); !ok {
		t.Fatalf("player city %q missing", c.Tuning.PlayerCity)
	}
	if _, ok := c.ShipType(c.Tuning.AgentShip); !ok {
		t.Fatalf("agent ship %q missing", c.Tuning.AgentShip)
	}
	for _, city := range c.Cities {
		if city.Population < 500 {
			t.Errorf("city %s population %d below floor", city.ID, city.Population)
		}
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	raw := `
goods:
  - {id: grain, base_price: 10}
cities:
  - {id: a, population: 1000}
  - {id: b, population: 1000}
routes:
  - {a: a, b: b, distance: 2}
tuning: {}
`
	c, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Tuning.MarketUpdateDays != 3 {
		t.Fatalf("market_update_days default = %d, want 3", c.Tuning.MarketUpdateDays)
	}
	if c.Tuning.WindFloor != 0.3 {
		t.Fatalf("wind_floor default = %v, want 0.3", c.Tuning.WindFloor)
	}
	if got := c.Tuning.DifficultyModifier(); got != 1.0 {
		t.Fatalf("difficulty modifier = %v, want 1.0", got)
	}
	if ids := c.CityIDs(); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("city order = %v", ids)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"zero distance", `
goods: [{id: grain, base_price: 10}]
cities: [{id: a, population: 1000}, {id: b, population: 1000}]
routes: [{a: a, b: b, distance: 0}]
tuning: {}
`},
		{"tiny population", `
goods: [{id: grain, base_price: 10}]
cities: [{id: a, population: 10}]
routes: []
tuning: {}
`},
		{"sub-coin base price", `
goods: [{id: grain, base_price: 0.2}]
cities: [{id: a, population: 1000}]
routes: []
tuning: {}
`},
		{"bad difficulty", `
goods: [{id: grain, base_price: 10}]
cities: [{id: a, population: 1000}]
routes: []
tuning: {difficulty: brutal}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseReportsUnknownReferenceWithSuggestion(t *testing.T) {
	raw := `
goods: [{id: grain, base_price: 10}]
cities:
  - {id: lisbon, population: 1000, production: {grian: 2}}
routes: []
tuning: {}
`
	_, err := Parse([]byte(raw))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `did you mean "grain"`) {
		t.Fatalf("error %q lacks suggestion", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, defaultYAML, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := c.Good("spices"); !ok {
		t.Fatal("spices missing")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSuggest(t *testing.T) {
	known := []string{"lisbon", "porto", "venice"}
	if got := Suggest("lisbn", known); got != "lisbon" {
		t.Fatalf("Suggest(lisbn) = %q", got)
	}
	if got := Suggest("zanzibar", known); got != "" {
		t.Fatalf("Suggest(zanzibar) = %q, want none", got)
	}
}
