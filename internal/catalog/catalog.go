// Package catalog holds the static configuration of a game: goods, cities,
// buildings, ship types, the route edge list and simulation tuning.
// Catalogs are loaded once from yaml and never mutated afterwards.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Good is a tradeable commodity.
type Good struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	BasePrice float64 `yaml:"base_price" json:"base_price"`
	Weight    float64 `yaml:"weight" json:"weight"`
	Category  string  `yaml:"category" json:"category"`
}

// City is an immutable port city entry. Production and Demand are daily
// rates keyed by good id.
type City struct {
	ID         string             `yaml:"id" json:"id"`
	Name       string             `yaml:"name" json:"name"`
	X          float64            `yaml:"x" json:"x"`
	Y          float64            `yaml:"y" json:"y"`
	Population int                `yaml:"population" json:"population"`
	Shipyard   bool               `yaml:"shipyard" json:"shipyard"`
	Production map[string]float64 `yaml:"production" json:"production"`
	Demand     map[string]float64 `yaml:"demand" json:"demand"`
}

// BuildingType is a production modifier that can be built in a city.
// Each level adds Bonus units of Good per market update.
type BuildingType struct {
	ID    string  `yaml:"id" json:"id"`
	Name  string  `yaml:"name" json:"name"`
	Good  string  `yaml:"good" json:"good"`
	Bonus float64 `yaml:"bonus" json:"bonus"`
	Cost  float64 `yaml:"cost" json:"cost"`
}

// ShipType describes a hull that can be bought at a shipyard.
type ShipType struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	Capacity int     `yaml:"capacity" json:"capacity"`
	Speed    float64 `yaml:"speed" json:"speed"`
	Hull     float64 `yaml:"hull" json:"hull"`
	Cannons  int     `yaml:"cannons" json:"cannons"`
	Price    float64 `yaml:"price" json:"price"`
}

// RouteEdge is an undirected sea lane. Distance is measured in days.
type RouteEdge struct {
	A        string  `yaml:"a" json:"a"`
	B        string  `yaml:"b" json:"b"`
	Distance float64 `yaml:"distance" json:"distance"`
}

// Tuning holds the simulation constants.
type Tuning struct {
	DayDurationMs      int     `yaml:"day_duration_ms" json:"day_duration_ms"`
	StartYear          int     `yaml:"start_year" json:"start_year"`
	StartMonth         int     `yaml:"start_month" json:"start_month"`
	StartDay           int     `yaml:"start_day" json:"start_day"`
	Difficulty         string  `yaml:"difficulty" json:"difficulty"`
	MarketUpdateDays   int     `yaml:"market_update_days" json:"market_update_days"`
	ProductionFactor   float64 `yaml:"production_factor" json:"production_factor"`
	ConsumptionFactor  float64 `yaml:"consumption_factor" json:"consumption_factor"`
	Volatility         float64 `yaml:"volatility" json:"volatility"`
	TransitScale       float64 `yaml:"transit_scale" json:"transit_scale"`
	WindFloor          float64 `yaml:"wind_floor" json:"wind_floor"`
	PlayerGold         float64 `yaml:"player_gold" json:"player_gold"`
	PlayerShip         string  `yaml:"player_ship" json:"player_ship"`
	PlayerCity         string  `yaml:"player_city" json:"player_city"`
	AgentCount         int     `yaml:"agent_count" json:"agent_count"`
	AgentGold          float64 `yaml:"agent_gold" json:"agent_gold"`
	AgentShip          string  `yaml:"agent_ship" json:"agent_ship"`
	AgentDecisionDays  int     `yaml:"agent_decision_days" json:"agent_decision_days"`
	AgentStockShare    float64 `yaml:"agent_stock_share" json:"agent_stock_share"`
	StaggerAgentTimers bool    `yaml:"stagger_agent_timers" json:"stagger_agent_timers"`
	ShipResaleFactor   float64 `yaml:"ship_resale_factor" json:"ship_resale_factor"`
}

// DifficultyModifier returns the price multiplier for the configured difficulty.
func (t Tuning) DifficultyModifier() float64 {
	switch t.Difficulty {
	case "easy":
		return 0.9
	case "hard":
		return 1.15
	default:
		return 1.0
	}
}

// Catalog is the full static configuration of a game.
type Catalog struct {
	Goods     []Good         `yaml:"goods" json:"goods"`
	Cities    []City         `yaml:"cities" json:"cities"`
	Buildings []BuildingType `yaml:"buildings" json:"buildings"`
	Ships     []ShipType     `yaml:"ships" json:"ships"`
	Routes    []RouteEdge    `yaml:"routes" json:"routes"`
	Tuning    Tuning         `yaml:"tuning" json:"tuning"`

	goodIndex     map[string]int
	cityIndex     map[string]int
	buildingIndex map[string]int
	shipIndex     map[string]int
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a yaml catalog, fills tuning defaults, validates it and
// builds the lookup indexes.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	c.Tuning.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.index()
	return &c, nil
}

func (t *Tuning) applyDefaults() {
	if t.DayDurationMs <= 0 {
		t.DayDurationMs = 1000
	}
	if t.StartYear == 0 {
		t.StartYear = 1600
	}
	if t.StartMonth == 0 {
		t.StartMonth = 1
	}
	if t.StartDay == 0 {
		t.StartDay = 1
	}
	if t.Difficulty == "" {
		t.Difficulty = "normal"
	}
	if t.MarketUpdateDays <= 0 {
		t.MarketUpdateDays = 3
	}
	if t.ProductionFactor == 0 {
		t.ProductionFactor = 3
	}
	if t.ConsumptionFactor == 0 {
		t.ConsumptionFactor = 0.15
	}
	if t.TransitScale == 0 {
		t.TransitScale = 5
	}
	if t.WindFloor == 0 {
		t.WindFloor = 0.3
	}
	if t.AgentDecisionDays <= 0 {
		t.AgentDecisionDays = 5
	}
	if t.AgentStockShare == 0 {
		t.AgentStockShare = 0.3
	}
	if t.ShipResaleFactor == 0 {
		t.ShipResaleFactor = 0.5
	}
}

func (c *Catalog) index() {
	c.goodIndex = make(map[string]int, len(c.Goods))
	for i, g := range c.Goods {
		c.goodIndex[g.ID] = i
	}
	c.cityIndex = make(map[string]int, len(c.Cities))
	for i, city := range c.Cities {
		c.cityIndex[city.ID] = i
	}
	c.buildingIndex = make(map[string]int, len(c.Buildings))
	for i, b := range c.Buildings {
		c.buildingIndex[b.ID] = i
	}
	c.shipIndex = make(map[string]int, len(c.Ships))
	for i, s := range c.Ships {
		c.shipIndex[s.ID] = i
	}
}

// Good looks up a good by id.
func (c *Catalog) Good(id string) (Good, bool) {
	i, ok := c.goodIndex[id]
	if !ok {
		return Good{}, false
	}
	return c.Goods[i], true
}

// City looks up a city by id.
func (c *Catalog) City(id string) (City, bool) {
	i, ok := c.cityIndex[id]
	if !ok {
		return City{}, false
	}
	return c.Cities[i], true
}

// Building looks up a building type by id.
func (c *Catalog) Building(id string) (BuildingType, bool) {
	i, ok := c.buildingIndex[id]
	if !ok {
		return BuildingType{}, false
	}
	return c.Buildings[i], true
}

// ShipType looks up a ship type by id.
func (c *Catalog) ShipType(id string) (ShipType, bool) {
	i, ok := c.shipIndex[id]
	if !ok {
		return ShipType{}, false
	}
	return c.Ships[i], true
}

// CityIDs returns city ids in catalog order.
func (c *Catalog) CityIDs() []string {
	ids := make([]string, len(c.Cities))
	for i, city := range c.Cities {
		ids[i] = city.ID
	}
	return ids
}
