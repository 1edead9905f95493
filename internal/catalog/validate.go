package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed catalog.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("catalog.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("catalog.schema.json")
	})
	return schema, schemaErr
}

// Validate checks the catalog shape against the embedded schema, then checks
// that every id reference resolves.
func (c *Catalog) Validate() error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}

	return c.checkReferences()
}

func (c *Catalog) checkReferences() error {
	var errs []error

	goods := make(map[string]bool, len(c.Goods))
	for _, g := range c.Goods {
		if goods[g.ID] {
			errs = append(errs, fmt.Errorf("duplicate good %q", g.ID))
		}
		goods[g.ID] = true
	}
	goodIDs := keys(goods)

	cities := make(map[string]bool, len(c.Cities))
	for _, city := range c.Cities {
		if cities[city.ID] {
			errs = append(errs, fmt.Errorf("duplicate city %q", city.ID))
		}
		cities[city.ID] = true
		for g := range city.Production {
			if !goods[g] {
				errs = append(errs, unknownRef("city "+city.ID+" production", g, goodIDs))
			}
		}
		for g := range city.Demand {
			if !goods[g] {
				errs = append(errs, unknownRef("city "+city.ID+" demand", g, goodIDs))
			}
		}
	}
	cityIDs := keys(cities)

	for _, b := range c.Buildings {
		if !goods[b.Good] {
			errs = append(errs, unknownRef("building "+b.ID, b.Good, goodIDs))
		}
	}

	ships := make(map[string]bool, len(c.Ships))
	for _, s := range c.Ships {
		ships[s.ID] = true
	}
	shipIDs := keys(ships)

	for _, e := range c.Routes {
		if !cities[e.A] {
			errs = append(errs, unknownRef("route", e.A, cityIDs))
		}
		if !cities[e.B] {
			errs = append(errs, unknownRef("route", e.B, cityIDs))
		}
		if e.A == e.B {
			errs = append(errs, fmt.Errorf("route %s-%s connects a city to itself", e.A, e.B))
		}
	}

	t := c.Tuning
	if t.PlayerCity != "" && !cities[t.PlayerCity] {
		errs = append(errs, unknownRef("tuning player_city", t.PlayerCity, cityIDs))
	}
	if t.PlayerShip != "" && !ships[t.PlayerShip] {
		errs = append(errs, unknownRef("tuning player_ship", t.PlayerShip, shipIDs))
	}
	if t.AgentShip != "" && !ships[t.AgentShip] {
		errs = append(errs, unknownRef("tuning agent_ship", t.AgentShip, shipIDs))
	}

	return errors.Join(errs...)
}

func unknownRef(where, id string, known []string) error {
	if s := Suggest(id, known); s != "" {
		return fmt.Errorf("%s: unknown id %q (did you mean %q?)", where, id, s)
	}
	return fmt.Errorf("%s: unknown id %q", where, id)
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
