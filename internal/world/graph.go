// Package world provides the static sea-lane network between port cities
// and shortest-path routing over it.
package world

import (
	"fmt"
	"sort"

	"github.com/talgya/portsim/internal/catalog"
)

// Lane is one directed half of an undirected route edge.
type Lane struct {
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
}

// Graph holds the adjacency list built once from the route edge list.
type Graph struct {
	adj   map[string][]Lane
	order []string // cities in first-seen order
}

// NewGraph builds an undirected graph. Each edge contributes both directions.
func NewGraph(edges []catalog.RouteEdge) *Graph {
	g := &Graph{adj: make(map[string][]Lane)}
	for _, e := range edges {
		g.addCity(e.A)
		g.addCity(e.B)
		g.adj[e.A] = append(g.adj[e.A], Lane{To: e.B, Distance: e.Distance})
		g.adj[e.B] = append(g.adj[e.B], Lane{To: e.A, Distance: e.Distance})
	}
	return g
}

func (g *Graph) addCity(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = nil
		g.order = append(g.order, id)
	}
}

// AddIsolated registers a city with no lanes so it is known to the graph.
func (g *Graph) AddIsolated(id string) {
	g.addCity(id)
}

// Has reports whether the city appears in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// Cities returns all known cities in first-seen order.
func (g *Graph) Cities() []string {
	return append([]string(nil), g.order...)
}

// Neighbors returns the direct neighbors of a city, sorted by id.
func (g *Graph) Neighbors(id string) []string {
	lanes := g.adj[id]
	out := make([]string, 0, len(lanes))
	seen := make(map[string]bool, len(lanes))
	for _, l := range lanes {
		if !seen[l.To] {
			seen[l.To] = true
			out = append(out, l.To)
		}
	}
	sort.Strings(out)
	return out
}

// EdgeDistance returns the length of the shortest direct lane between a and b.
func (g *Graph) EdgeDistance(a, b string) (float64, bool) {
	best, found := 0.0, false
	for _, l := range g.adj[a] {
		if l.To == b && (!found || l.Distance < best) {
			best, found = l.Distance, true
		}
	}
	return best, found
}

// Reachable returns every city connected to id, excluding id itself,
// sorted by id.
func (g *Graph) Reachable(id string) []string {
	if !g.Has(id) {
		return nil
	}
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, l := range g.adj[cur] {
			if seen[l.To] {
				continue
			}
			seen[l.To] = true
			out = append(out, l.To)
			queue = append(queue, l.To)
		}
	}
	sort.Strings(out)
	return out
}

// Path is an ordered list of cities and its total distance in days.
type Path struct {
	Cities   []string `json:"cities"`
	Distance float64  `json:"distance"`
}

// Segments returns the number of lanes the path crosses.
func (p Path) Segments() int {
	if len(p.Cities) == 0 {
		return 0
	}
	return len(p.Cities) - 1
}

func (p Path) String() string {
	return fmt.Sprintf("%v (%.1f days)", p.Cities, p.Distance)
}

// ShortestPath runs Dijkstra from `from` to `to`. The frontier is a plain
// slice rescanned for its minimum each step; on equal distances the entry
// inserted first wins, so results are stable for a fixed graph.
// ok is false when either city is unknown or no path exists.
func (g *Graph) ShortestPath(from, to string) (Path, bool) {
	if !g.Has(from) || !g.Has(to) {
		return Path{}, false
	}
	if from == to {
		return Path{Cities: []string{from}}, true
	}

	dist := map[string]float64{from: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)
	frontier := []string{from}

	for len(frontier) > 0 {
		mi := 0
		for i := 1; i < len(frontier); i++ {
			if dist[frontier[i]] < dist[frontier[mi]] {
				mi = i
			}
		}
		cur := frontier[mi]
		frontier = append(frontier[:mi], frontier[mi+1:]...)
		if cur == to {
			break
		}
		done[cur] = true

		for _, l := range g.adj[cur] {
			if done[l.To] {
				continue
			}
			nd := dist[cur] + l.Distance
			old, seen := dist[l.To]
			if seen && nd >= old {
				continue
			}
			dist[l.To] = nd
			prev[l.To] = cur
			if !seen {
				frontier = append(frontier, l.To)
			}
		}
	}

	total, ok := dist[to]
	if !ok {
		return Path{}, false
	}

	var rev []string
	for c := to; c != from; c = prev[c] {
		rev = append(rev, c)
	}
	rev = append(rev, from)
	cities := make([]string, len(rev))
	for i, c := range rev {
		cities[len(rev)-1-i] = c
	}
	return Path{Cities: cities, Distance: total}, true
}
