// Package api provides the HTTP API for observing and playing a game.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (player actions and admin control).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/portsim/internal/economy"
	"github.com/talgya/portsim/internal/engine"
	"github.com/talgya/portsim/internal/fleet"
	"github.com/talgya/portsim/internal/persistence"
	"github.com/talgya/portsim/internal/world"
)

// Server serves the game over HTTP.
type Server struct {
	Eng         *engine.Engine
	DB          *persistence.DB
	Hub         *Hub
	Gatherer    prometheus.Gatherer // nil disables /metrics
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
	SnapshotDir string // where POST /api/v1/snapshot writes files; empty = db only

	ActionLimiter *RateLimiter // optional limit on player actions

	srv    *http.Server
	saveMu sync.Mutex
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/cities", s.handleCities)
	mux.HandleFunc("/api/v1/city/", s.handleCityDetail)
	mux.HandleFunc("/api/v1/ships", s.handleShips)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/route", s.handleRoute)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	if s.Hub != nil {
		mux.HandleFunc("/api/v1/stream", s.Hub.ServeWS)
	}
	if s.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	// Control endpoints (POST, require bearer token).
	action := s.adminOnly(s.handleAction)
	if s.ActionLimiter != nil {
		action = RateLimitMiddleware(s.ActionLimiter, action)
	}
	mux.HandleFunc("/api/v1/action", action)
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(s.handleIntervention))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "control endpoints disabled (no PORTSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	speed := s.Eng.Speed()
	clients := 0
	if s.Hub != nil {
		clients = s.Hub.Clients()
	}
	s.Eng.View(func(sim *engine.Simulation) {
		st := sim.State
		status = map[string]any{
			"session_id":     st.SessionID,
			"seed":           st.Seed,
			"day":            st.Day,
			"date":           st.Date.String(),
			"date_long":      st.Date.Long(),
			"speed":          speed,
			"wind":           st.Wind,
			"wind_desc":      st.Wind.Describe(),
			"player_gold":    st.Player.Gold,
			"player_ships":   len(st.Player.Ships),
			"cities":         len(st.Cities),
			"agents":         len(st.Agents),
			"stream_clients": clients,
		}
	})
	writeJSON(w, status)
}

type citySummary struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Population int               `json:"population"`
	Shipyard   bool              `json:"shipyard"`
	Visited    bool              `json:"visited"`
	Buildings  []engine.Building `json:"buildings,omitempty"`
	Neighbors  []string          `json:"neighbors"`
}

func summarizeCity(sim *engine.Simulation, cs *engine.CityState) citySummary {
	c, _ := sim.Catalog.City(cs.ID)
	return citySummary{
		ID:         cs.ID,
		Name:       c.Name,
		Population: cs.Population,
		Shipyard:   c.Shipyard,
		Visited:    cs.Visited,
		Buildings:  append([]engine.Building(nil), cs.Buildings...),
		Neighbors:  sim.Graph.Neighbors(cs.ID),
	}
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	var out []citySummary
	s.Eng.View(func(sim *engine.Simulation) {
		for _, id := range sim.State.CityOrder {
			if cs := sim.State.City(id); cs != nil {
				out = append(out, summarizeCity(sim, cs))
			}
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleCityDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/city/"), "/")
	if id == "" {
		http.Error(w, "city id required", http.StatusBadRequest)
		return
	}

	var (
		found  bool
		detail struct {
			citySummary
			Market []economy.MarketEntry `json:"market"`
			Docked []string              `json:"docked_ships"`
		}
	)
	s.Eng.View(func(sim *engine.Simulation) {
		cs := sim.State.City(id)
		if cs == nil {
			return
		}
		found = true
		detail.citySummary = summarizeCity(sim, cs)
		for _, g := range cs.Market.Goods {
			if e := cs.Market.Entry(g); e != nil {
				detail.Market = append(detail.Market, *e)
			}
		}
		for _, ship := range sim.State.AllShips() {
			if ship.Docked() && ship.Location == id {
				detail.Docked = append(detail.Docked, ship.ID)
			}
		}
	})
	if !found {
		http.Error(w, "city not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleShips(w http.ResponseWriter, r *http.Request) {
	var ships []fleet.Ship
	s.Eng.View(func(sim *engine.Simulation) {
		for _, ship := range sim.State.Player.Ships {
			ships = append(ships, copyShip(ship))
		}
	})
	writeJSON(w, ships)
}

func copyShip(s *fleet.Ship) fleet.Ship {
	c := *s
	c.Cargo = make(map[string]int, len(s.Cargo))
	for g, n := range s.Cargo {
		c.Cargo[g] = n
	}
	c.Route = append([]string(nil), s.Route...)
	return c
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	type agentSummary struct {
		ID         string       `json:"id"`
		Name       string       `json:"name"`
		Gold       float64      `json:"gold"`
		NetWorth   float64      `json:"net_worth"`
		TargetCity string       `json:"target_city,omitempty"`
		Ships      []fleet.Ship `json:"ships"`
	}

	var out []agentSummary
	s.Eng.View(func(sim *engine.Simulation) {
		for _, a := range sim.State.Agents {
			sum := agentSummary{ID: a.ID, Name: a.Name, Gold: a.Gold, TargetCity: a.TargetCity}
			sum.NetWorth = a.NetWorth(meanPrice(sim))
			for _, ship := range a.Ships {
				sum.Ships = append(sum.Ships, copyShip(ship))
			}
			out = append(out, sum)
		}
	})
	writeJSON(w, out)
}

// meanPrice values goods at their average price across all markets.
func meanPrice(sim *engine.Simulation) func(good string) float64 {
	return func(good string) float64 {
		sum, n := 0.0, 0
		for _, id := range sim.State.CityOrder {
			if e := sim.State.Market(id).Entry(good); e != nil {
				sum += e.Price
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		http.Error(w, "from and to required", http.StatusBadRequest)
		return
	}
	var (
		path world.Path
		ok   bool
	)
	s.Eng.View(func(sim *engine.Simulation) {
		path, ok = sim.Graph.ShortestPath(from, to)
	})
	if !ok {
		writeJSONStatus(w, http.StatusNotFound, map[string]any{"ok": false, "reason": economy.ReasonNoPath})
		return
	}
	writeJSON(w, map[string]any{"ok": true, "cities": path.Cities, "distance": path.Distance})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.Eng.View(func(sim *engine.Simulation) {
		for _, e := range sim.RecentEvents(0) {
			if category == "" || e.Category == category {
				events = append(events, e)
			}
		}
	})
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	writeJSON(w, events)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed int `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if !s.Eng.SetSpeed(req.Speed) {
			http.Error(w, fmt.Sprintf("speed must be one of %v", engine.SpeedLevels), http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, map[string]int{"speed": s.Eng.Speed()})
}

type actionRequest struct {
	Action   string `json:"action"` // buy, sell, sail, buy_ship, sell_ship, build
	Ship     string `json:"ship,omitempty"`
	Good     string `json:"good,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	City     string `json:"city,omitempty"`
	ShipType string `json:"ship_type,omitempty"`
	Building string `json:"building,omitempty"`
}

type actionResponse struct {
	economy.Outcome
	Path   []string    `json:"path,omitempty"`
	ShipID string      `json:"ship_id,omitempty"`
	Gold   float64     `json:"gold"`
	Ship   *fleet.Ship `json:"ship,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		resp  actionResponse
		known = true
	)
	s.Eng.Do(func(sim *engine.Simulation) {
		switch req.Action {
		case "buy":
			resp.Outcome = sim.Buy(req.Ship, req.Good, req.Quantity)
		case "sell":
			resp.Outcome = sim.Sell(req.Ship, req.Good, req.Quantity)
		case "sail":
			var path world.Path
			resp.Outcome, path = sim.Sail(req.Ship, req.City)
			resp.Path = path.Cities
		case "buy_ship":
			var ship *fleet.Ship
			resp.Outcome, ship = sim.BuyShip(req.City, req.ShipType)
			if ship != nil {
				resp.ShipID = ship.ID
			}
		case "sell_ship":
			resp.Outcome = sim.SellShip(req.Ship)
		case "build":
			resp.Outcome = sim.Build(req.City, req.Building)
		default:
			known = false
			return
		}
		resp.Gold = sim.State.Player.Gold
		id := req.Ship
		if resp.ShipID != "" {
			id = resp.ShipID
		}
		if ship := sim.State.PlayerShip(id); ship != nil {
			c := copyShip(ship)
			resp.Ship = &c
		}
	})
	if !known {
		http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}
	slog.Debug("player action", "action", req.Action, "ok", resp.OK, "reason", resp.Reason)

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSONStatus(w, status, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil && s.SnapshotDir == "" {
		http.Error(w, "persistence not available", http.StatusServiceUnavailable)
		return
	}

	day, file, err := s.Save(true)
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"day":     day,
		"file":    file,
		"message": "snapshot saved",
	})
}

// Save writes the game to the database and, when snapshot is set and a
// snapshot directory is configured, to a zstd file. The state is copied
// under the engine lock and written outside it. Saves are serialized so an
// older copy never lands after a newer one.
func (s *Server) Save(snapshot bool) (day uint64, file string, err error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	st, events, err := s.Eng.Capture()
	if err != nil {
		return 0, "", fmt.Errorf("capture state: %w", err)
	}
	if s.DB != nil {
		if err := s.DB.SaveState(st); err != nil {
			return st.Day, "", err
		}
		if err := s.DB.SaveEvents(events); err != nil {
			return st.Day, "", err
		}
	}
	if snapshot && s.SnapshotDir != "" {
		file = filepath.Join(s.SnapshotDir, fmt.Sprintf("%s-day%06d.zst", st.SessionID, st.Day))
		h, err := persistence.WriteSnapshot(file, st)
		if err != nil {
			return st.Day, "", err
		}
		slog.Info("snapshot written", "path", file, "snapshot", h.SnapshotID)
	}
	return st.Day, file, nil
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type         string  `json:"type"`
		City         string  `json:"city,omitempty"`
		Good         string  `json:"good,omitempty"`
		Quantity     int     `json:"quantity,omitempty"`
		Multiplier   float64 `json:"multiplier,omitempty"`
		DurationDays int     `json:"duration_days,omitempty"`
		Amount       float64 `json:"amount,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		desc string
		err  error
	)
	s.Eng.Do(func(sim *engine.Simulation) {
		switch req.Type {
		case "provision":
			desc, err = sim.ProvisionCity(req.City, req.Good, req.Quantity)
		case "cultivate":
			desc, err = sim.CultivateCity(req.City, req.Good, req.Multiplier, req.DurationDays)
		case "gold":
			desc, err = sim.GrantGold(req.Amount)
		default:
			err = fmt.Errorf("unknown intervention type %q", req.Type)
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"success": true, "details": desc})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
