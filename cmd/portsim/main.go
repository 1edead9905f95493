// Command portsim runs the port trading simulation with its HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/talgya/portsim/internal/api"
	"github.com/talgya/portsim/internal/catalog"
	"github.com/talgya/portsim/internal/engine"
	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/persistence"
)

func main() {
	var (
		catalogPath = flag.String("catalog", "", "catalog yaml (empty = built-in default)")
		dbPath      = flag.String("db", "data/portsim.db", "sqlite database path")
		seed        = flag.Int64("seed", 0, "world seed for a new game (0 = random)")
		port        = flag.Int("port", 8080, "HTTP API port")
		speed       = flag.Int("speed", 1, "initial speed (0, 1, 2, 4, 8)")
		snapshotDir = flag.String("snapshot", "data/snapshots", "snapshot directory (empty = none)")
		dayMs       = flag.Int("day-ms", 0, "wall milliseconds per day at speed 1 (0 = catalog value)")
		saveEvery   = flag.Int("autosave-days", 30, "save every N simulated days (0 = only on shutdown)")
		proxies     = flag.String("trusted-proxies", "", "comma-separated proxy addresses or CIDRs whose X-Forwarded-For is honoured")
		debug       = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if !engine.ValidSpeed(*speed) {
		slog.Error("invalid speed", "speed", *speed, "allowed", engine.SpeedLevels)
		os.Exit(1)
	}

	// ── Catalog ───────────────────────────────────────────────────────
	var (
		cat *catalog.Catalog
		err error
	)
	if *catalogPath != "" {
		cat, err = catalog.Load(*catalogPath)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		slog.Error("failed to load catalog", "path", *catalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "cities", len(cat.Cities), "goods", len(cat.Goods), "routes", len(cat.Routes))

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	// ── Load or start a game ──────────────────────────────────────────
	saved, err := db.HasState()
	if err != nil {
		slog.Error("failed to inspect database", "error", err)
		os.Exit(1)
	}
	var st *engine.State
	if saved {
		slog.Info("found saved game, loading...")
		if st, err = db.LoadState(); err != nil {
			slog.Error("failed to load game", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("no saved game found, starting a new one...")
		if st, err = engine.NewGame(cat, *seed); err != nil {
			slog.Error("failed to create game", "error", err)
			os.Exit(1)
		}
	}

	// A loaded game keeps drawing from its own seed, offset by the days
	// already played so a resumed run does not replay old draws.
	sim := engine.NewSimulation(cat, st, entropy.New(st.Seed+int64(st.Day)))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sim.Metrics = engine.NewMetrics(reg)

	if !saved {
		if err := db.SaveState(st); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	dayDuration := time.Duration(cat.Tuning.DayDurationMs) * time.Millisecond
	if *dayMs > 0 {
		dayDuration = time.Duration(*dayMs) * time.Millisecond
	}
	eng := engine.NewEngine(sim, dayDuration)
	eng.SetSpeed(*speed)

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("PORTSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("PORTSIM_ADMIN_KEY not set, POST endpoints (actions, speed, snapshot) are disabled")
	}

	hub := api.NewHub()
	apiServer := &api.Server{
		Eng:           eng,
		DB:            db,
		Hub:           hub,
		Gatherer:      reg,
		Port:          *port,
		AdminKey:      adminKey,
		SnapshotDir:   *snapshotDir,
		ActionLimiter: api.NewRateLimiter(120, time.Minute),
	}
	defer apiServer.ActionLimiter.Close()
	if err := apiServer.ActionLimiter.TrustProxies(strings.Split(*proxies, ",")...); err != nil {
		slog.Error("invalid -trusted-proxies", "error", err)
		os.Exit(1)
	}
	save := func(snapshot bool) {
		if _, _, err := apiServer.Save(snapshot); err != nil {
			slog.Error("save failed", "error", err)
		}
	}
	hub.Hello = func() any {
		var hello map[string]any
		eng.View(func(sim *engine.Simulation) {
			hello = map[string]any{
				"session_id": sim.State.SessionID,
				"day":        sim.State.Day,
				"date":       sim.State.Date.String(),
			}
		})
		return hello
	}

	eng.OnDay = func(r engine.DayReport) {
		hub.Publish("day", r)
		if *saveEvery > 0 && r.Day%uint64(*saveEvery) == 0 {
			save(false)
		}
	}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nportsim: %d ports, %d rival traders, day %d (%s)\n",
		len(st.Cities), len(st.Agents), st.Day, st.Date.Long())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", *port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	// ── Shutdown ──────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	hub.Close()

	slog.Info("final save...")
	save(true)

	fmt.Println("Simulation stopped. Game saved.")
}
