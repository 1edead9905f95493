// Command steward runs the harbor steward against a portsim server.
// It observes city markets, relieves the worst shortage by fixed rules,
// and acts via the admin intervention API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/portsim/internal/steward"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("PORTSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("PORTSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("STEWARD_INTERVAL", 60)
	memoryPath := envOrDefault("STEWARD_MEMORY", "data/steward_memory.json")

	if adminKey == "" {
		slog.Error("PORTSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second
	rules := steward.DefaultRules()
	if days := envIntOrDefault("STEWARD_COOLDOWN_DAYS", 0); days > 0 {
		rules.CooldownDays = uint64(days)
	}

	slog.Info("harbor steward starting",
		"api_url", apiURL,
		"interval", interval,
		"cooldown_days", rules.CooldownDays,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observer := steward.NewObserver(apiURL)
	actor := steward.NewActor(apiURL, adminKey)
	mem := steward.LoadMemory(memoryPath)

	if !waitForAPI(ctx, observer) {
		os.Exit(1)
	}

	runCycle := func() {
		if _, err := steward.RunCycle(ctx, observer, actor, mem, rules); err != nil {
			slog.Error("steward cycle failed", "error", err)
		}
	}
	runCycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCycle()
		case <-ctx.Done():
			slog.Info("steward stopped")
			return
		}
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI probes the status endpoint, doubling the pause between tries
// up to 30s. It gives up after 5 minutes or when ctx ends.
func waitForAPI(ctx context.Context, o *steward.Observer) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pause := 2 * time.Second
	for {
		var st steward.Status
		err := o.Fetch(ctx, "/api/v1/status", &st)
		if err == nil {
			slog.Info("portsim API is ready", "session", st.SessionID, "day", st.Day)
			return true
		}
		slog.Info("portsim not ready", "error", err, "retry_in", pause)
		select {
		case <-ctx.Done():
			slog.Error("gave up waiting for portsim API")
			return false
		case <-time.After(pause):
		}
		pause = min(pause*2, 30*time.Second)
	}
}
