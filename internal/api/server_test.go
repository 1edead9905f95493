package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/portsim/internal/catalog"
	"github.com/talgya/portsim/internal/engine"
	"github.com/talgya/portsim/internal/entropy"
	"github.com/talgya/portsim/internal/persistence"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, *engine.Engine, *httptest.Server) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	st, err := engine.NewGame(cat, 99)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	sim := engine.NewSimulation(cat, st, entropy.New(99))
	reg := prometheus.NewRegistry()
	sim.Metrics = engine.NewMetrics(reg)
	eng := engine.NewEngine(sim, time.Second)

	s := &Server{
		Eng:      eng,
		Hub:      NewHub(),
		Gatherer: reg,
		AdminKey: testKey,
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, eng, ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func post(t *testing.T, url, token, body string, into any) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		json.NewDecoder(resp.Body).Decode(into)
	}
	return resp.StatusCode
}

func TestReadEndpoints(t *testing.T) {
	_, eng, ts := newTestServer(t)
	eng.Advance(3 * time.Second)

	var status map[string]any
	if code := getJSON(t, ts.URL+"/api/v1/status", &status); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if status["day"].(float64) != 3 || status["speed"].(float64) != 1 {
		t.Fatalf("status = %v", status)
	}

	var cities []citySummary
	getJSON(t, ts.URL+"/api/v1/cities", &cities)
	if len(cities) != 10 || cities[0].ID != "lisbon" || !cities[0].Shipyard {
		t.Fatalf("cities = %+v", cities)
	}

	var detail struct {
		ID     string           `json:"id"`
		Market []map[string]any `json:"market"`
		Docked []string         `json:"docked_ships"`
	}
	if code := getJSON(t, ts.URL+"/api/v1/city/lisbon", &detail); code != http.StatusOK {
		t.Fatalf("city code %d", code)
	}
	if detail.ID != "lisbon" || len(detail.Market) != 8 || len(detail.Docked) == 0 {
		t.Fatalf("detail = %+v", detail)
	}
	if code := getJSON(t, ts.URL+"/api/v1/city/atlantis", nil); code != http.StatusNotFound {
		t.Fatalf("unknown city code %d", code)
	}

	var route map[string]any
	getJSON(t, ts.URL+"/api/v1/route?from=lisbon&to=porto", &route)
	if route["ok"] != true || route["distance"].(float64) != 2 {
		t.Fatalf("route = %v", route)
	}
	if code := getJSON(t, ts.URL+"/api/v1/route?from=lisbon&to=atlantis", nil); code != http.StatusNotFound {
		t.Fatalf("no-path code %d", code)
	}

	var agents []map[string]any
	getJSON(t, ts.URL+"/api/v1/agents", &agents)
	if len(agents) != 4 {
		t.Fatalf("agents = %d", len(agents))
	}
}

func TestActionsRequireToken(t *testing.T) {
	_, _, ts := newTestServer(t)
	body := `{"action":"buy","ship":"ship-001","good":"fish","quantity":5}`
	if code := post(t, ts.URL+"/api/v1/action", "", body, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token code %d", code)
	}
	if code := post(t, ts.URL+"/api/v1/action", "wrong", body, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token code %d", code)
	}

	var resp actionResponse
	if code := post(t, ts.URL+"/api/v1/action", testKey, body, &resp); code != http.StatusOK {
		t.Fatalf("buy code %d: %+v", code, resp)
	}
	if !resp.OK || resp.Executed != 5 || resp.Ship == nil || resp.Ship.Held("fish") != 5 {
		t.Fatalf("buy = %+v", resp)
	}
	if resp.Gold != 5000-resp.Total {
		t.Fatalf("gold = %v total = %v", resp.Gold, resp.Total)
	}

	resp = actionResponse{}
	code := post(t, ts.URL+"/api/v1/action", testKey, `{"action":"sail","ship":"ship-001","city":"lisbon"}`, &resp)
	if code != http.StatusUnprocessableEntity || resp.Reason != "already_there" {
		t.Fatalf("sail home = %d %+v", code, resp)
	}

	resp = actionResponse{}
	code = post(t, ts.URL+"/api/v1/action", testKey, `{"action":"sail","ship":"ship-001","city":"seville"}`, &resp)
	if code != http.StatusOK || len(resp.Path) != 2 {
		t.Fatalf("sail = %d %+v", code, resp)
	}

	if code := post(t, ts.URL+"/api/v1/action", testKey, `{"action":"dance"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown action code %d", code)
	}
}

func TestControlDisabledWithoutKey(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.AdminKey = ""
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	if code := post(t, ts.URL+"/api/v1/speed", "", `{"speed":2}`, nil); code != http.StatusForbidden {
		t.Fatalf("code %d", code)
	}
}

func TestSpeedEndpoint(t *testing.T) {
	_, eng, ts := newTestServer(t)
	if code := post(t, ts.URL+"/api/v1/speed", testKey, `{"speed":3}`, nil); code != http.StatusBadRequest {
		t.Fatalf("speed 3 code %d", code)
	}
	var out map[string]int
	if code := post(t, ts.URL+"/api/v1/speed", testKey, `{"speed":8}`, &out); code != http.StatusOK || out["speed"] != 8 {
		t.Fatalf("speed 8 = %d %v", code, out)
	}
	if eng.Speed() != 8 {
		t.Fatalf("engine speed %d", eng.Speed())
	}
}

func TestInterventionAndEvents(t *testing.T) {
	_, _, ts := newTestServer(t)
	code := post(t, ts.URL+"/api/v1/intervention", testKey, `{"type":"provision","city":"porto","good":"grain","quantity":100}`, nil)
	if code != http.StatusOK {
		t.Fatalf("provision code %d", code)
	}
	if code := post(t, ts.URL+"/api/v1/intervention", testKey, `{"type":"provision","city":"atlantis","good":"grain","quantity":1}`, nil); code != http.StatusBadRequest {
		t.Fatalf("bad provision code %d", code)
	}

	var events []engine.Event
	getJSON(t, ts.URL+"/api/v1/events?category=admin", &events)
	if len(events) != 1 || !strings.Contains(events[0].Description, "Porto") {
		t.Fatalf("events = %+v", events)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	dir := t.TempDir()
	db, err := persistence.Open(filepath.Join(dir, "game.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s.DB = db
	s.SnapshotDir = filepath.Join(dir, "snapshots")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	var out map[string]any
	if code := post(t, ts.URL+"/api/v1/snapshot", testKey, `{}`, &out); code != http.StatusOK {
		t.Fatalf("snapshot code %d", code)
	}
	if ok, err := db.HasState(); !ok || err != nil {
		t.Fatalf("HasState = %v, %v", ok, err)
	}
	if _, err := persistence.ReadSnapshot(out["file"].(string)); err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
}

func TestSaveRunsWhileSimulationAdvances(t *testing.T) {
	s, eng, _ := newTestServer(t)
	db, err := persistence.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s.DB = db

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			eng.Advance(time.Second)
		}
	}()
	for i := 0; i < 5; i++ {
		if _, file, err := s.Save(false); err != nil || file != "" {
			t.Fatalf("Save = %q, %v", file, err)
		}
	}
	<-done

	day, _, err := s.Save(false)
	if err != nil || day != 20 {
		t.Fatalf("final save day %d, %v", day, err)
	}
	st, err := db.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.Day != 20 {
		t.Fatalf("loaded day %d", st.Day)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, eng, ts := newTestServer(t)
	eng.Advance(2 * time.Second)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "portsim_days_total 2") {
		t.Fatalf("metrics missing day counter:\n%s", buf.String())
	}
}

func TestStreamDeliversDayReports(t *testing.T) {
	s, eng, ts := newTestServer(t)
	s.Hub.Hello = func() any { return map[string]string{"hi": "there"} }
	eng.OnDay = func(r engine.DayReport) { s.Hub.Publish("day", r) }

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" {
		t.Fatalf("hello = %+v, %v", hello, err)
	}
	var status map[string]any
	getJSON(t, ts.URL+"/api/v1/status", &status)
	if status["stream_clients"].(float64) != 1 {
		t.Fatalf("stream clients = %v", status["stream_clients"])
	}

	eng.Advance(time.Second)
	var msg struct {
		Type    string           `json:"type"`
		Payload engine.DayReport `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != "day" || msg.Payload.Day != 1 {
		t.Fatalf("message = %+v", msg)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests refused")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("third request allowed")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other client refused")
	}
	// Two tokens per minute refill one every 30s.
	if got := rl.RetryAfter("1.2.3.4"); got < 29 || got > 31 {
		t.Fatalf("retry after = %d", got)
	}
	if got := rl.RetryAfter("5.6.7.8"); got != 0 {
		t.Fatalf("retry after with tokens left = %d", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("request refused after window")
	}
}

func TestClientIPHonoursOnlyTrustedProxies(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)
	defer rl.Close()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "9.9.9.9")
	if got := rl.clientIP(r); got != "10.0.0.1" {
		t.Fatalf("untrusted peer ip = %q", got)
	}

	if err := rl.TrustProxies("10.0.0.0/8", "192.168.1.7"); err != nil {
		t.Fatalf("TrustProxies: %v", err)
	}
	r.Header.Set("X-Forwarded-For", "6.6.6.6, 9.9.9.9, 192.168.1.7")
	if got := rl.clientIP(r); got != "9.9.9.9" {
		t.Fatalf("forwarded ip = %q", got)
	}
	r.Header.Del("X-Forwarded-For")
	if got := rl.clientIP(r); got != "10.0.0.1" {
		t.Fatalf("proxy without header = %q", got)
	}
	if err := rl.TrustProxies("not-an-ip"); err == nil {
		t.Fatal("expected error for a bad proxy entry")
	}
}

func TestForwardedHeaderCannotDodgeLimit(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()
	calls := 0
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) { calls++ })

	for i, fwd := range []string{"1.1.1.1", "2.2.2.2"} {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/action", nil)
		r.RemoteAddr = "203.0.113.5:4000"
		r.Header.Set("X-Forwarded-For", fwd)
		w := httptest.NewRecorder()
		h(w, r)
		if want := []int{http.StatusOK, http.StatusTooManyRequests}[i]; w.Code != want {
			t.Fatalf("request %d code %d, want %d", i, w.Code, want)
		}
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d", calls)
	}
}
