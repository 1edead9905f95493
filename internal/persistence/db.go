// Package persistence stores game state in SQLite and in compressed
// snapshot files.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/portsim/internal/agents"
	"github.com/talgya/portsim/internal/economy"
	"github.com/talgya/portsim/internal/engine"
	"github.com/talgya/portsim/internal/fleet"
	"github.com/talgya/portsim/internal/weather"
)

// DB wraps a SQLite connection for game state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cities (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		population INTEGER NOT NULL,
		visited INTEGER NOT NULL,
		market_json TEXT NOT NULL,
		buildings_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ships (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		position INTEGER NOT NULL,
		status TEXT NOT NULL,
		ship_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		gold REAL NOT NULL,
		aggression REAL NOT NULL,
		timer INTEGER NOT NULL,
		target_city TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL UNIQUE,
		day INTEGER NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_day ON events(day);
	CREATE INDEX IF NOT EXISTS idx_ships_owner ON ships(owner);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type cityRow struct {
	ID            string `db:"id"`
	Position      int    `db:"position"`
	Population    int    `db:"population"`
	Visited       bool   `db:"visited"`
	MarketJSON    string `db:"market_json"`
	BuildingsJSON string `db:"buildings_json"`
}

type shipRow struct {
	ID       string `db:"id"`
	Owner    string `db:"owner"`
	Position int    `db:"position"`
	Status   string `db:"status"`
	ShipJSON string `db:"ship_json"`
}

type agentRow struct {
	ID         string  `db:"id"`
	Name       string  `db:"name"`
	Gold       float64 `db:"gold"`
	Aggression float64 `db:"aggression"`
	Timer      int     `db:"timer"`
	TargetCity string  `db:"target_city"`
}

// saveCities writes every city (full replace).
func saveCities(tx *sqlx.Tx, st *engine.State) error {
	if _, err := tx.Exec("DELETE FROM cities"); err != nil {
		return err
	}
	stmt, err := tx.PrepareNamed(`INSERT INTO cities
		(id, position, population, visited, market_json, buildings_json)
		VALUES (:id, :position, :population, :visited, :market_json, :buildings_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range st.CityOrder {
		cs := st.Cities[id]
		if cs == nil {
			continue
		}
		marketJSON, err := json.Marshal(cs.Market)
		if err != nil {
			return fmt.Errorf("encode market %s: %w", id, err)
		}
		buildingsJSON, _ := json.Marshal(cs.Buildings)
		row := cityRow{
			ID:            id,
			Position:      i,
			Population:    cs.Population,
			Visited:       cs.Visited,
			MarketJSON:    string(marketJSON),
			BuildingsJSON: string(buildingsJSON),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert city %s: %w", id, err)
		}
	}
	return nil
}

// saveFleets writes every ship and agent (full replace). Ships keep their
// order within their owner's fleet.
func saveFleets(tx *sqlx.Tx, st *engine.State) error {
	for _, table := range []string{"ships", "agents"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	insertShip := func(pos int, s *fleet.Ship) error {
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode ship %s: %w", s.ID, err)
		}
		_, err = tx.NamedExec(`INSERT INTO ships (id, owner, position, status, ship_json)
			VALUES (:id, :owner, :position, :status, :ship_json)`,
			shipRow{ID: s.ID, Owner: s.Owner, Position: pos, Status: string(s.Status), ShipJSON: string(raw)})
		if err != nil {
			return fmt.Errorf("insert ship %s: %w", s.ID, err)
		}
		return nil
	}

	for i, s := range st.Player.Ships {
		if err := insertShip(i, s); err != nil {
			return err
		}
	}
	for _, a := range st.Agents {
		_, err := tx.NamedExec(`INSERT INTO agents (id, name, gold, aggression, timer, target_city)
			VALUES (:id, :name, :gold, :aggression, :timer, :target_city)`,
			agentRow{ID: a.ID, Name: a.Name, Gold: a.Gold, Aggression: a.Aggression, Timer: a.Timer, TargetCity: a.TargetCity})
		if err != nil {
			return fmt.Errorf("insert agent %s: %w", a.ID, err)
		}
		for i, s := range a.Ships {
			if err := insertShip(i, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveEvents appends events to the database. Events already stored, by
// sequence number, are skipped.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO events (seq, day, date, description, category) VALUES (?, ?, ?, ?, ?)",
			e.Seq, e.Day, e.Date, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	return saveMeta(db.conn, key, value)
}

func saveMeta(ex sqlx.Execer, key, value string) error {
	_, err := ex.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a saved game exists.
func (db *DB) HasState() (bool, error) {
	_, err := db.GetMeta("session_id")
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// header is the part of State stored as metadata.
type header struct {
	SessionID      string                   `json:"session_id"`
	Seed           int64                    `json:"seed"`
	Date           engine.Date              `json:"date"`
	Day            uint64                   `json:"day"`
	MonthProcessed bool                     `json:"month_processed"`
	PlayerGold     float64                  `json:"player_gold"`
	NextShipID     int                      `json:"next_ship_id"`
	Boosts         []engine.ProductionBoost `json:"boosts,omitempty"`
	Wind           weather.Wind             `json:"wind"`
	EventSeq       uint64                   `json:"event_seq"`
}

// SaveState performs a full save of the game in one transaction.
func (db *DB) SaveState(st *engine.State) error {
	slog.Info("saving game state", "session", st.SessionID, "day", st.Day, "cities", len(st.Cities), "agents", len(st.Agents))

	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := saveCities(tx, st); err != nil {
		return fmt.Errorf("save cities: %w", err)
	}
	if err := saveFleets(tx, st); err != nil {
		return fmt.Errorf("save fleets: %w", err)
	}

	h, err := json.Marshal(header{
		SessionID:      st.SessionID,
		Seed:           st.Seed,
		Date:           st.Date,
		Day:            st.Day,
		MonthProcessed: st.MonthProcessed,
		PlayerGold:     st.Player.Gold,
		NextShipID:     st.NextShipID,
		Boosts:         st.Boosts,
		Wind:           st.Wind,
		EventSeq:       st.EventSeq,
	})
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for k, v := range map[string]string{
		"session_id": st.SessionID,
		"last_day":   strconv.FormatUint(st.Day, 10),
		"header":     string(h),
	} {
		if err := saveMeta(tx, k, v); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Info("game state saved")
	return nil
}

// LoadState restores the saved game.
func (db *DB) LoadState() (*engine.State, error) {
	raw, err := db.GetMeta("header")
	if err != nil {
		return nil, fmt.Errorf("load header: %w", err)
	}
	var h header
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	st := &engine.State{
		SessionID:      h.SessionID,
		Seed:           h.Seed,
		Date:           h.Date,
		Day:            h.Day,
		MonthProcessed: h.MonthProcessed,
		Player:         engine.Player{Gold: h.PlayerGold},
		NextShipID:     h.NextShipID,
		Boosts:         h.Boosts,
		Wind:           h.Wind,
		EventSeq:       h.EventSeq,
		Cities:         make(map[string]*engine.CityState),
	}

	var cities []cityRow
	if err := db.conn.Select(&cities, "SELECT * FROM cities ORDER BY position"); err != nil {
		return nil, fmt.Errorf("load cities: %w", err)
	}
	for _, r := range cities {
		cs := &engine.CityState{ID: r.ID, Population: r.Population, Visited: r.Visited}
		cs.Market = &economy.Market{}
		if err := json.Unmarshal([]byte(r.MarketJSON), cs.Market); err != nil {
			return nil, fmt.Errorf("decode market %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.BuildingsJSON), &cs.Buildings); err != nil {
			return nil, fmt.Errorf("decode buildings %s: %w", r.ID, err)
		}
		st.CityOrder = append(st.CityOrder, r.ID)
		st.Cities[r.ID] = cs
	}

	var ships []shipRow
	if err := db.conn.Select(&ships, "SELECT * FROM ships ORDER BY owner, position"); err != nil {
		return nil, fmt.Errorf("load ships: %w", err)
	}
	byOwner := make(map[string][]*fleet.Ship)
	for _, r := range ships {
		s := &fleet.Ship{}
		if err := json.Unmarshal([]byte(r.ShipJSON), s); err != nil {
			return nil, fmt.Errorf("decode ship %s: %w", r.ID, err)
		}
		s.Normalize()
		byOwner[r.Owner] = append(byOwner[r.Owner], s)
	}
	st.Player.Ships = byOwner[fleet.OwnerPlayer]

	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	for _, r := range rows {
		st.Agents = append(st.Agents, &agents.TraderAgent{
			ID:         r.ID,
			Name:       r.Name,
			Gold:       r.Gold,
			Aggression: r.Aggression,
			Timer:      r.Timer,
			TargetCity: r.TargetCity,
			Ships:      byOwner[r.ID],
		})
	}

	slog.Info("game state loaded", "session", st.SessionID, "day", st.Day, "date", st.Date.String(),
		"cities", len(st.Cities), "ships", len(ships), "agents", len(st.Agents))
	return st, nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT seq, day, date, description, category FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	return events, err
}
