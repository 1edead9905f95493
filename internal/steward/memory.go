package steward

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 50

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	SessionID string  `json:"session_id"`
	Day       uint64  `json:"day"`
	Action    string  `json:"action"`
	Level     string  `json:"level"`
	Shortages int     `json:"shortages"`
	City      string  `json:"city,omitempty"`
	Good      string  `json:"good,omitempty"`
	Ratio     float64 `json:"supply_ratio,omitempty"`
	Rationale string  `json:"rationale,omitempty"`
}

// Memory is a ring of recent steward cycle records, kept on disk so
// cooldowns survive restarts.
type Memory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. Returns empty memory if it is
// missing or unreadable. An empty path keeps memory in process only.
func LoadMemory(path string) *Memory {
	mem := &Memory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "error", err)
		return &Memory{path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *Memory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal steward memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		slog.Error("failed to write steward memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *Memory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Forget drops records from other game sessions.
func (m *Memory) Forget(sessionID string) {
	kept := m.Records[:0]
	for _, r := range m.Records {
		if r.SessionID == sessionID {
			kept = append(kept, r)
		}
	}
	m.Records = kept
}

// LastActed returns the latest day an intervention targeted city.
func (m *Memory) LastActed(city string) (uint64, bool) {
	for i := len(m.Records) - 1; i >= 0; i-- {
		r := m.Records[i]
		if r.City == city && r.Action != "none" {
			return r.Day, true
		}
	}
	return 0, false
}
