package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/portsim/internal/engine"
)

// SnapshotFormat identifies the snapshot layout.
const SnapshotFormat = "portsim.snapshot.v1"

// SnapshotHeader is the first line of a snapshot, readable without
// decoding the body.
type SnapshotHeader struct {
	Format     string    `json:"format"`
	SnapshotID string    `json:"snapshot_id"`
	SessionID  string    `json:"session_id"`
	Day        uint64    `json:"day"`
	Date       string    `json:"date"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is a complete saved game.
type Snapshot struct {
	Header SnapshotHeader `json:"header"`
	State  *engine.State  `json:"state"`
}

// WriteSnapshot writes st as a zstd-compressed file: a JSON header line
// followed by the JSON-encoded state.
func WriteSnapshot(path string, st *engine.State) (SnapshotHeader, error) {
	h := SnapshotHeader{
		Format:     SnapshotFormat,
		SnapshotID: uuid.NewString(),
		SessionID:  st.SessionID,
		Day:        st.Day,
		Date:       st.Date.String(),
		CreatedAt:  time.Now().UTC(),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return h, err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return h, err
	}
	defer os.Remove(tmp)

	if err := encodeSnapshot(f, h, st); err != nil {
		f.Close()
		return h, err
	}
	if err := f.Close(); err != nil {
		return h, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return h, fmt.Errorf("install snapshot: %w", err)
	}
	return h, nil
}

func encodeSnapshot(f *os.File, h SnapshotHeader, st *engine.State) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(h)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(st); err != nil {
		enc.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &snap.Header); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if snap.Header.Format != SnapshotFormat {
		return snap, fmt.Errorf("unsupported snapshot format %q", snap.Header.Format)
	}

	snap.State = &engine.State{}
	if err := json.NewDecoder(br).Decode(snap.State); err != nil {
		return snap, fmt.Errorf("decode state: %w", err)
	}
	return snap, nil
}
