package auditlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS collection_events (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    id               TEXT NOT NULL,
    timestamp        TEXT NOT NULL,
    kind             TEXT NOT NULL,
    collection_count INTEGER NOT NULL,
    confidence       REAL,
    lat              REAL,
    lon              REAL,
    payload_kg       REAL,
    clearance_cm     REAL,
    note             TEXT NOT NULL DEFAULT '',
    snapshot         TEXT
);
`

// SQLiteStore persists events in an embedded SQLite database. The seq
// column preserves insertion order; the snapshot column keeps the full
// world state as JSON for offline reconstruction of decisions.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the audit database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", path, err)
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(e Event) error {
	var confidence, lat, lon, payload, clearance any
	var snapshot any
	if e.Snapshot != nil {
		confidence = e.Snapshot.Detection.Confidence
		payload = e.Snapshot.PayloadMassKG
		if e.Snapshot.Position != nil {
			lat = e.Snapshot.Position.Lat
			lon = e.Snapshot.Position.Lon
		}
		if e.Snapshot.ClearanceCM != nil {
			clearance = *e.Snapshot.ClearanceCM
		}
		raw, err := json.Marshal(e.Snapshot)
		if err != nil {
			return fmt.Errorf("auditlog: marshal snapshot: %w", err)
		}
		snapshot = string(raw)
	}

	_, err := s.db.Exec(`
		INSERT INTO collection_events
		(id, timestamp, kind, collection_count, confidence, lat, lon,
		 payload_kg, clearance_cm, note, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(),
		e.Timestamp.Format(time.RFC3339Nano),
		string(e.Kind),
		e.CollectionCount,
		confidence,
		lat,
		lon,
		payload,
		clearance,
		e.Note,
		snapshot,
	)
	if err != nil {
		return fmt.Errorf("auditlog: append: %w", err)
	}
	return nil
}

// Summary implements Store.
func (s *SQLiteStore) Summary() (Summary, error) {
	var sum Summary
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(CASE WHEN kind = ? THEN confidence END), 0)
		FROM collection_events`,
		string(KindDetection), string(KindDetection))
	if err := row.Scan(&sum.Count, &sum.Detections, &sum.AvgConfidence); err != nil {
		return Summary{}, fmt.Errorf("auditlog: summary: %w", err)
	}
	return sum, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
