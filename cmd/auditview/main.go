// Command auditview inspects the robot's audit database offline.
//
//	auditview --db amlac_audit.db --last 50
//	auditview --db amlac_audit.db --kind detection --json
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/EngrAlegre/ALGAE-ML/pkg/auditlog"
)

type row struct {
	Seq             int64    `json:"seq"`
	ID              string   `json:"id"`
	Timestamp       string   `json:"timestamp"`
	Kind            string   `json:"kind"`
	CollectionCount int64    `json:"collection_count"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Lat             *float64 `json:"lat,omitempty"`
	Lon             *float64 `json:"lon,omitempty"`
	PayloadKG       *float64 `json:"payload_kg,omitempty"`
	ClearanceCM     *float64 `json:"clearance_cm,omitempty"`
	Note            string   `json:"note,omitempty"`
}

func main() {
	dbPath := flag.String("db", "amlac_audit.db", "path to the audit database")
	last := flag.Int("last", 20, "show N most recent events")
	kind := flag.String("kind", "", "filter by event kind (detection, bin_full, obstacle, error, lifecycle)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of a table")
	flag.Parse()

	if err := run(*dbPath, *last, *kind, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath string, last int, kind string, jsonOut bool) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	rows, err := queryEvents(db, last, kind)
	if err != nil {
		return err
	}

	if jsonOut {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printTable(rows)
	return printTotals(db)
}

func queryEvents(db *sql.DB, last int, kind string) ([]row, error) {
	q := `
		SELECT seq, id, timestamp, kind, collection_count,
		       confidence, lat, lon, payload_kg, clearance_cm, note
		FROM collection_events`
	args := []any{}
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, last)

	res, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer res.Close()

	var out []row
	for res.Next() {
		var r row
		if err := res.Scan(&r.Seq, &r.ID, &r.Timestamp, &r.Kind, &r.CollectionCount,
			&r.Confidence, &r.Lat, &r.Lon, &r.PayloadKG, &r.ClearanceCM, &r.Note); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, r)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	// Query returns newest first; reverse for chronological reading.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func printTable(rows []row) {
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no events found")
		return
	}

	fmt.Printf("%-5s  %-10s  %-25s  %5s  %6s  %8s  %s\n",
		"Seq", "Kind", "Time", "Count", "Conf", "Payload", "Note")
	for _, r := range rows {
		fmt.Printf("%-5d  %-10s  %-25s  %5d  %6s  %8s  %s\n",
			r.Seq, r.Kind, r.Timestamp, r.CollectionCount,
			fmtFloat(r.Confidence, "%.2f"),
			fmtFloat(r.PayloadKG, "%.2fkg"),
			r.Note)
	}
}

func printTotals(db *sql.DB) error {
	store := &summaryReader{db: db}
	sum, err := store.Summary()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d events, %d detections, avg confidence %.2f\n",
		sum.Count, sum.Detections, sum.AvgConfidence)
	return nil
}

// summaryReader runs the same aggregate the robot logs at shutdown.
type summaryReader struct {
	db *sql.DB
}

func (s *summaryReader) Summary() (auditlog.Summary, error) {
	var sum auditlog.Summary
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN kind = 'detection' THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(CASE WHEN kind = 'detection' THEN confidence END), 0)
		FROM collection_events`)
	if err := row.Scan(&sum.Count, &sum.Detections, &sum.AvgConfidence); err != nil {
		return auditlog.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return sum, nil
}

func fmtFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
