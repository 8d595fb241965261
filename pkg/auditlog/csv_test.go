package auditlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

func TestCSVStore_WritesHeadersOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.csv")

	store, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	if err := store.Append(New(KindDetection, nil, 1, "")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store.Close()

	// Reopening an existing trail must not repeat the headers.
	store, err = OpenCSV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := store.Append(New(KindDetection, nil, 2, "")); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	store.Close()

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3 (headers + 2 events)", len(rows))
	}
	if rows[0][0] != "Timestamp" {
		t.Errorf("header row: got %v", rows[0])
	}
	if rows[1][0] == "Timestamp" || rows[2][0] == "Timestamp" {
		t.Error("headers repeated in data rows")
	}
}

func TestCSVStore_RowShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.csv")
	store, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	defer store.Close()

	snap := &world.State{
		Position:      &world.Position{Lat: 14.599500, Lon: 120.984200},
		ClearanceCM:   world.Float(85.5),
		PayloadMassKG: 1.25,
		Orientation:   &world.Orientation{Pitch: 1.5, Roll: -0.5},
		Detection:     world.Detection{IsTarget: true, Confidence: 0.8765},
	}
	if err := store.Append(New(KindDetection, snap, 3, "collection complete")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// A snapshotless event falls back to the placeholder columns.
	if err := store.Append(New(KindLifecycle, nil, 3, "robot stopped")); err != nil {
		t.Fatalf("Append lifecycle: %v", err)
	}

	rows := readCSV(t, path)
	full := rows[1]
	if full[1] != "detection" || full[2] != "0.8765" || full[3] != "14.599500" ||
		full[5] != "1.25" || full[6] != "3" || full[7] != "85.50" || full[8] != "P:1.5 R:-0.5" {
		t.Errorf("detection row: got %v", full)
	}

	bare := rows[2]
	if bare[1] != "lifecycle" || bare[3] != "N/A" || bare[7] != "N/A" || bare[9] != "robot stopped" {
		t.Errorf("lifecycle row: got %v", bare)
	}
}

func TestCSVStore_Summary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.csv")
	store, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	defer store.Close()

	det := &world.State{Detection: world.Detection{IsTarget: true, Confidence: 0.8}}
	store.Append(New(KindDetection, det, 1, ""))
	store.Append(New(KindDetection, det, 2, ""))
	store.Append(New(KindObstacle, nil, 2, ""))

	sum, err := store.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Count != 3 || sum.Detections != 2 {
		t.Errorf("got %+v", sum)
	}
	if sum.AvgConfidence < 0.79 || sum.AvgConfidence > 0.81 {
		t.Errorf("AvgConfidence: got %v, want ~0.8", sum.AvgConfidence)
	}
}

func TestCSVStore_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "deep", "trail.csv")
	store, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("trail file missing: %v", err)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}
