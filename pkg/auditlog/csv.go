package auditlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// csvHeaders matches the column set of the original field logs so the
// team's existing spreadsheets keep working.
var csvHeaders = []string{
	"Timestamp",
	"Kind",
	"Confidence",
	"GPS_Lat",
	"GPS_Lon",
	"Weight_kg",
	"Collection_Count",
	"Distance_cm",
	"Orientation",
	"Note",
}

// CSVStore appends events to a CSV file, one row per event. Rows are
// flushed on every append so a power cut loses at most the in-flight row.
type CSVStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// OpenCSV opens (or creates) the CSV trail at path, writing headers for
// a new file.
func OpenCSV(path string) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("auditlog: create log dir: %w", err)
		}
	}

	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", path, err)
	}

	s := &CSVStore{path: path, file: f, w: csv.NewWriter(f)}
	if fresh {
		if err := s.w.Write(csvHeaders); err != nil {
			f.Close()
			return nil, fmt.Errorf("auditlog: write headers: %w", err)
		}
		s.w.Flush()
	}
	return s, nil
}

// Append implements Store.
func (s *CSVStore) Append(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		e.Timestamp.Format(time.DateTime),
		string(e.Kind),
		"0.0000",
		"N/A",
		"N/A",
		"0.00",
		strconv.FormatInt(e.CollectionCount, 10),
		"N/A",
		"",
		e.Note,
	}
	if snap := e.Snapshot; snap != nil {
		row[2] = fmt.Sprintf("%.4f", snap.Detection.Confidence)
		if snap.Position != nil {
			row[3] = fmt.Sprintf("%.6f", snap.Position.Lat)
			row[4] = fmt.Sprintf("%.6f", snap.Position.Lon)
		}
		row[5] = fmt.Sprintf("%.2f", snap.PayloadMassKG)
		if snap.ClearanceCM != nil {
			row[7] = fmt.Sprintf("%.2f", *snap.ClearanceCM)
		}
		if snap.Orientation != nil {
			row[8] = fmt.Sprintf("P:%.1f R:%.1f", snap.Orientation.Pitch, snap.Orientation.Roll)
		}
	}

	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("auditlog: append csv: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("auditlog: flush csv: %w", err)
	}
	return nil
}

// Summary implements Store by re-reading the trail.
func (s *CSVStore) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return Summary{}, fmt.Errorf("auditlog: open for summary: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return Summary{}, fmt.Errorf("auditlog: read csv: %w", err)
	}

	var sum Summary
	var confTotal float64
	for i, row := range rows {
		if i == 0 || len(row) < len(csvHeaders) {
			continue // headers or short row
		}
		sum.Count++
		if row[1] == string(KindDetection) {
			sum.Detections++
			if c, err := strconv.ParseFloat(row[2], 64); err == nil {
				confTotal += c
			}
		}
	}
	if sum.Detections > 0 {
		sum.AvgConfidence = confTotal / float64(sum.Detections)
	}
	return sum, nil
}

// Close implements Store.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}
