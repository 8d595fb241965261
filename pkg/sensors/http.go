package sensors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/EngrAlegre/ALGAE-ML/internal/httpc"
	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// HTTPSource reads every physical sensor through the on-board sensor
// daemon's HTTP API. The daemon owns the GPS serial port, the ultrasonic
// trigger/echo pins, the HX711 load cell, the float switch and the IMU;
// this type only asks for readings. A reading the daemon marks invalid
// is returned as ErrNoReading so the Manager degrades that field.
type HTTPSource struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPSource creates a source talking to the daemon at baseURL,
// e.g. http://127.0.0.1:9091.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Client,
	}
}

// The HTTPSource backs every fusion input.
var (
	_ PositionSource = (*HTTPSource)(nil)
	_ RangeSource    = (*HTTPSource)(nil)
	_ ScaleSource    = (*HTTPSource)(nil)
	_ SwitchSource   = (*HTTPSource)(nil)
	_ AttitudeSource = (*HTTPSource)(nil)
)

// ReadPosition implements PositionSource.
func (s *HTTPSource) ReadPosition() (world.Position, error) {
	var resp struct {
		HasFix bool    `json:"has_fix"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := s.get("/api/gps", &resp); err != nil {
		return world.Position{}, err
	}
	if !resp.HasFix {
		return world.Position{}, ErrNoReading
	}
	return world.Position{Lat: resp.Lat, Lon: resp.Lon}, nil
}

// ReadRangeCM implements RangeSource.
func (s *HTTPSource) ReadRangeCM() (float64, error) {
	var resp struct {
		Valid      bool    `json:"valid"`
		DistanceCM float64 `json:"distance_cm"`
	}
	if err := s.get("/api/range", &resp); err != nil {
		return 0, err
	}
	if !resp.Valid {
		return 0, ErrNoReading
	}
	return resp.DistanceCM, nil
}

// ReadMassKG implements ScaleSource.
func (s *HTTPSource) ReadMassKG() (float64, error) {
	var resp struct {
		Valid  bool    `json:"valid"`
		MassKG float64 `json:"mass_kg"`
	}
	if err := s.get("/api/scale", &resp); err != nil {
		return 0, err
	}
	if !resp.Valid {
		return 0, ErrNoReading
	}
	return resp.MassKG, nil
}

// Tare implements ScaleSource.
func (s *HTTPSource) Tare() error {
	resp, err := s.client.Post(s.BaseURL+"/api/scale/tare", "application/json", nil)
	if err != nil {
		return fmt.Errorf("sensors: tare: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sensors: tare: status %d", resp.StatusCode)
	}
	return nil
}

// ReadBinFull implements SwitchSource.
func (s *HTTPSource) ReadBinFull() (bool, error) {
	var resp struct {
		BinFull bool `json:"bin_full"`
	}
	if err := s.get("/api/switch", &resp); err != nil {
		return false, err
	}
	return resp.BinFull, nil
}

// ReadOrientation implements AttitudeSource.
func (s *HTTPSource) ReadOrientation() (world.Orientation, error) {
	var resp struct {
		Valid bool    `json:"valid"`
		Pitch float64 `json:"pitch"`
		Roll  float64 `json:"roll"`
	}
	if err := s.get("/api/imu", &resp); err != nil {
		return world.Orientation{}, err
	}
	if !resp.Valid {
		return world.Orientation{}, ErrNoReading
	}
	return world.Orientation{Pitch: resp.Pitch, Roll: resp.Roll}, nil
}

func (s *HTTPSource) get(path string, out any) error {
	resp, err := s.client.Get(s.BaseURL + path)
	if err != nil {
		return fmt.Errorf("sensors: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sensors: %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("sensors: %s: read body: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("sensors: %s: decode: %w", path, err)
	}
	return nil
}
