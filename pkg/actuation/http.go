package actuation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EngrAlegre/ALGAE-ML/internal/httpc"
)

// HTTPActuator drives the motors through the on-board GPIO daemon's HTTP
// API. The daemon owns the L298N paddle driver and the TB6600 conveyor
// stepper; this type only issues commands and never touches pins.
type HTTPActuator struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPActuator creates an actuator talking to the daemon at baseURL,
// e.g. http://127.0.0.1:9090.
func NewHTTPActuator(baseURL string) *HTTPActuator {
	return &HTTPActuator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Client,
	}
}

// Ping checks daemon reachability. Used at startup to distinguish a fatal
// wiring problem from a transient command failure.
func (a *HTTPActuator) Ping() error {
	resp, err := a.client.Get(a.BaseURL + "/api/status")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Drive sets the paddle speeds.
func (a *HTTPActuator) Drive(left, right int) error {
	return a.post("drive", "/api/drive", map[string]any{
		"left":  Clamp(left),
		"right": Clamp(right),
	})
}

// StopDrive halts both paddles.
func (a *HTTPActuator) StopDrive() error {
	return a.post("stop_drive", "/api/drive", map[string]any{
		"left":  0,
		"right": 0,
	})
}

// RunCollector runs the conveyor for the given duration. The daemon call
// is asynchronous; this blocks locally for the duration so the caller
// observes the same bounded critical section as with direct control.
func (a *HTTPActuator) RunCollector(dir Direction, d time.Duration) error {
	err := a.post("run_collector", "/api/collector/run", map[string]any{
		"direction":   dir.String(),
		"duration_ms": d.Milliseconds(),
	})
	if err != nil {
		return err
	}
	time.Sleep(d)
	return nil
}

// StopCollector halts the conveyor.
func (a *HTTPActuator) StopCollector() error {
	return a.post("stop_collector", "/api/collector/stop", map[string]any{})
}

// StopAll halts everything immediately.
func (a *HTTPActuator) StopAll() error {
	return a.post("stop_all", "/api/stop_all", map[string]any{})
}

// post sends a command to the daemon API.
func (a *HTTPActuator) post(command, path string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return wrap(command, err)
	}

	resp, err := a.client.Post(a.BaseURL+path, "application/json", strings.NewReader(string(data)))
	if err != nil {
		return wrap(command, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wrap(command, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	}
	return nil
}
