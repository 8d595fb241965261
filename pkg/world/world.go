// Package world defines the consolidated sensor snapshot consumed by the
// supervisory loop. A State is assembled once per cycle from whatever
// sensors happened to answer; optional fields are nil when the backing
// sensor was absent or faulted. The loop treats a State as immutable.
package world

import (
	"fmt"
	"time"
)

// MinClearanceCM is the shortest echo the rangefinder can resolve.
// Readings below this are discarded as noise before they reach a State.
const MinClearanceCM = 2.0

// Position is a GPS fix in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Position) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Orientation is the hull attitude derived from the IMU, in degrees.
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Detection is the classifier verdict for one frame.
// An absent classifier yields the zero value (no target, zero confidence).
type Detection struct {
	IsTarget   bool    `json:"is_target"`
	Confidence float64 `json:"confidence"` // [0,1]
}

// State is one cycle's fused snapshot. Pointer fields are nil when the
// reading was unavailable; value fields carry explicit defaults.
type State struct {
	// Position is nil when there is no satellite fix.
	Position *Position `json:"position,omitempty"`

	// ClearanceCM is nil on rangefinder fault or out-of-range echo.
	// When present it is within [MinClearanceCM, max range].
	ClearanceCM *float64 `json:"clearance_cm,omitempty"`

	// PayloadMassKG defaults to 0 when the scale is unreadable.
	// PayloadKnown distinguishes a real zero from a defaulted one so the
	// loop can flag the masked fault instead of silently reporting empty.
	PayloadMassKG float64 `json:"payload_mass_kg"`
	PayloadKnown  bool    `json:"payload_known"`

	// BinFull defaults to false when the float switch is unreadable.
	// Fail-open: an unreadable switch must not strand the robot.
	BinFull bool `json:"bin_full"`

	// Orientation is nil when the IMU is unavailable.
	Orientation *Orientation `json:"orientation,omitempty"`

	// Detection is always present; see Detection.
	Detection Detection `json:"detection"`

	// CapturedAt is when the snapshot was assembled.
	CapturedAt time.Time `json:"captured_at"`
}

// Clearance returns the clearance reading and whether it is present.
func (s *State) Clearance() (float64, bool) {
	if s.ClearanceCM == nil {
		return 0, false
	}
	return *s.ClearanceCM, true
}

// Sanitize degrades each field that violates its invariant to absent and
// returns the violations, one per bad field. A bad confidence never
// discards a good clearance reading and vice versa, so a malformed
// sensor cannot mask a hazard reported by a healthy one. maxRangeCM
// bounds the clearance field; pass 0 to skip the upper bound.
func (s *State) Sanitize(maxRangeCM float64) []error {
	var violations []error
	if c := s.Detection.Confidence; c < 0 || c > 1 {
		violations = append(violations, fmt.Errorf("world: confidence %v outside [0,1]", c))
		s.Detection = Detection{}
	}
	if s.ClearanceCM != nil {
		switch {
		case *s.ClearanceCM < MinClearanceCM:
			violations = append(violations, fmt.Errorf("world: clearance %.2fcm below minimum %.0fcm", *s.ClearanceCM, MinClearanceCM))
			s.ClearanceCM = nil
		case maxRangeCM > 0 && *s.ClearanceCM > maxRangeCM:
			violations = append(violations, fmt.Errorf("world: clearance %.2fcm beyond max range %.0fcm", *s.ClearanceCM, maxRangeCM))
			s.ClearanceCM = nil
		}
	}
	return violations
}

// Validate reports the first invariant violation in the snapshot, if any,
// without modifying it. Bounds as for Sanitize.
func (s *State) Validate(maxRangeCM float64) error {
	cp := *s
	if violations := cp.Sanitize(maxRangeCM); len(violations) > 0 {
		return violations[0]
	}
	return nil
}

// Float returns a pointer to v. Convenience for building snapshots.
func Float(v float64) *float64 { return &v }
