// Package sensors fuses the robot's physical sensors into one world.State
// per cycle. Each device sits behind a small Source interface; a Manager
// holds whichever sources exist and degrades the corresponding snapshot
// field when a source is missing or faults. A partial snapshot is normal
// operation, never an error.
package sensors

import (
	"time"

	"github.com/EngrAlegre/ALGAE-ML/internal/log"
	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// PositionSource reads the GPS receiver.
type PositionSource interface {
	// ReadPosition returns the current fix, or an error when there is
	// no valid fix within the receiver's timeout.
	ReadPosition() (world.Position, error)
}

// RangeSource reads the ultrasonic rangefinder.
type RangeSource interface {
	// ReadRangeCM returns the distance to the nearest obstacle in cm.
	ReadRangeCM() (float64, error)
}

// ScaleSource reads the payload load cell.
type ScaleSource interface {
	// ReadMassKG returns the current payload mass in kilograms.
	ReadMassKG() (float64, error)

	// Tare zeroes the scale.
	Tare() error
}

// SwitchSource reads the bin-full float switch.
type SwitchSource interface {
	// ReadBinFull reports whether the float switch is raised.
	ReadBinFull() (bool, error)
}

// AttitudeSource reads the IMU-derived hull attitude.
type AttitudeSource interface {
	// ReadOrientation returns pitch and roll in degrees.
	ReadOrientation() (world.Orientation, error)
}

// Manager aggregates the available sources. Any field may be nil; Sample
// degrades the matching snapshot field instead of failing.
type Manager struct {
	Position PositionSource
	Range    RangeSource
	Scale    ScaleSource
	Switch   SwitchSource
	Attitude AttitudeSource

	// MaxRangeCM discards out-of-range echoes. Zero disables the bound.
	MaxRangeCM float64
}

// Sample reads every available sensor and returns the fused snapshot.
// The detection field is left zero; the supervisory loop fills it in
// from the perception port.
func (m *Manager) Sample() world.State {
	s := world.State{CapturedAt: time.Now()}

	if m.Position != nil {
		if pos, err := m.Position.ReadPosition(); err == nil {
			p := pos
			s.Position = &p
		} else {
			log.Debug("gps read failed", "err", err)
		}
	}

	if m.Range != nil {
		if cm, err := m.Range.ReadRangeCM(); err == nil {
			if cm >= world.MinClearanceCM && (m.MaxRangeCM == 0 || cm <= m.MaxRangeCM) {
				s.ClearanceCM = world.Float(cm)
			}
		} else {
			log.Debug("rangefinder read failed", "err", err)
		}
	}

	if m.Scale != nil {
		if kg, err := m.Scale.ReadMassKG(); err == nil {
			s.PayloadMassKG = kg
			s.PayloadKnown = true
		} else {
			// Defaults to 0, indistinguishable from an empty bin.
			// PayloadKnown stays false so the loop can flag it.
			log.Warn("scale read failed, payload mass defaulted to 0", "err", err)
		}
	}

	if m.Switch != nil {
		if full, err := m.Switch.ReadBinFull(); err == nil {
			s.BinFull = full
		} else {
			// Fail-open: keep operating rather than halt on a bad switch.
			log.Debug("float switch read failed", "err", err)
		}
	}

	if m.Attitude != nil {
		if o, err := m.Attitude.ReadOrientation(); err == nil {
			att := o
			s.Orientation = &att
		} else {
			log.Debug("imu read failed", "err", err)
		}
	}

	return s
}
