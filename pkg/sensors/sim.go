package sensors

import (
	"errors"
	"sync"

	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// ErrNoReading is returned by simulated sources configured as faulted.
var ErrNoReading = errors.New("sensors: no reading")

// SimSource is a scriptable source implementing every Source interface.
// Set the fields you care about; zero values read as faults for optional
// readings, so a bare SimSource behaves like dead hardware.
type SimSource struct {
	mu sync.Mutex

	HasFix   bool
	Position world.Position

	HasRange bool
	RangeCM  float64

	HasMass bool
	MassKG  float64

	HasSwitch bool
	BinFull   bool

	HasAttitude bool
	Orientation world.Orientation

	tared bool
}

// Set applies fn under the source lock, for scripted scenarios.
func (s *SimSource) Set(fn func(*SimSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// ReadPosition implements PositionSource.
func (s *SimSource) ReadPosition() (world.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.HasFix {
		return world.Position{}, ErrNoReading
	}
	return s.Position, nil
}

// ReadRangeCM implements RangeSource.
func (s *SimSource) ReadRangeCM() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.HasRange {
		return 0, ErrNoReading
	}
	return s.RangeCM, nil
}

// ReadMassKG implements ScaleSource.
func (s *SimSource) ReadMassKG() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.HasMass {
		return 0, ErrNoReading
	}
	if s.tared {
		return 0, nil
	}
	return s.MassKG, nil
}

// Tare implements ScaleSource.
func (s *SimSource) Tare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.HasMass {
		return ErrNoReading
	}
	s.tared = true
	return nil
}

// ReadBinFull implements SwitchSource.
func (s *SimSource) ReadBinFull() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.HasSwitch {
		return false, ErrNoReading
	}
	return s.BinFull, nil
}

// ReadOrientation implements AttitudeSource.
func (s *SimSource) ReadOrientation() (world.Orientation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.HasAttitude {
		return world.Orientation{}, ErrNoReading
	}
	return s.Orientation, nil
}
