package actuation

import (
	"sync"
	"time"
)

// SimActuator is an in-memory actuator used by cmd/simulate and tests.
// It records the commanded state and every command issued, in order.
type SimActuator struct {
	mu sync.Mutex

	left, right      int
	collectorRunning bool

	// SleepCollector makes RunCollector block for its duration,
	// matching hardware timing. Tests leave this false.
	SleepCollector bool

	commands []string

	// FailNext causes the next N commands to fail with ErrRejected.
	FailNext int
}

// NewSimActuator creates a simulated actuator.
func NewSimActuator() *SimActuator {
	return &SimActuator{}
}

func (s *SimActuator) fail() bool {
	if s.FailNext > 0 {
		s.FailNext--
		return true
	}
	return false
}

// Drive sets the paddle speeds.
func (s *SimActuator) Drive(left, right int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return wrap("drive", ErrRejected)
	}
	s.left, s.right = Clamp(left), Clamp(right)
	s.commands = append(s.commands, "drive")
	return nil
}

// StopDrive halts both paddles.
func (s *SimActuator) StopDrive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return wrap("stop_drive", ErrRejected)
	}
	s.left, s.right = 0, 0
	s.commands = append(s.commands, "stop_drive")
	return nil
}

// RunCollector runs the conveyor for the given duration.
func (s *SimActuator) RunCollector(dir Direction, d time.Duration) error {
	s.mu.Lock()
	if s.fail() {
		s.mu.Unlock()
		return wrap("run_collector", ErrRejected)
	}
	s.collectorRunning = true
	s.commands = append(s.commands, "run_collector")
	sleep := s.SleepCollector
	s.mu.Unlock()

	if sleep {
		time.Sleep(d)
	}
	return nil
}

// StopCollector halts the conveyor.
func (s *SimActuator) StopCollector() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return wrap("stop_collector", ErrRejected)
	}
	s.collectorRunning = false
	s.commands = append(s.commands, "stop_collector")
	return nil
}

// StopAll halts everything.
func (s *SimActuator) StopAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left, s.right = 0, 0
	s.collectorRunning = false
	s.commands = append(s.commands, "stop_all")
	return nil
}

// Speeds returns the commanded paddle speeds.
func (s *SimActuator) Speeds() (left, right int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left, s.right
}

// CollectorRunning reports whether the conveyor is commanded on.
func (s *SimActuator) CollectorRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectorRunning
}

// Commands returns a copy of the command history.
func (s *SimActuator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}
