// Package actuation provides interfaces and implementations for the AMLAC
// drive and collector hardware.
//
// The package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package actuation

import "time"

// Speed limits for the differential paddle drive, in percent duty.
const (
	MinSpeed = -100
	MaxSpeed = 100
)

// Direction selects which way the collector conveyor runs.
type Direction int

const (
	// Forward pulls material into the bin.
	Forward Direction = iota
	// Reverse ejects material, used to clear jams.
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Clamp restricts a drive speed to [MinSpeed, MaxSpeed].
func Clamp(speed int) int {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// DriveController provides differential drive control.
// Use this minimal interface when only locomotion is needed.
type DriveController interface {
	// Drive sets the left and right paddle speeds in [-100,100].
	// Positive is forward. Values outside the range are clamped.
	Drive(left, right int) error

	// StopDrive halts both paddles.
	StopDrive() error
}

// CollectorController provides collection conveyor control.
type CollectorController interface {
	// RunCollector runs the conveyor in the given direction for the
	// given duration, blocking until the run completes.
	RunCollector(dir Direction, d time.Duration) error

	// StopCollector halts the conveyor.
	StopCollector() error
}

// EmergencyStopper provides the all-stop used for bin-full holds and
// error recovery. StopAll must be callable at any time, must take effect
// immediately, and must be idempotent.
type EmergencyStopper interface {
	StopAll() error
}

// Actuator is the composite interface for full actuation control.
type Actuator interface {
	DriveController
	CollectorController
	EmergencyStopper
}

// Ensure implementations satisfy Actuator.
var (
	_ Actuator = (*HTTPActuator)(nil)
	_ Actuator = (*SimActuator)(nil)
)
