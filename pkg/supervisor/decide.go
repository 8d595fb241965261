package supervisor

import (
	"fmt"

	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// ActionKind identifies the single action chosen for a cycle.
type ActionKind int

// Actions, highest priority first. A full bin or an imminent collision
// always pre-empts a detection response, even within the same cycle.
const (
	ActionBinFull ActionKind = iota
	ActionAvoidObstacle
	ActionCollect
	ActionIdle
)

func (k ActionKind) String() string {
	switch k {
	case ActionBinFull:
		return "bin_full"
	case ActionAvoidObstacle:
		return "avoid_obstacle"
	case ActionCollect:
		return "collect"
	default:
		return "idle"
	}
}

// Action is the arbitration result for one cycle.
type Action struct {
	Kind ActionKind

	// ClearanceCM is set for AvoidObstacle.
	ClearanceCM float64

	// Confidence is set for Collect.
	Confidence float64
}

func (a Action) String() string {
	switch a.Kind {
	case ActionAvoidObstacle:
		return fmt.Sprintf("avoid_obstacle(%.1fcm)", a.ClearanceCM)
	case ActionCollect:
		return fmt.Sprintf("collect(%.2f)", a.Confidence)
	default:
		return a.Kind.String()
	}
}

// Policy is the fixed-priority arbitration policy.
type Policy struct {
	// MinSafeDistanceCM triggers obstacle avoidance when a present
	// clearance reading falls below it.
	MinSafeDistanceCM float64

	// ConfidenceThreshold is the minimum detection confidence that
	// triggers a collection.
	ConfidenceThreshold float64
}

// Decide maps a snapshot to exactly one action. It is total and
// deterministic: rules are evaluated in strict priority order and the
// first match wins.
func (p Policy) Decide(s world.State) Action {
	if s.BinFull {
		return Action{Kind: ActionBinFull}
	}
	if clearance, ok := s.Clearance(); ok && clearance < p.MinSafeDistanceCM {
		return Action{Kind: ActionAvoidObstacle, ClearanceCM: clearance}
	}
	if s.Detection.IsTarget && s.Detection.Confidence > p.ConfidenceThreshold {
		return Action{Kind: ActionCollect, Confidence: s.Detection.Confidence}
	}
	return Action{Kind: ActionIdle}
}
