// Package auditlog persists the append-only trail of collection events.
// The supervisory loop hands each event off once; stores own it from then
// on and must preserve insertion order.
package auditlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// Kind classifies what triggered an event.
type Kind string

// Event kinds.
const (
	KindDetection Kind = "detection"
	KindBinFull   Kind = "bin_full"
	KindObstacle  Kind = "obstacle"
	KindError     Kind = "error"
	KindLifecycle Kind = "lifecycle"
)

// Event is one append-only audit record. Snapshot is the world state that
// triggered the event, nil for lifecycle events.
type Event struct {
	ID              uuid.UUID    `json:"id"`
	Timestamp       time.Time    `json:"timestamp"`
	Kind            Kind         `json:"kind"`
	Snapshot        *world.State `json:"snapshot,omitempty"`
	CollectionCount int64        `json:"collection_count"`
	Note            string       `json:"note,omitempty"`
}

// New builds an event with a fresh ID and timestamp.
func New(kind Kind, snapshot *world.State, count int64, note string) Event {
	return Event{
		ID:              uuid.New(),
		Timestamp:       time.Now(),
		Kind:            kind,
		Snapshot:        snapshot,
		CollectionCount: count,
		Note:            note,
	}
}

// Summary aggregates a store's trail.
type Summary struct {
	Count         int     `json:"count"`
	Detections    int     `json:"detections"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Store is the audit log port.
type Store interface {
	// Append persists one event. Order of calls is the order on disk.
	Append(Event) error

	// Summary aggregates the persisted trail.
	Summary() (Summary, error)

	// Close flushes and releases the store.
	Close() error
}

// Multi appends each event to every store. Summary comes from the first.
type Multi []Store

// Append implements Store. The first failure is returned but remaining
// stores still receive the event.
func (m Multi) Append(e Event) error {
	var first error
	for _, s := range m {
		if err := s.Append(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Summary implements Store.
func (m Multi) Summary() (Summary, error) {
	if len(m) == 0 {
		return Summary{}, nil
	}
	return m[0].Summary()
}

// Close implements Store.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
