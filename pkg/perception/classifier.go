// Package perception provides the frame classifier behind the detection
// field of each world snapshot.
package perception

import (
	"sync"

	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// Classifier turns one captured frame into a detection verdict.
type Classifier interface {
	// Classify runs inference on a JPEG-encoded frame. Implementations
	// with no model loaded return a zero Detection and nil error rather
	// than failing; a non-nil error means inference itself broke and is
	// treated upstream as "no detection this cycle".
	Classify(jpeg []byte) (world.Detection, error)

	// Close releases model resources.
	Close() error
}

// Unavailable is the classifier used when no model is present. It always
// reports no target with zero confidence.
type Unavailable struct{}

// Classify implements Classifier.
func (Unavailable) Classify([]byte) (world.Detection, error) {
	return world.Detection{}, nil
}

// Close implements Classifier.
func (Unavailable) Close() error { return nil }

// Static is a scriptable classifier for simulation and tests. Each call
// returns the current verdict; SetNext queues verdicts consumed in order
// before falling back to the steady value.
type Static struct {
	mu      sync.Mutex
	verdict world.Detection
	queue   []world.Detection
	err     error
}

// NewStatic creates a classifier that always answers with verdict.
func NewStatic(verdict world.Detection) *Static {
	return &Static{verdict: verdict}
}

// SetVerdict changes the steady verdict.
func (s *Static) SetVerdict(v world.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = v
}

// SetErr makes every Classify call fail with err until cleared.
func (s *Static) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetNext queues one-shot verdicts returned before the steady verdict.
func (s *Static) SetNext(vs ...world.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, vs...)
}

// Classify implements Classifier.
func (s *Static) Classify([]byte) (world.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return world.Detection{}, s.err
	}
	if len(s.queue) > 0 {
		v := s.queue[0]
		s.queue = s.queue[1:]
		return v, nil
	}
	return s.verdict, nil
}

// Close implements Classifier.
func (s *Static) Close() error { return nil }
