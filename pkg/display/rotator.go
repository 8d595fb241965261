package display

import (
	"sync"
	"time"
)

// rotation order while the robot is idle
var rotationViews = []View{ViewScanning, ViewPosition, ViewPayload}

// Rotator cycles the idle views on a fixed wall-clock interval,
// independent of the control loop's cycle cadence. Reset forces the next
// update back to the first view so a fresh collection count is visible
// immediately after a collect.
type Rotator struct {
	renderer Renderer
	interval time.Duration

	mu       sync.Mutex
	index    int
	lastFlip time.Time

	now func() time.Time // stubbed in tests
}

// NewRotator creates a rotator over renderer flipping every interval.
func NewRotator(renderer Renderer, interval time.Duration) *Rotator {
	return &Rotator{
		renderer: renderer,
		interval: interval,
		now:      time.Now,
	}
}

// Update shows the current idle view, advancing when the interval has
// elapsed since the last flip.
func (r *Rotator) Update(d Data) {
	r.mu.Lock()
	now := r.now()
	if r.lastFlip.IsZero() {
		r.lastFlip = now
	} else if now.Sub(r.lastFlip) >= r.interval {
		r.index = (r.index + 1) % len(rotationViews)
		r.lastFlip = now
	}
	view := rotationViews[r.index]
	r.mu.Unlock()

	r.renderer.Show(view, d)
}

// Reset forces rotation back to the first view and restarts the interval.
func (r *Rotator) Reset() {
	r.mu.Lock()
	r.index = 0
	r.lastFlip = r.now()
	r.mu.Unlock()
}
