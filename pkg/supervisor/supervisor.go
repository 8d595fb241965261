// Package supervisor implements the AMLAC decision loop: each cycle it
// fuses sensors and perception into one snapshot, arbitrates a single
// action, sequences the actuation for it, and persists the audit trail.
// The loop recovers from everything except a dead actuation port.
package supervisor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EngrAlegre/ALGAE-ML/internal/log"
	"github.com/EngrAlegre/ALGAE-ML/pkg/actuation"
	"github.com/EngrAlegre/ALGAE-ML/pkg/auditlog"
	"github.com/EngrAlegre/ALGAE-ML/pkg/display"
	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// DefaultFatalAfter is how many consecutive actuation faults escalate to
// a FatalError when Config.FatalAfter is zero.
const DefaultFatalAfter = 5

// Fusion is the sensor fusion port.
type Fusion interface {
	Sample() world.State
}

// FrameSource yields one JPEG frame per cycle.
type FrameSource interface {
	Frame() ([]byte, error)
}

// Classifier is the perception port.
type Classifier interface {
	Classify(jpeg []byte) (world.Detection, error)
}

// Config holds the loop's timing and policy parameters.
type Config struct {
	Policy Policy

	CyclePeriod        time.Duration
	CollectionDuration time.Duration
	BinFullDwell       time.Duration
	AvoidTurnTime      time.Duration
	ErrorBackoff       time.Duration
	RotationInterval   time.Duration

	// CruiseSpeed is the paddle speed for the forward patrol while idle.
	// Zero leaves the drive untouched between maneuvers.
	CruiseSpeed int

	// TurnSpeed is the paddle speed for the open-loop avoidance turn.
	TurnSpeed int

	// StatusEvery emits a periodic status line every Nth cycle.
	// Zero disables it.
	StatusEvery int

	// FatalAfter escalates after this many consecutive actuation
	// faults. Zero means DefaultFatalAfter.
	FatalAfter int

	// MaxRangeCM bounds snapshot validation. Zero skips the bound.
	MaxRangeCM float64
}

// Ports are the external collaborators the loop drives. Frames, Display
// and Audit may be nil; Fusion, Classifier and Actuator are required.
type Ports struct {
	Fusion     Fusion
	Frames     FrameSource
	Classifier Classifier
	Actuator   actuation.Actuator
	Display    display.Renderer
	Audit      auditlog.Store
}

// State is a read-only view of the loop for presentation.
type State struct {
	Running         bool         `json:"running"`
	CycleIndex      uint64       `json:"cycle_index"`
	CollectionCount int64        `json:"collection_count"`
	StartedAt       time.Time    `json:"started_at"`
	LastAction      string       `json:"last_action"`
	LastSnapshot    *world.State `json:"last_snapshot,omitempty"`
}

// Supervisor runs the decision loop. Create with New, drive with Run,
// terminate with Stop from any goroutine.
type Supervisor struct {
	cfg   Config
	ports Ports

	rotator *display.Rotator

	running         atomic.Bool
	cycleIndex      atomic.Uint64
	collectionCount atomic.Int64
	statusEmits     atomic.Uint64
	startedAt       time.Time

	stop     chan struct{}
	stopOnce sync.Once

	// collectMu makes the count increment and the audit append one
	// unit: no observer sees a count without its event in flight.
	collectMu sync.Mutex

	// snapMu guards the presentation view of the last cycle.
	snapMu     sync.RWMutex
	lastSnap   *world.State
	lastAction Action

	consecActFaults int
}

// New creates a supervisor over the given ports.
func New(cfg Config, ports Ports) *Supervisor {
	if cfg.FatalAfter <= 0 {
		cfg.FatalAfter = DefaultFatalAfter
	}
	if ports.Display == nil {
		ports.Display = display.Console{}
	}
	return &Supervisor{
		cfg:     cfg,
		ports:   ports,
		rotator: display.NewRotator(ports.Display, cfg.RotationInterval),
		stop:    make(chan struct{}),
	}
}

// Run executes cycles back-to-back until Stop is called or a fatal
// actuation failure occurs. It returns ErrStopped on a clean stop.
func (s *Supervisor) Run() error {
	s.startedAt = time.Now()
	s.running.Store(true)
	defer s.running.Store(false)

	s.appendEvent(auditlog.KindLifecycle, nil, "robot started")
	s.show(display.ViewReady, display.Data{})
	log.Info("control loop started",
		"cycle_period", s.cfg.CyclePeriod,
		"confidence_threshold", s.cfg.Policy.ConfidenceThreshold,
		"min_safe_distance_cm", s.cfg.Policy.MinSafeDistanceCM)

	for {
		select {
		case <-s.stop:
			s.shutdown()
			return ErrStopped
		default:
		}

		cycleStart := time.Now()
		s.cycleIndex.Add(1)

		if err := s.cycle(); err != nil {
			if IsFatal(err) {
				log.Error("fatal fault, terminating loop", "err", err)
				s.safeStop()
				s.appendEvent(auditlog.KindError, s.snapshot(), err.Error())
				return err
			}
			s.recover(err)
			continue
		}

		if rem := s.cfg.CyclePeriod - time.Since(cycleStart); rem > 0 {
			s.sleep(rem)
		}
		// Overrun is tolerated silently: no catch-up, no skipping.
	}
}

// Stop requests termination. Safe to call from any goroutine and more
// than once; the loop observes it at the next cycle boundary. In-flight
// maneuvers run to completion first.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// CollectionCount returns the number of completed collections.
func (s *Supervisor) CollectionCount() int64 {
	return s.collectionCount.Load()
}

// State returns a presentation snapshot of the loop.
func (s *Supervisor) State() State {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return State{
		Running:         s.running.Load(),
		CycleIndex:      s.cycleIndex.Load(),
		CollectionCount: s.collectionCount.Load(),
		StartedAt:       s.startedAt,
		LastAction:      s.lastAction.String(),
		LastSnapshot:    s.lastSnap,
	}
}

// cycle runs one sense -> decide -> act -> present -> log iteration.
func (s *Supervisor) cycle() error {
	snap := s.sense()

	// A malformed reading degrades its own field to absent rather than
	// killing the cycle. The other fields keep their readings: arbitration
	// still sees a valid obstacle even when perception returned garbage.
	for _, verr := range snap.Sanitize(s.cfg.MaxRangeCM) {
		log.Warn("snapshot reading failed validation, degrading field", "err", verr)
	}

	action := s.cfg.Policy.Decide(snap)

	s.snapMu.Lock()
	snapCopy := snap
	s.lastSnap = &snapCopy
	s.lastAction = action
	s.snapMu.Unlock()

	var err error
	switch action.Kind {
	case ActionBinFull:
		err = s.handleBinFull(&snapCopy)
	case ActionAvoidObstacle:
		err = s.handleObstacle(&snapCopy, action.ClearanceCM)
	case ActionCollect:
		err = s.handleCollect(&snapCopy, action.Confidence)
	default:
		err = s.handleIdle(&snapCopy)
	}

	if err != nil {
		return s.classifyFault(err)
	}
	s.consecActFaults = 0

	// The status line keeps its cadence across idle and collection
	// cycles; bin-full holds and avoidance turns skip it.
	if action.Kind == ActionIdle || action.Kind == ActionCollect {
		if n := s.cfg.StatusEvery; n > 0 && s.cycleIndex.Load()%uint64(n) == 0 {
			s.logStatus(&snapCopy)
		}
	}
	return nil
}

// sense assembles the cycle's snapshot from fusion and perception. Any
// perception failure degrades to a zero detection.
func (s *Supervisor) sense() world.State {
	snap := s.ports.Fusion.Sample()

	if s.ports.Classifier == nil {
		return snap
	}

	var jpeg []byte
	if s.ports.Frames != nil {
		var err error
		jpeg, err = s.ports.Frames.Frame()
		if err != nil {
			log.Warn("frame capture failed, treating as no detection", "err", err)
			return snap
		}
	}

	det, err := s.ports.Classifier.Classify(jpeg)
	if err != nil {
		log.Warn("classifier failed, treating as no detection", "err", err)
		return snap
	}
	snap.Detection = det
	return snap
}

// handleBinFull stops everything, warns the operator and dwells until the
// next cycle re-evaluates the switch. There is no automatic reset: the
// action re-triggers every cycle until the physical switch clears.
func (s *Supervisor) handleBinFull(snap *world.State) error {
	log.Warn("collection bin is full, holding for operator")
	s.show(display.ViewBinFull, display.Data{})

	if err := s.ports.Actuator.StopAll(); err != nil {
		return err
	}

	s.appendEvent(auditlog.KindBinFull, snap, "collection bin full")

	// The dwell is a wait, not a maneuver: a stop request cuts it short.
	s.sleep(s.cfg.BinFullDwell)
	return nil
}

// handleObstacle executes the open-loop avoidance turn: stop, pivot away
// at a fixed rate for a fixed time, stop. Clearance is deliberately not
// re-checked mid-turn; the next cycle sees the new heading.
func (s *Supervisor) handleObstacle(snap *world.State, clearanceCM float64) error {
	log.Warn("obstacle ahead", "clearance_cm", clearanceCM)
	s.show(display.ViewObstacle, display.Data{ClearanceCM: clearanceCM})

	if err := s.ports.Actuator.StopDrive(); err != nil {
		return err
	}
	if err := s.ports.Actuator.Drive(s.cfg.TurnSpeed, -s.cfg.TurnSpeed); err != nil {
		return err
	}
	time.Sleep(s.cfg.AvoidTurnTime) // bounded critical section, not interruptible
	if err := s.ports.Actuator.StopDrive(); err != nil {
		return err
	}

	s.appendEvent(auditlog.KindObstacle, snap, "avoidance turn executed")
	return nil
}

// handleCollect sequences stop -> collect -> resume. The count increment
// and its audit record are issued as one unit, exactly once, and only
// after the actuator sequence has completed.
func (s *Supervisor) handleCollect(snap *world.State, confidence float64) error {
	log.Info("target detected", "confidence", confidence)
	s.show(display.ViewDetected, display.Data{
		CollectionCount: s.collectionCount.Load(),
		Confidence:      confidence,
	})

	if err := s.ports.Actuator.StopDrive(); err != nil {
		return err
	}

	s.show(display.ViewCollecting, display.Data{})
	if err := s.ports.Actuator.RunCollector(actuation.Forward, s.cfg.CollectionDuration); err != nil {
		return err
	}
	if err := s.ports.Actuator.StopCollector(); err != nil {
		return err
	}

	s.collectMu.Lock()
	count := s.collectionCount.Add(1)
	appendErr := s.append(auditlog.New(auditlog.KindDetection, snap, count, "collection complete"))
	s.collectMu.Unlock()

	if appendErr != nil {
		// The collection physically happened, so the count stands;
		// the lost record is surfaced instead of unwinding reality.
		log.Error("audit append failed after collection", "err", appendErr, "count", count)
		s.show(display.ViewError, display.Data{Message: "audit write"})
	}

	log.Info("collection complete", "count", count)
	s.rotator.Reset()
	return nil
}

// handleIdle resumes the forward patrol and rotates the status views.
// Re-commanding cruise every idle cycle also restores motion after a
// maneuver or recovery stopped the drive.
func (s *Supervisor) handleIdle(snap *world.State) error {
	if s.cfg.CruiseSpeed > 0 {
		if err := s.ports.Actuator.Drive(s.cfg.CruiseSpeed, s.cfg.CruiseSpeed); err != nil {
			return err
		}
	}

	d := display.Data{
		CollectionCount: s.collectionCount.Load(),
		PayloadKG:       snap.PayloadMassKG,
		Position:        snap.Position,
	}
	s.rotator.Update(d)
	return nil
}

func (s *Supervisor) logStatus(snap *world.State) {
	s.statusEmits.Add(1)
	args := []any{
		"runtime", time.Since(s.startedAt).Round(time.Second).String(),
		"cycles", s.cycleIndex.Load(),
		"collections", s.collectionCount.Load(),
		"payload_kg", snap.PayloadMassKG,
		"payload_known", snap.PayloadKnown,
	}
	if snap.Position != nil {
		args = append(args, "position", snap.Position.String())
	}
	if c, ok := snap.Clearance(); ok {
		args = append(args, "clearance_cm", c)
	}
	log.Info("status", args...)
}

// recover reports a non-fatal cycle error and backs off before the next
// cycle. Nothing escapes to a crash without a stop_all attempt first.
func (s *Supervisor) recover(err error) {
	log.Error("cycle error, recovering", "err", err, "cycle", s.cycleIndex.Load())
	s.show(display.ViewError, display.Data{Message: err.Error()})
	s.appendEvent(auditlog.KindError, s.snapshot(), err.Error())

	if stopErr := s.ports.Actuator.StopAll(); stopErr != nil {
		log.Error("stop_all during recovery failed", "err", stopErr)
	}

	s.sleep(s.cfg.ErrorBackoff)
}

// classifyFault escalates repeated actuation faults to fatal.
func (s *Supervisor) classifyFault(err error) error {
	if isActuationFault(err) {
		s.consecActFaults++
		if s.consecActFaults >= s.cfg.FatalAfter {
			return Fatal(err)
		}
	}
	return err
}

func isActuationFault(err error) bool {
	var ce *actuation.CommandError
	return errors.As(err, &ce) ||
		errors.Is(err, actuation.ErrUnavailable) ||
		errors.Is(err, actuation.ErrRejected)
}

// shutdown runs the clean stop sequence.
func (s *Supervisor) shutdown() {
	count := s.collectionCount.Load()
	log.Info("shutting down", "collections", count,
		"runtime", time.Since(s.startedAt).Round(time.Second).String())

	s.safeStop()
	s.appendEvent(auditlog.KindLifecycle, nil, "robot stopped")
	s.show(display.ViewShutdown, display.Data{CollectionCount: count})

	if s.ports.Audit != nil {
		if sum, err := s.ports.Audit.Summary(); err == nil {
			log.Info("audit summary", "events", sum.Count,
				"detections", sum.Detections, "avg_confidence", sum.AvgConfidence)
		}
	}
}

// safeStop makes a best-effort attempt to halt all actuation.
func (s *Supervisor) safeStop() {
	if err := s.ports.Actuator.StopAll(); err != nil {
		log.Error("safe stop failed", "err", err)
	}
}

// sleep waits for d or until Stop is called, whichever comes first.
func (s *Supervisor) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.stop:
	}
}

func (s *Supervisor) show(v display.View, d display.Data) {
	s.ports.Display.Show(v, d)
}

func (s *Supervisor) snapshot() *world.State {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.lastSnap
}

func (s *Supervisor) appendEvent(kind auditlog.Kind, snap *world.State, note string) {
	if err := s.append(auditlog.New(kind, snap, s.collectionCount.Load(), note)); err != nil {
		log.Error("audit append failed", "kind", string(kind), "err", err)
	}
}

func (s *Supervisor) append(e auditlog.Event) error {
	if s.ports.Audit == nil {
		return nil
	}
	return s.ports.Audit.Append(e)
}
