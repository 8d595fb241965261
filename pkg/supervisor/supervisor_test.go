package supervisor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EngrAlegre/ALGAE-ML/pkg/actuation"
	"github.com/EngrAlegre/ALGAE-ML/pkg/auditlog"
	"github.com/EngrAlegre/ALGAE-ML/pkg/display"
	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// fakeFusion returns a scripted snapshot every cycle
type fakeFusion struct {
	mu   sync.Mutex
	snap world.State
}

func (f *fakeFusion) Sample() world.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeFusion) set(snap world.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

// memStore records appended events in memory
type memStore struct {
	mu     sync.Mutex
	events []auditlog.Event

	// failKinds makes Append fail for matching kinds
	failKinds map[auditlog.Kind]bool
}

func (m *memStore) Append(e auditlog.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failKinds[e.Kind] {
		return errors.New("store unavailable")
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) Summary() (auditlog.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return auditlog.Summary{Count: len(m.events)}, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) byKind(kind auditlog.Kind) []auditlog.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auditlog.Event
	for _, e := range m.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// nullDisplay swallows frames so tests stay quiet
type nullDisplay struct{}

func (nullDisplay) Show(display.View, display.Data) {}

func testConfig() Config {
	return Config{
		Policy: Policy{
			MinSafeDistanceCM:   10,
			ConfidenceThreshold: 0.7,
		},
		CyclePeriod:        time.Millisecond,
		CollectionDuration: time.Millisecond,
		BinFullDwell:       time.Millisecond,
		AvoidTurnTime:      time.Millisecond,
		ErrorBackoff:       time.Millisecond,
		RotationInterval:   time.Millisecond,
		TurnSpeed:          30,
	}
}

func newTestSupervisor(cfg Config, fusion *fakeFusion, act *actuation.SimActuator, store *memStore) *Supervisor {
	return New(cfg, Ports{
		Fusion:   fusion,
		Actuator: act,
		Display:  nullDisplay{},
		Audit:    store,
	})
}

// runUntil starts the loop, waits for cond (or times out), then stops it.
func runUntil(t *testing.T, s *Supervisor, cond func() bool) error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case err := <-done:
			s.Stop()
			return err
		case <-deadline:
			s.Stop()
			<-done
			t.Fatal("condition not reached before deadline")
		case <-time.After(time.Millisecond):
		}
	}

	s.Stop()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
		return nil
	}
}

func TestSupervisor_CollectIncrementsExactlyOnce(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		ClearanceCM: world.Float(100),
		Detection:   world.Detection{IsTarget: true, Confidence: 0.9},
	})
	act := actuation.NewSimActuator()
	store := &memStore{}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	err := runUntil(t, s, func() bool { return s.CollectionCount() >= 3 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	// One detection event per collection, counts strictly sequential.
	detections := store.byKind(auditlog.KindDetection)
	if int64(len(detections)) != s.CollectionCount() {
		t.Fatalf("detection events: got %d, want %d", len(detections), s.CollectionCount())
	}
	for i, e := range detections {
		if e.CollectionCount != int64(i+1) {
			t.Errorf("event %d: count %d, want %d", i, e.CollectionCount, i+1)
		}
		if e.Snapshot == nil {
			t.Errorf("event %d: missing snapshot", i)
		}
	}
}

func TestSupervisor_BinFullPreemptsCollection(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		BinFull:   true,
		Detection: world.Detection{IsTarget: true, Confidence: 0.95},
	})
	act := actuation.NewSimActuator()
	store := &memStore{}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	err := runUntil(t, s, func() bool { return len(store.byKind(auditlog.KindBinFull)) >= 2 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	if got := s.CollectionCount(); got != 0 {
		t.Errorf("CollectionCount: got %d, want 0", got)
	}
	if got := store.byKind(auditlog.KindDetection); len(got) != 0 {
		t.Errorf("detection events: got %d, want 0", len(got))
	}
	if c := act.CollectorRunning(); c {
		t.Error("collector running while bin full")
	}
}

func TestSupervisor_ObstaclePreemptsCollection(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		ClearanceCM: world.Float(5),
		Detection:   world.Detection{IsTarget: true, Confidence: 0.95},
	})
	act := actuation.NewSimActuator()
	store := &memStore{}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	err := runUntil(t, s, func() bool { return len(store.byKind(auditlog.KindObstacle)) >= 1 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	if got := s.CollectionCount(); got != 0 {
		t.Errorf("CollectionCount: got %d, want 0", got)
	}
	if got := store.byKind(auditlog.KindDetection); len(got) != 0 {
		t.Errorf("detection events: got %d, want 0", len(got))
	}

	// The turn sequence is stop, pivot, stop.
	var sawDrive bool
	for _, c := range act.Commands() {
		if c == "drive" {
			sawDrive = true
		}
	}
	if !sawDrive {
		t.Error("avoidance turn never drove the paddles")
	}
	if l, r := act.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds after turn: got (%d,%d), want (0,0)", l, r)
	}
}

func TestSupervisor_InvalidConfidenceDoesNotMaskObstacle(t *testing.T) {
	// A garbage classifier score arrives on the same cycle as a 5cm
	// obstacle. The bad detection degrades to nothing; the valid
	// clearance reading must still win the arbitration.
	fusion := &fakeFusion{}
	fusion.set(world.State{
		ClearanceCM: world.Float(5),
		Detection:   world.Detection{IsTarget: true, Confidence: 1.5},
	})
	act := actuation.NewSimActuator()
	store := &memStore{}

	cfg := testConfig()
	cfg.MaxRangeCM = 400
	s := newTestSupervisor(cfg, fusion, act, store)

	err := runUntil(t, s, func() bool { return len(store.byKind(auditlog.KindObstacle)) >= 1 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	if got := s.CollectionCount(); got != 0 {
		t.Errorf("collected %d times on an invalid-confidence snapshot", got)
	}
	if got := store.byKind(auditlog.KindDetection); len(got) != 0 {
		t.Errorf("detection events: got %d, want 0", len(got))
	}
	if c := act.CollectorRunning(); c {
		t.Error("collector running toward an obstacle")
	}
}

func TestSupervisor_QuietWaterStaysIdle(t *testing.T) {
	fusion := &fakeFusion{} // everything absent
	act := actuation.NewSimActuator()
	store := &memStore{}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	err := runUntil(t, s, func() bool { return s.State().CycleIndex >= 100 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	if got := s.CollectionCount(); got != 0 {
		t.Errorf("CollectionCount: got %d, want 0", got)
	}
	for _, kind := range []auditlog.Kind{auditlog.KindDetection, auditlog.KindBinFull, auditlog.KindObstacle, auditlog.KindError} {
		if got := store.byKind(kind); len(got) != 0 {
			t.Errorf("%s events: got %d, want 0", kind, len(got))
		}
	}
}

func TestSupervisor_TransientFaultDoesNotLoseCollections(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		Detection: world.Detection{IsTarget: true, Confidence: 0.9},
	})
	act := actuation.NewSimActuator()
	act.FailNext = 2 // first cycles fault, then the port recovers
	store := &memStore{}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	err := runUntil(t, s, func() bool { return s.CollectionCount() >= 2 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	// Faulted cycles produce error events but never a partial count.
	if got := store.byKind(auditlog.KindError); len(got) == 0 {
		t.Error("expected error events from the faulted cycles")
	}
	detections := store.byKind(auditlog.KindDetection)
	for i, e := range detections {
		if e.CollectionCount != int64(i+1) {
			t.Errorf("event %d: count %d, want %d", i, e.CollectionCount, i+1)
		}
	}
}

func TestSupervisor_RepeatedActuationFaultIsFatal(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		Detection: world.Detection{IsTarget: true, Confidence: 0.9},
	})
	act := actuation.NewSimActuator()
	act.FailNext = 1000 // port never recovers
	store := &memStore{}

	cfg := testConfig()
	cfg.FatalAfter = 3
	s := newTestSupervisor(cfg, fusion, act, store)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	select {
	case err := <-done:
		if !IsFatal(err) {
			t.Fatalf("Run: got %v, want FatalError", err)
		}
	case <-time.After(2 * time.Second):
		s.Stop()
		t.Fatal("loop did not terminate on repeated actuation faults")
	}

	// Final act must be a stop_all attempt.
	cmds := act.Commands()
	if len(cmds) == 0 || cmds[len(cmds)-1] != "stop_all" {
		t.Errorf("last command: got %v, want stop_all", cmds)
	}
}

func TestSupervisor_AuditFailureAfterCollectKeepsCount(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		Detection: world.Detection{IsTarget: true, Confidence: 0.9},
	})
	act := actuation.NewSimActuator()
	store := &memStore{failKinds: map[auditlog.Kind]bool{auditlog.KindDetection: true}}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	err := runUntil(t, s, func() bool { return s.CollectionCount() >= 2 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	// The collections physically happened; the counter reflects them even
	// though their audit records were lost.
	if got := s.CollectionCount(); got < 2 {
		t.Errorf("CollectionCount: got %d, want >= 2", got)
	}
	if got := store.byKind(auditlog.KindDetection); len(got) != 0 {
		t.Errorf("detection events: got %d, want 0 (store was failing)", len(got))
	}
}

func TestSupervisor_StopIsCleanAndIdempotent(t *testing.T) {
	fusion := &fakeFusion{}
	act := actuation.NewSimActuator()
	store := &memStore{}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	// Let it spin a little, then stop twice.
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("Run: got %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	if s.State().Running {
		t.Error("State().Running still true after stop")
	}

	// Lifecycle bookends: started and stopped.
	lifecycle := store.byKind(auditlog.KindLifecycle)
	if len(lifecycle) != 2 {
		t.Fatalf("lifecycle events: got %d, want 2", len(lifecycle))
	}
}

func TestSupervisor_HoldsCycleCadence(t *testing.T) {
	fusion := &fakeFusion{} // idle cycles are nearly instant
	act := actuation.NewSimActuator()
	store := &memStore{}

	cfg := testConfig()
	cfg.CyclePeriod = 30 * time.Millisecond
	s := newTestSupervisor(cfg, fusion, act, store)

	start := time.Now()
	err := runUntil(t, s, func() bool { return s.State().CycleIndex >= 5 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}
	elapsed := time.Since(start)

	// Five cycles mean at least four full cadence sleeps. Generous upper
	// bound for scheduler noise.
	if elapsed < 4*cfg.CyclePeriod {
		t.Errorf("5 cycles in %v, cadence not held (period %v)", elapsed, cfg.CyclePeriod)
	}
	if elapsed > 40*cfg.CyclePeriod {
		t.Errorf("5 cycles took %v, loop far slower than cadence", elapsed)
	}
}

func TestSupervisor_IdleResumesCruise(t *testing.T) {
	fusion := &fakeFusion{} // quiet water
	act := actuation.NewSimActuator()
	store := &memStore{}

	cfg := testConfig()
	cfg.CruiseSpeed = 50
	s := newTestSupervisor(cfg, fusion, act, store)

	err := runUntil(t, s, func() bool {
		l, r := act.Speeds()
		return l == 50 && r == 50
	})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	// Shutdown halts the drive after the patrol.
	if l, r := act.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds after shutdown: got (%d,%d), want (0,0)", l, r)
	}
}

func TestSupervisor_StatusKeepsCadenceWhileCollecting(t *testing.T) {
	// Every cycle collects, none idles. The periodic status line still
	// fires on its cadence.
	fusion := &fakeFusion{}
	fusion.set(world.State{
		Detection: world.Detection{IsTarget: true, Confidence: 0.9},
	})
	act := actuation.NewSimActuator()
	store := &memStore{}

	cfg := testConfig()
	cfg.StatusEvery = 3
	s := newTestSupervisor(cfg, fusion, act, store)

	err := runUntil(t, s, func() bool { return s.State().CycleIndex >= 10 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	if got := s.statusEmits.Load(); got < 2 {
		t.Errorf("status emissions over 10 collection cycles: got %d, want >= 2", got)
	}
}

func TestSupervisor_BinFullHoldSkipsStatus(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{BinFull: true})
	act := actuation.NewSimActuator()
	store := &memStore{}

	cfg := testConfig()
	cfg.StatusEvery = 1
	s := newTestSupervisor(cfg, fusion, act, store)

	err := runUntil(t, s, func() bool { return s.State().CycleIndex >= 5 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	if got := s.statusEmits.Load(); got != 0 {
		t.Errorf("status emissions during bin-full hold: got %d, want 0", got)
	}
}

func TestSupervisor_StateReflectsLastCycle(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		Position:    &world.Position{Lat: 14.6, Lon: 121.0},
		ClearanceCM: world.Float(80),
	})
	act := actuation.NewSimActuator()
	store := &memStore{}
	s := newTestSupervisor(testConfig(), fusion, act, store)

	err := runUntil(t, s, func() bool { return s.State().CycleIndex >= 2 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	st := s.State()
	if st.LastAction != "idle" {
		t.Errorf("LastAction: got %q, want idle", st.LastAction)
	}
	if st.LastSnapshot == nil {
		t.Fatal("LastSnapshot missing")
	}
	if st.LastSnapshot.Position == nil || st.LastSnapshot.Position.Lat != 14.6 {
		t.Errorf("snapshot position: got %+v", st.LastSnapshot.Position)
	}
	if st.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestSupervisor_OutOfRangeClearanceIsIgnored(t *testing.T) {
	fusion := &fakeFusion{}
	fusion.set(world.State{
		ClearanceCM: world.Float(9000), // impossible echo
	})
	act := actuation.NewSimActuator()
	store := &memStore{}

	cfg := testConfig()
	cfg.MaxRangeCM = 400
	s := newTestSupervisor(cfg, fusion, act, store)

	err := runUntil(t, s, func() bool { return s.State().CycleIndex >= 2 })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run: got %v, want ErrStopped", err)
	}

	if got := store.byKind(auditlog.KindObstacle); len(got) != 0 {
		t.Errorf("obstacle events from invalid reading: got %d, want 0", len(got))
	}
	st := s.State()
	if st.LastSnapshot != nil && st.LastSnapshot.ClearanceCM != nil {
		t.Error("invalid clearance survived validation")
	}
}
