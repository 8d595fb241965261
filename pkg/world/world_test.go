package world

import (
	"testing"
	"time"
)

func TestClearance(t *testing.T) {
	s := &State{}
	if _, ok := s.Clearance(); ok {
		t.Error("absent clearance reported present")
	}

	s.ClearanceCM = Float(42.5)
	c, ok := s.Clearance()
	if !ok {
		t.Fatal("present clearance reported absent")
	}
	if c != 42.5 {
		t.Errorf("clearance: got %v, want 42.5", c)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		maxCM   float64
		wantErr bool
	}{
		{name: "zero state is valid", state: State{}},
		{
			name:  "normal snapshot",
			state: State{ClearanceCM: Float(150), Detection: Detection{Confidence: 0.8}},
			maxCM: 400,
		},
		{
			name:    "confidence above one",
			state:   State{Detection: Detection{Confidence: 1.2}},
			wantErr: true,
		},
		{
			name:    "negative confidence",
			state:   State{Detection: Detection{Confidence: -0.1}},
			wantErr: true,
		},
		{
			name:    "clearance below resolvable minimum",
			state:   State{ClearanceCM: Float(1)},
			wantErr: true,
		},
		{
			name:    "clearance beyond max range",
			state:   State{ClearanceCM: Float(500)},
			maxCM:   400,
			wantErr: true,
		},
		{
			name:  "zero max range skips upper bound",
			state: State{ClearanceCM: Float(500)},
		},
		{
			name:  "clearance at bounds",
			state: State{ClearanceCM: Float(MinClearanceCM)},
			maxCM: MinClearanceCM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate(tt.maxCM)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitize_DegradesOnlyTheBadField(t *testing.T) {
	// A garbage confidence must not discard a valid clearance reading.
	s := State{
		ClearanceCM: Float(5),
		Detection:   Detection{IsTarget: true, Confidence: 1.5},
	}
	violations := s.Sanitize(400)
	if len(violations) != 1 {
		t.Fatalf("violations: got %d, want 1", len(violations))
	}
	if s.Detection != (Detection{}) {
		t.Errorf("bad detection survived: %+v", s.Detection)
	}
	if s.ClearanceCM == nil || *s.ClearanceCM != 5 {
		t.Error("valid clearance discarded alongside the bad confidence")
	}

	// And the other way around.
	s = State{
		ClearanceCM: Float(500),
		Detection:   Detection{IsTarget: true, Confidence: 0.9},
	}
	violations = s.Sanitize(400)
	if len(violations) != 1 {
		t.Fatalf("violations: got %d, want 1", len(violations))
	}
	if s.ClearanceCM != nil {
		t.Error("out-of-range clearance survived")
	}
	if !s.Detection.IsTarget || s.Detection.Confidence != 0.9 {
		t.Errorf("valid detection discarded: %+v", s.Detection)
	}
}

func TestSanitize_ReportsEveryViolation(t *testing.T) {
	s := State{ClearanceCM: Float(1), Detection: Detection{Confidence: -0.2}}
	if got := s.Sanitize(400); len(got) != 2 {
		t.Fatalf("violations: got %d, want 2", len(got))
	}
	if s.ClearanceCM != nil || s.Detection != (Detection{}) {
		t.Errorf("fields not degraded: %+v", s)
	}

	healthy := State{ClearanceCM: Float(150), Detection: Detection{IsTarget: true, Confidence: 0.8}}
	if got := healthy.Sanitize(400); got != nil {
		t.Errorf("violations on healthy snapshot: %v", got)
	}
	if healthy.ClearanceCM == nil || !healthy.Detection.IsTarget {
		t.Error("healthy snapshot was modified")
	}
}

func TestPositionString(t *testing.T) {
	p := Position{Lat: 14.599512, Lon: 120.984222}
	if got := p.String(); got != "14.599512,120.984222" {
		t.Errorf("String: got %q", got)
	}
}

func TestStateIsCopyable(t *testing.T) {
	orig := State{
		Position:    &Position{Lat: 1, Lon: 2},
		ClearanceCM: Float(30),
		CapturedAt:  time.Now(),
	}
	cp := orig
	cp.Position = &Position{Lat: 9, Lon: 9}

	if orig.Position.Lat != 1 {
		t.Error("copy mutated the original position")
	}
}
