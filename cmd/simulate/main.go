// Command simulate runs the supervisory loop against fully simulated
// hardware, driving it through a scripted scenario: open water, an algae
// patch, an obstacle, and finally a full bin. Useful for demoing the
// loop and the dashboard with no robot attached.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EngrAlegre/ALGAE-ML/internal/config"
	"github.com/EngrAlegre/ALGAE-ML/internal/log"
	"github.com/EngrAlegre/ALGAE-ML/pkg/actuation"
	"github.com/EngrAlegre/ALGAE-ML/pkg/auditlog"
	"github.com/EngrAlegre/ALGAE-ML/pkg/display"
	"github.com/EngrAlegre/ALGAE-ML/pkg/perception"
	"github.com/EngrAlegre/ALGAE-ML/pkg/sensors"
	"github.com/EngrAlegre/ALGAE-ML/pkg/supervisor"
	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// stage advances the scripted scenario every few cycles.
type stage struct {
	after time.Duration
	apply func(*sensors.SimSource, *perception.Static)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	// Shorter cadence than the real robot so the demo moves.
	cfg.CyclePeriod = 500 * time.Millisecond
	cfg.CollectionDuration = time.Second
	cfg.BinFullDwell = 2 * time.Second
	cfg.AvoidTurnTime = 500 * time.Millisecond
	cfg.RotationInterval = 2 * time.Second

	src := &sensors.SimSource{}
	src.Set(func(s *sensors.SimSource) {
		s.HasFix = true
		s.Position = world.Position{Lat: 14.5995, Lon: 120.9842}
		s.HasRange = true
		s.RangeCM = 180
		s.HasMass = true
		s.MassKG = 0.4
		s.HasSwitch = true
		s.HasAttitude = true
	})

	classifier := perception.NewStatic(world.Detection{})

	fusion := &sensors.Manager{
		Position:   src,
		Range:      src,
		Scale:      src,
		Switch:     src,
		Attitude:   src,
		MaxRangeCM: cfg.MaxRangeCM,
	}

	store, err := auditlog.OpenSQLite(cfg.AuditDBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audit store:", err)
		os.Exit(1)
	}
	defer store.Close()

	actuator := actuation.NewSimActuator()

	sup := supervisor.New(supervisor.Config{
		Policy: supervisor.Policy{
			MinSafeDistanceCM:   cfg.MinSafeDistanceCM,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
		},
		CyclePeriod:        cfg.CyclePeriod,
		CollectionDuration: cfg.CollectionDuration,
		BinFullDwell:       cfg.BinFullDwell,
		AvoidTurnTime:      cfg.AvoidTurnTime,
		ErrorBackoff:       cfg.ErrorBackoff,
		RotationInterval:   cfg.RotationInterval,
		CruiseSpeed:        cfg.CruiseSpeed,
		TurnSpeed:          cfg.TurnSpeed,
		StatusEvery:        cfg.StatusEvery,
		MaxRangeCM:         cfg.MaxRangeCM,
	}, supervisor.Ports{
		Fusion:     fusion,
		Classifier: classifier,
		Actuator:   actuator,
		Display:    display.Console{},
		Audit:      store,
	})

	stages := []stage{
		{after: 4 * time.Second, apply: func(s *sensors.SimSource, c *perception.Static) {
			log.Info("scenario: algae patch ahead")
			c.SetVerdict(world.Detection{IsTarget: true, Confidence: 0.92})
		}},
		{after: 8 * time.Second, apply: func(s *sensors.SimSource, c *perception.Static) {
			log.Info("scenario: debris in the water")
			c.SetVerdict(world.Detection{})
			s.RangeCM = 6
		}},
		{after: 11 * time.Second, apply: func(s *sensors.SimSource, c *perception.Static) {
			log.Info("scenario: clear again")
			s.RangeCM = 180
		}},
		{after: 14 * time.Second, apply: func(s *sensors.SimSource, c *perception.Static) {
			log.Info("scenario: bin full")
			s.BinFull = true
			s.MassKG = 9.7
		}},
		{after: 20 * time.Second, apply: func(s *sensors.SimSource, c *perception.Static) {
			log.Info("scenario: bin emptied")
			s.BinFull = false
			s.MassKG = 0.1
		}},
	}

	go func() {
		start := time.Now()
		for _, st := range stages {
			time.Sleep(time.Until(start.Add(st.after)))
			src.Set(func(s *sensors.SimSource) { st.apply(s, classifier) })
		}
		time.Sleep(4 * time.Second)
		log.Info("scenario complete")
		sup.Stop()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		sup.Stop()
	}()

	if err := sup.Run(); err != nil && !errors.Is(err, supervisor.ErrStopped) {
		log.Error("simulation terminated", "err", err)
		os.Exit(1)
	}
	log.Info("simulation done", "collections", sup.CollectionCount())
}
