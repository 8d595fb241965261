// Command amlac runs the AMLAC robot: the supervisory control loop wired
// to the camera, the classifier, the sensor bus and the motor daemon.
//
// Usage:
//
//	AMLAC_MOTOR_DAEMON_URL=http://127.0.0.1:9090 \
//	AMLAC_MODEL_PATH=models/algae.onnx \
//	go run ./cmd/amlac
//
// Without a motor daemon URL the robot runs against simulated actuation,
// which is useful for bench testing the loop with real perception.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EngrAlegre/ALGAE-ML/internal/config"
	"github.com/EngrAlegre/ALGAE-ML/internal/log"
	"github.com/EngrAlegre/ALGAE-ML/pkg/actuation"
	"github.com/EngrAlegre/ALGAE-ML/pkg/auditlog"
	"github.com/EngrAlegre/ALGAE-ML/pkg/camera"
	"github.com/EngrAlegre/ALGAE-ML/pkg/display"
	"github.com/EngrAlegre/ALGAE-ML/pkg/perception"
	"github.com/EngrAlegre/ALGAE-ML/pkg/sensors"
	"github.com/EngrAlegre/ALGAE-ML/pkg/supervisor"
	"github.com/EngrAlegre/ALGAE-ML/pkg/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	if err := run(cfg); err != nil && !errors.Is(err, supervisor.ErrStopped) {
		log.Error("robot terminated", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	// Actuation: motor daemon when configured, simulator on the bench.
	var actuator actuation.Actuator
	if cfg.MotorDaemonURL != "" {
		httpAct := actuation.NewHTTPActuator(cfg.MotorDaemonURL)
		if err := httpAct.Ping(); err != nil {
			// Unreachable at startup is fatal: nothing can ever be
			// safely stopped through a dead port.
			return fmt.Errorf("motor daemon: %w", err)
		}
		actuator = httpAct
		log.Info("actuation: motor daemon", "url", cfg.MotorDaemonURL)
	} else {
		actuator = actuation.NewSimActuator()
		log.Warn("actuation: no motor daemon configured, using simulator")
	}

	// Perception: ONNX classifier when a model is present.
	var classifier supervisor.Classifier = perception.Unavailable{}
	var frames supervisor.FrameSource
	if cfg.ModelPath != "" {
		dnn, err := perception.NewDNN(cfg.ModelPath, cfg.ConfidenceThreshold)
		if err != nil {
			log.Warn("classifier unavailable, detections disabled", "err", err)
		} else {
			defer dnn.Close()
			classifier = dnn

			cam, err := camera.Open(cfg.CameraDevice)
			if err != nil {
				log.Warn("camera unavailable, detections disabled", "err", err)
			} else {
				defer cam.Close()
				frames = cam
			}
		}
	} else {
		log.Warn("no model configured, detections disabled")
	}

	// Sensor fusion through the sensor daemon. Without one, every field
	// degrades to absent and the loop idles on perception alone.
	fusion := &sensors.Manager{MaxRangeCM: cfg.MaxRangeCM}
	if cfg.SensorDaemonURL != "" {
		src := sensors.NewHTTPSource(cfg.SensorDaemonURL)
		fusion.Position = src
		fusion.Range = src
		fusion.Scale = src
		fusion.Switch = src
		fusion.Attitude = src

		// Start from a known-empty bin reading.
		if err := src.Tare(); err != nil {
			log.Warn("scale tare failed", "err", err)
		}
		log.Info("sensors: sensor daemon", "url", cfg.SensorDaemonURL)
	} else {
		log.Warn("sensors: no sensor daemon configured, all readings absent")
	}

	// Audit trail: SQLite always, CSV alongside when configured.
	stores := auditlog.Multi{}
	sqlStore, err := auditlog.OpenSQLite(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("audit store: %w", err)
	}
	stores = append(stores, sqlStore)
	if cfg.AuditCSVPath != "" {
		csvStore, err := auditlog.OpenCSV(cfg.AuditCSVPath)
		if err != nil {
			return fmt.Errorf("audit csv: %w", err)
		}
		stores = append(stores, csvStore)
	}
	defer stores.Close()

	renderers := display.Multi{display.Console{}}

	// Optional operator dashboard. Built before the supervisor so it can
	// join the presentation and audit fan-outs; the loop state source is
	// bound once the supervisor exists, before the server starts.
	var dash *web.Server
	if cfg.DashboardPort != "" {
		dash = web.NewServer(cfg.DashboardPort, nil, sqlStore)
		renderers = append(renderers, dash)
		stores = append(stores, dash.EventSink())
	}

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
		Frames:     frames,
		Classifier: classifier,
		Actuator:   actuator,
		Display:    renderers,
		Audit:      stores,
	})

	if dash != nil {
		dash.SetProvider(sup)
		dash.StartAsync()
		defer dash.Shutdown()
	}

	// SIGINT/SIGTERM stop the loop at the next cycle boundary.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("signal received, stopping", "signal", sig.String())
		sup.Stop()
	}()

	err = sup.Run()
	if err != nil && !errors.Is(err, supervisor.ErrStopped) {
		// Final safe-stop on fatal faults; the loop already tried once.
		actuator.StopAll()
	}
	return err
}
