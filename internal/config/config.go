// Package config provides runtime configuration for the AMLAC robot.
// Values come from environment variables (optionally a .env file) with
// defaults matching the field calibration of the original deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for decision thresholds and loop timing.
const (
	DefaultConfidenceThreshold = 0.7
	DefaultMinSafeDistanceCM   = 10.0
	DefaultMaxRangeCM          = 400.0
	DefaultMaxPayloadKG        = 10.0

	DefaultCyclePeriod        = 2 * time.Second
	DefaultCollectionDuration = 5 * time.Second
	DefaultRotationInterval   = 5 * time.Second
	DefaultBinFullDwell       = 10 * time.Second
	DefaultAvoidTurnTime      = 2 * time.Second
	DefaultErrorBackoff       = 5 * time.Second

	DefaultCruiseSpeed = 50
	DefaultTurnSpeed   = 30
	DefaultStatusEvery = 30
)

// Config holds all runtime configuration for the robot.
type Config struct {
	// Decision thresholds
	ConfidenceThreshold float64
	MinSafeDistanceCM   float64
	MaxRangeCM          float64
	MaxPayloadKG        float64

	// Loop timing
	CyclePeriod        time.Duration
	CollectionDuration time.Duration
	RotationInterval   time.Duration
	BinFullDwell       time.Duration
	AvoidTurnTime      time.Duration
	ErrorBackoff       time.Duration

	// Actuation
	CruiseSpeed int
	TurnSpeed   int

	// StatusEvery controls periodic status emission (every Nth idle cycle).
	StatusEvery int

	// Wiring
	MotorDaemonURL  string // HTTP motor daemon, e.g. http://127.0.0.1:9090
	SensorDaemonURL string // HTTP sensor daemon, e.g. http://127.0.0.1:9091
	CameraDevice   int    // V4L2 device index
	ModelPath      string // ONNX classifier model, empty = no model
	AuditDBPath    string // SQLite audit trail
	AuditCSVPath   string // CSV audit trail, empty = disabled
	DashboardPort  string // operator dashboard, empty = disabled
	LogLevel       string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MinSafeDistanceCM:   DefaultMinSafeDistanceCM,
		MaxRangeCM:          DefaultMaxRangeCM,
		MaxPayloadKG:        DefaultMaxPayloadKG,
		CyclePeriod:         DefaultCyclePeriod,
		CollectionDuration:  DefaultCollectionDuration,
		RotationInterval:    DefaultRotationInterval,
		BinFullDwell:        DefaultBinFullDwell,
		AvoidTurnTime:       DefaultAvoidTurnTime,
		ErrorBackoff:        DefaultErrorBackoff,
		CruiseSpeed:         DefaultCruiseSpeed,
		TurnSpeed:           DefaultTurnSpeed,
		StatusEvery:         DefaultStatusEvery,
		MotorDaemonURL:      strings.TrimSpace(os.Getenv("AMLAC_MOTOR_DAEMON_URL")),
		SensorDaemonURL:     strings.TrimSpace(os.Getenv("AMLAC_SENSOR_DAEMON_URL")),
		ModelPath:           strings.TrimSpace(os.Getenv("AMLAC_MODEL_PATH")),
		AuditDBPath:         "amlac_audit.db",
		AuditCSVPath:        strings.TrimSpace(os.Getenv("AMLAC_AUDIT_CSV")),
		DashboardPort:       strings.TrimSpace(os.Getenv("AMLAC_DASHBOARD_PORT")),
		LogLevel:            "info",
	}

	if v := strings.TrimSpace(os.Getenv("AMLAC_AUDIT_DB")); v != "" {
		cfg.AuditDBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("AMLAC_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	var err error
	if cfg.ConfidenceThreshold, err = floatEnv("AMLAC_CONFIDENCE_THRESHOLD", cfg.ConfidenceThreshold); err != nil {
		return cfg, err
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return cfg, fmt.Errorf("AMLAC_CONFIDENCE_THRESHOLD out of range [0,1]: %v", cfg.ConfidenceThreshold)
	}
	if cfg.MinSafeDistanceCM, err = floatEnv("AMLAC_MIN_SAFE_DISTANCE_CM", cfg.MinSafeDistanceCM); err != nil {
		return cfg, err
	}
	if cfg.MaxRangeCM, err = floatEnv("AMLAC_MAX_RANGE_CM", cfg.MaxRangeCM); err != nil {
		return cfg, err
	}
	if cfg.MaxPayloadKG, err = floatEnv("AMLAC_MAX_PAYLOAD_KG", cfg.MaxPayloadKG); err != nil {
		return cfg, err
	}

	if cfg.CyclePeriod, err = durationEnv("AMLAC_CYCLE_PERIOD", cfg.CyclePeriod); err != nil {
		return cfg, err
	}
	if cfg.CollectionDuration, err = durationEnv("AMLAC_COLLECTION_DURATION", cfg.CollectionDuration); err != nil {
		return cfg, err
	}
	if cfg.RotationInterval, err = durationEnv("AMLAC_ROTATION_INTERVAL", cfg.RotationInterval); err != nil {
		return cfg, err
	}
	if cfg.BinFullDwell, err = durationEnv("AMLAC_BIN_FULL_DWELL", cfg.BinFullDwell); err != nil {
		return cfg, err
	}
	if cfg.AvoidTurnTime, err = durationEnv("AMLAC_AVOID_TURN_TIME", cfg.AvoidTurnTime); err != nil {
		return cfg, err
	}
	if cfg.ErrorBackoff, err = durationEnv("AMLAC_ERROR_BACKOFF", cfg.ErrorBackoff); err != nil {
		return cfg, err
	}

	if cfg.CruiseSpeed, err = intEnv("AMLAC_CRUISE_SPEED", cfg.CruiseSpeed); err != nil {
		return cfg, err
	}
	if cfg.TurnSpeed, err = intEnv("AMLAC_TURN_SPEED", cfg.TurnSpeed); err != nil {
		return cfg, err
	}
	if cfg.StatusEvery, err = intEnv("AMLAC_STATUS_EVERY", cfg.StatusEvery); err != nil {
		return cfg, err
	}
	if cfg.CameraDevice, err = intEnv("AMLAC_CAMERA_DEVICE", cfg.CameraDevice); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
