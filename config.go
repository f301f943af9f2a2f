package cfddns

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables the daemon is configured with.
const (
	EnvAPIToken = "CF_API_TOKEN"
	EnvZoneID   = "CF_ZONE_ID"
	EnvRecordID = "CF_RECORD_ID"
	EnvInterval = "UPDATE_INTERVAL_SECS"
)

// Config holds everything the daemon needs for its lifetime.
// It is loaded once at startup and never mutated afterwards.
type Config struct {
	APIToken string
	ZoneID   string
	RecordID string
	Interval time.Duration
}

// ConfigFromEnv loads Config from the environment.
// All four variables are required; EnvInterval must be a positive integer
// number of seconds. Any missing or malformed value returns an error
// wrapping [ErrInvalidConfig] so that startup aborts before the first cycle.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	var err error
	if cfg.APIToken, err = requireEnv(EnvAPIToken); err != nil {
		return Config{}, err
	}
	if cfg.ZoneID, err = requireEnv(EnvZoneID); err != nil {
		return Config{}, err
	}
	if cfg.RecordID, err = requireEnv(EnvRecordID); err != nil {
		return Config{}, err
	}
	secs, err := requireEnv(EnvInterval)
	if err != nil {
		return Config{}, err
	}
	n, err := strconv.Atoi(secs)
	if err != nil || n <= 0 {
		return Config{}, fmt.Errorf("%w: %s must be a positive number of seconds", ErrInvalidConfig, EnvInterval)
	}
	cfg.Interval = time.Duration(n) * time.Second
	return cfg, nil
}

func requireEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s is missing", ErrInvalidConfig, name)
	}
	return v, nil
}
