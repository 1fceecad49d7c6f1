package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	IntentPath  string // intent JSON file
	RulesPath   string // hcl rulebooks + permission policies
	ModulesPath string // hcl capability manifests

	Deadline      time.Duration
	MaxConcurrent int
	SafetyFactor  float64
	AutoConfirm   bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.IntentPath == "" {
		return nil, errors.New("IntentPath is a required configuration field and cannot be empty")
	}
	if cfg.RulesPath == "" {
		return nil, errors.New("RulesPath is a required configuration field and cannot be empty")
	}
	if cfg.Deadline <= 0 {
		return nil, errors.New("Deadline must be a positive duration")
	}

	return &cfg, nil
}
