package app

import (
	"errors"
	"path/filepath"
)

// DefaultConfigName is the configuration file looked up in the working
// directory when no explicit path is given.
const DefaultConfigName = "config.xml"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath   string // .xml or .hcl document
	WorkingDir   string // base for `core/` libraries and the default config path
	MaxRecursion int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	Watch           bool // reload the document when the file changes
	Commands        bool // read execAction/execConfiguration lines from the input
}

// NewConfig validates cfg and fills in derived defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkingDir == "" {
		return nil, errors.New("WorkingDir is a required configuration field and cannot be empty")
	}
	if cfg.MaxRecursion < 0 {
		return nil, errors.New("MaxRecursion must not be negative")
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = filepath.Join(cfg.WorkingDir, DefaultConfigName)
	}
	return &cfg, nil
}
