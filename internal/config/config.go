package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written as "5s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string ("5s", "250ms", ...).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ServerConfig holds configuration for the rangerd daemon.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db_path"`    // SQLite database path (":memory:" for testing)

	// RangingTimeout bounds how long a dispatched command may wait for an
	// engine result before it is cancelled and failed.
	RangingTimeout Duration `yaml:"ranging_timeout"`

	// ResolveTimeout bounds the peer-handle resolution step. Zero means
	// unbounded resolution.
	ResolveTimeout Duration `yaml:"resolve_timeout"`

	// SimLatency is the simulated engine's result latency.
	SimLatency Duration `yaml:"sim_latency"`

	// SimDistanceScript is an optional JavaScript expression evaluated per
	// peer by the simulated engine to produce a distance in millimeters.
	// The variables "mac" (string) and "index" (peer position) are in scope.
	SimDistanceScript string `yaml:"sim_distance_script"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		RangingTimeout: Duration(5 * time.Second),
		ResolveTimeout: 0,
		SimLatency:     Duration(50 * time.Millisecond),
	}
}

// LoadFile reads a YAML config file over the defaults. Fields absent from
// the file keep their default values.
func LoadFile(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
