// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"daqflow.xyz/dfo/internal/core"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `dfo:` root key in YAML.
type GlobalConfig struct {
	Control     ControlConfig     `mapstructure:"control"`
	Dispatcher  DispatcherConfig  `mapstructure:"dispatcher"`
	Connections ConnectionsConfig `mapstructure:"connections"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// DispatcherConfig carries the dispatch options enumerated by the module
// schema.
type DispatcherConfig struct {
	GeneralQueueTimeoutMS int    `mapstructure:"general_queue_timeout_ms"`
	StopTimeoutMS         int    `mapstructure:"stop_timeout_ms"`
	BusyThreshold         uint64 `mapstructure:"busy_threshold"`
	FreeThreshold         uint64 `mapstructure:"free_threshold"`
	TDSendRetries         int    `mapstructure:"td_send_retries"`
}

// QueueTimeout returns the per-send wait budget.
func (c DispatcherConfig) QueueTimeout() time.Duration {
	return time.Duration(c.GeneralQueueTimeoutMS) * time.Millisecond
}

// StopTimeout returns the total drain budget at stop.
func (c DispatcherConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMS) * time.Millisecond
}

// ConnectionsConfig names the input and output connections by their data
// type roles.
type ConnectionsConfig struct {
	DecisionInput string   `mapstructure:"decision_input"`
	TokenInput    string   `mapstructure:"token_input"`
	InhibitOutput string   `mapstructure:"inhibit_output"`
	TRBOutputs    []string `mapstructure:"trb_outputs"`
}

// SimulationConfig controls the built-in fake TRB endpoints.
type SimulationConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ResponseDelay string `mapstructure:"response_delay"`
}

// ResponseDelayDuration parses the simulated TRB response delay.
func (c SimulationConfig) ResponseDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.ResponseDelay)
	if err != nil || d < 0 {
		return 10 * time.Millisecond
	}
	return d
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Listen          string `mapstructure:"listen"`
	Path            string `mapstructure:"path"`
	CollectInterval string `mapstructure:"collect_interval"`
}

// CollectIntervalDuration parses the metrics collection interval.
func (c MetricsConfig) CollectIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.CollectInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`
	Format  string           `mapstructure:"format"`
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// configRoot is the top-level wrapper matching the YAML structure `dfo: ...`.
type configRoot struct {
	DFO GlobalConfig `mapstructure:"dfo"`
}

// Load loads configuration from file.
// The YAML file uses `dfo:` as root key; env vars use the DFO_ prefix via
// the key replacer (e.g., key "dfo.log.level" → env "DFO_LOG_LEVEL").
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.DFO

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "dfo." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dfo.control.socket", "/var/run/dfo.sock")
	v.SetDefault("dfo.control.pid_file", "/var/run/dfo.pid")

	v.SetDefault("dfo.dispatcher.general_queue_timeout_ms", 100)
	v.SetDefault("dfo.dispatcher.stop_timeout_ms", 4000)
	v.SetDefault("dfo.dispatcher.busy_threshold", 10)
	v.SetDefault("dfo.dispatcher.free_threshold", 5)
	v.SetDefault("dfo.dispatcher.td_send_retries", 5)

	v.SetDefault("dfo.connections.decision_input", "td_to_dfo")
	v.SetDefault("dfo.connections.token_input", "tokens_to_dfo")
	v.SetDefault("dfo.connections.inhibit_output", "inhibit_to_mlt")

	v.SetDefault("dfo.simulation.enabled", false)
	v.SetDefault("dfo.simulation.response_delay", "10ms")

	v.SetDefault("dfo.metrics.enabled", true)
	v.SetDefault("dfo.metrics.listen", ":9091")
	v.SetDefault("dfo.metrics.path", "/metrics")
	v.SetDefault("dfo.metrics.collect_interval", "5s")

	v.SetDefault("dfo.log.level", "info")
	v.SetDefault("dfo.log.format", "json")
	v.SetDefault("dfo.log.outputs.file.enabled", false)
	v.SetDefault("dfo.log.outputs.file.path", "/var/log/dfo/dfo.log")
	v.SetDefault("dfo.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("dfo.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("dfo.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("dfo.log.outputs.file.rotation.compress", true)
}

// Validate checks configuration consistency.
func (cfg *GlobalConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	d := cfg.Dispatcher
	if d.GeneralQueueTimeoutMS <= 0 {
		return fmt.Errorf("dispatcher.general_queue_timeout_ms must be positive (got %d)", d.GeneralQueueTimeoutMS)
	}
	if d.StopTimeoutMS <= 0 {
		return fmt.Errorf("dispatcher.stop_timeout_ms must be positive (got %d)", d.StopTimeoutMS)
	}
	if d.TDSendRetries <= 0 {
		return fmt.Errorf("dispatcher.td_send_retries must be positive (got %d)", d.TDSendRetries)
	}
	if d.BusyThreshold < d.FreeThreshold {
		return core.DFOThresholdsNotConsistent{Busy: d.BusyThreshold, Free: d.FreeThreshold}
	}

	c := cfg.Connections
	if c.DecisionInput == "" {
		return core.MissingConnection{DataType: "TriggerDecision", Direction: "input"}
	}
	if c.TokenInput == "" {
		return core.MissingConnection{DataType: "TriggerDecisionToken", Direction: "input"}
	}
	if c.InhibitOutput == "" {
		return core.MissingConnection{DataType: "TriggerInhibit", Direction: "output"}
	}
	if cfg.Simulation.Enabled && len(c.TRBOutputs) == 0 {
		return fmt.Errorf("simulation.enabled requires at least one entry in connections.trb_outputs")
	}

	return nil
}
