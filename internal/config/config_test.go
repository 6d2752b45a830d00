package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daqflow.xyz/dfo/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dfo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
dfo:
  connections:
    trb_outputs: [trb-01, trb-02]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Dispatcher.GeneralQueueTimeoutMS)
	assert.Equal(t, 4000, cfg.Dispatcher.StopTimeoutMS)
	assert.Equal(t, uint64(10), cfg.Dispatcher.BusyThreshold)
	assert.Equal(t, uint64(5), cfg.Dispatcher.FreeThreshold)
	assert.Equal(t, 5, cfg.Dispatcher.TDSendRetries)
	assert.Equal(t, "td_to_dfo", cfg.Connections.DecisionInput)
	assert.Equal(t, "tokens_to_dfo", cfg.Connections.TokenInput)
	assert.Equal(t, "inhibit_to_mlt", cfg.Connections.InhibitOutput)
	assert.Equal(t, []string{"trb-01", "trb-02"}, cfg.Connections.TRBOutputs)
	assert.False(t, cfg.Simulation.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100*time.Millisecond, cfg.Dispatcher.QueueTimeout())
	assert.Equal(t, 4*time.Second, cfg.Dispatcher.StopTimeout())
	assert.Equal(t, 5*time.Second, cfg.Metrics.CollectIntervalDuration())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
dfo:
  dispatcher:
    general_queue_timeout_ms: 50
    stop_timeout_ms: 1000
    busy_threshold: 5
    free_threshold: 3
    td_send_retries: 2
  connections:
    trb_outputs: [trb-a]
  simulation:
    enabled: true
    response_delay: 25ms
  log:
    level: debug
    format: text
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), cfg.Dispatcher.BusyThreshold)
	assert.Equal(t, uint64(3), cfg.Dispatcher.FreeThreshold)
	assert.Equal(t, 50*time.Millisecond, cfg.Dispatcher.QueueTimeout())
	assert.Equal(t, time.Second, cfg.Dispatcher.StopTimeout())
	assert.True(t, cfg.Simulation.Enabled)
	assert.Equal(t, 25*time.Millisecond, cfg.Simulation.ResponseDelayDuration())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InconsistentThresholds(t *testing.T) {
	path := writeConfig(t, `
dfo:
  dispatcher:
    busy_threshold: 3
    free_threshold: 5
`)
	_, err := Load(path)
	require.Error(t, err)

	var issue core.DFOThresholdsNotConsistent
	require.True(t, errors.As(err, &issue))
	assert.Equal(t, uint64(3), issue.Busy)
	assert.Equal(t, uint64(5), issue.Free)
}

func TestLoad_MissingConnectionNames(t *testing.T) {
	path := writeConfig(t, `
dfo:
  connections:
    decision_input: ""
`)
	_, err := Load(path)
	require.Error(t, err)

	var issue core.MissingConnection
	require.True(t, errors.As(err, &issue))
	assert.Equal(t, "TriggerDecision", issue.DataType)
	assert.Equal(t, "input", issue.Direction)
}

func TestLoad_SimulationNeedsEndpoints(t *testing.T) {
	path := writeConfig(t, `
dfo:
  simulation:
    enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trb_outputs")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
dfo:
  log:
    level: loud
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSimulation_ResponseDelayFallback(t *testing.T) {
	c := SimulationConfig{ResponseDelay: "not-a-duration"}
	assert.Equal(t, 10*time.Millisecond, c.ResponseDelayDuration())
}
