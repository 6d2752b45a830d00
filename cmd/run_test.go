package cmd

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daqflow.xyz/dfo/internal/command"
)

// mockClient records control calls and returns canned responses.
type mockClient struct {
	calls   []string
	params  []interface{}
	result  interface{}
	callErr error
}

func (m *mockClient) Call(_ context.Context, method string, params interface{}) (*command.Response, error) {
	m.calls = append(m.calls, method)
	m.params = append(m.params, params)
	if m.callErr != nil {
		return nil, m.callErr
	}
	return &command.Response{ID: "test", Result: m.result}, nil
}

func withMockClient(t *testing.T, m *mockClient) {
	t.Helper()
	prev := newControlClient
	newControlClient = func() ControlClient { return m }
	t.Cleanup(func() { newControlClient = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand_SendsStartWithRunNumber(t *testing.T) {
	m := &mockClient{result: "run 42 started"}
	withMockClient(t, m)

	out, err := execute(t, "run", "--run", "42")
	require.NoError(t, err)
	require.Equal(t, []string{"start"}, m.calls)

	params, ok := m.params[0].(command.StartRunParams)
	require.True(t, ok)
	assert.Equal(t, uint32(42), params.Run)
	assert.Contains(t, out, "run 42 started")
}

func TestRunCommand_RequiresRunFlag(t *testing.T) {
	m := &mockClient{}
	withMockClient(t, m)

	// Reset flag state possibly left over from a previous execution.
	runCmd.Flags().Lookup("run").Changed = false

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Empty(t, m.calls)
}

func TestDrainCommand(t *testing.T) {
	m := &mockClient{result: "drained"}
	withMockClient(t, m)

	out, err := execute(t, "drain")
	require.NoError(t, err)
	assert.Equal(t, []string{"drain_dataflow"}, m.calls)
	assert.Contains(t, out, "drained")
}

func TestScrapCommand_PropagatesError(t *testing.T) {
	m := &mockClient{callErr: fmt.Errorf("daemon gone")}
	withMockClient(t, m)

	_, err := execute(t, "scrap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon gone")
}

func TestStatusCommand_RendersJSON(t *testing.T) {
	m := &mockClient{result: map[string]interface{}{"state": "running", "run": 42}}
	withMockClient(t, m)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "running"`)
}
