package command

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*UDSClient, *handlerFixture) {
	t.Helper()

	f := newTestHandler(t)
	socket := filepath.Join(t.TempDir(), "dfo-test.sock")

	srv := NewUDSServer(socket, f.h)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })

	return NewUDSClient(socket, 5*time.Second), f
}

func TestUDS_RoundTrip(t *testing.T) {
	client, f := startTestServer(t)

	resp, err := client.Call(context.Background(), "start", StartRunParams{Run: 42})
	require.NoError(t, err)
	assert.Contains(t, resp.Result, "42")

	resp, err = client.Call(context.Background(), "daemon_status", nil)
	require.NoError(t, err)

	status, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "status should decode as an object, got %T", resp.Result)
	assert.Equal(t, "running", status["state"])

	_, err = client.Call(context.Background(), "drain_dataflow", nil)
	require.NoError(t, err)
	assert.Equal(t, "configured", string(f.d.State()))
}

func TestUDS_UnknownMethod(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.Call(context.Background(), "bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestUDS_ClientAgainstDeadSocket(t *testing.T) {
	client := NewUDSClient(filepath.Join(t.TempDir(), "absent.sock"), 200*time.Millisecond)
	_, err := client.Call(context.Background(), "daemon_status", nil)
	require.Error(t, err)
}
