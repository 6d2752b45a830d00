package cmd

import (
	"context"
	"time"

	"daqflow.xyz/dfo/internal/command"
)

// ControlClient is the subset of the UDS client the run control commands
// need. Tests substitute a mock.
type ControlClient interface {
	Call(ctx context.Context, method string, params interface{}) (*command.Response, error)
}

// newControlClient builds the default client against the configured socket.
var newControlClient = func() ControlClient {
	return command.NewUDSClient(socketPath, 10*time.Second)
}
