// Package command implements control plane command handling.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"

	"daqflow.xyz/dfo/internal/core"
	"daqflow.xyz/dfo/internal/dispatcher"
	"daqflow.xyz/dfo/internal/transport"
)

// CommandHandler maps control plane commands onto the dispatcher lifecycle.
type CommandHandler struct {
	dispatcher   *dispatcher.Dispatcher
	configure    func() error // re-applies the resolved configuration
	shutdownFunc func()       // called by daemon_shutdown to trigger graceful stop
	startTime    time.Time

	// decisionSender, when set, backs the inject command used in
	// simulation mode.
	decisionSender transport.Sender[core.TriggerDecision]
	nextTrigger    atomic.Uint64
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(d *dispatcher.Dispatcher, configure func() error) *CommandHandler {
	return &CommandHandler{
		dispatcher: d,
		configure:  configure,
		startTime:  time.Now(),
	}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// SetDecisionSender enables the inject command by providing the decision
// input of the dispatcher.
func (h *CommandHandler) SetDecisionSender(s transport.Sender[core.TriggerDecision]) {
	h.decisionSender = s
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// StartRunParams carries the payload of the start command.
type StartRunParams struct {
	Run uint32 `json:"run" mapstructure:"run"`
}

// DaemonStatus is the result of daemon_status.
type DaemonStatus struct {
	State     string                `json:"state"`
	Run       uint32                `json:"run"`
	Uptime    string                `json:"uptime"`
	Endpoints []EndpointStatusEntry `json:"endpoints"`
}

// EndpointStatusEntry summarizes one registered endpoint.
type EndpointStatusEntry struct {
	Connection string `json:"connection"`
	UsedSlots  uint64 `json:"used_slots"`
	Busy       bool   `json:"busy"`
	InError    bool   `json:"in_error"`
}

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	slog.Info("handling command", "method", cmd.Method, "id", cmd.ID)

	switch cmd.Method {
	case "conf":
		return h.handleConf(cmd)
	case "start":
		return h.handleStart(cmd)
	case "drain_dataflow":
		return h.handleDrain(cmd)
	case "scrap":
		return h.handleScrap(cmd)
	case "inject":
		return h.handleInject(cmd)
	case "daemon_status":
		return h.handleStatus(cmd)
	case "daemon_shutdown":
		return h.handleShutdown(cmd)
	default:
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("method %q not found", cmd.Method),
			},
		}
	}
}

func (h *CommandHandler) handleConf(cmd Command) Response {
	if err := h.configure(); err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, err)
	}
	return Response{ID: cmd.ID, Result: "configured"}
}

func (h *CommandHandler) handleStart(cmd Command) Response {
	var raw map[string]any
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &raw); err != nil {
			return errorResponse(cmd.ID, ErrCodeInvalidParams, err)
		}
	}

	var params StartRunParams
	if err := mapstructure.WeakDecode(raw, &params); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, err)
	}
	if params.Run == 0 {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Errorf("run number is required"))
	}

	if err := h.dispatcher.Start(core.RunNumber(params.Run)); err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, err)
	}
	return Response{ID: cmd.ID, Result: fmt.Sprintf("run %d started", params.Run)}
}

func (h *CommandHandler) handleDrain(cmd Command) Response {
	if err := h.dispatcher.DrainStop(); err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, err)
	}
	return Response{ID: cmd.ID, Result: "drained"}
}

func (h *CommandHandler) handleScrap(cmd Command) Response {
	if err := h.dispatcher.Scrap(); err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, err)
	}
	return Response{ID: cmd.ID, Result: "scrapped"}
}

// InjectParams carries the payload of the inject command.
type InjectParams struct {
	Count       int    `json:"count" mapstructure:"count"`
	TriggerType uint64 `json:"trigger_type" mapstructure:"trigger_type"`
}

// handleInject feeds synthetic trigger decisions into the dispatcher's
// decision input. Only meaningful while a run is active.
func (h *CommandHandler) handleInject(cmd Command) Response {
	if h.decisionSender == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, fmt.Errorf("decision injection not wired"))
	}

	var raw map[string]any
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &raw); err != nil {
			return errorResponse(cmd.ID, ErrCodeInvalidParams, err)
		}
	}
	var params InjectParams
	if err := mapstructure.WeakDecode(raw, &params); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, err)
	}
	if params.Count <= 0 {
		params.Count = 1
	}
	if params.TriggerType == 0 {
		params.TriggerType = uint64(core.TriggerTypeRandom.Bit())
	}

	run := h.dispatcher.RunNumber()
	if run == 0 {
		return errorResponse(cmd.ID, ErrCodeInvalidRequest, fmt.Errorf("no run is active"))
	}

	for i := 0; i < params.Count; i++ {
		decision := core.TriggerDecision{
			TriggerNumber:    core.TriggerNumber(h.nextTrigger.Add(1)),
			RunNumber:        run,
			TriggerType:      core.TriggerTypeBits(params.TriggerType),
			TriggerTimestamp: core.Timestamp(time.Now().UnixNano()),
			ReadoutType:      core.ReadoutLocalized,
		}
		if err := h.decisionSender.Send(decision, time.Second); err != nil {
			return errorResponse(cmd.ID, ErrCodeInternalError,
				fmt.Errorf("injected %d of %d decisions: %w", i, params.Count, err))
		}
	}
	return Response{ID: cmd.ID, Result: fmt.Sprintf("injected %d decisions into run %d", params.Count, run)}
}

func (h *CommandHandler) handleStatus(cmd Command) Response {
	status := DaemonStatus{
		State:  string(h.dispatcher.State()),
		Run:    uint32(h.dispatcher.RunNumber()),
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}
	for _, ep := range h.dispatcher.Registry().Ordered() {
		status.Endpoints = append(status.Endpoints, EndpointStatusEntry{
			Connection: ep.ConnectionName(),
			UsedSlots:  ep.UsedSlots(),
			Busy:       ep.IsBusy(),
			InError:    ep.IsInError(),
		})
	}
	return Response{ID: cmd.ID, Result: status}
}

func (h *CommandHandler) handleShutdown(cmd Command) Response {
	if h.shutdownFunc == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, fmt.Errorf("shutdown not wired"))
	}
	go h.shutdownFunc()
	return Response{ID: cmd.ID, Result: "shutting down"}
}

func errorResponse(id string, code int, err error) Response {
	return Response{
		ID:    id,
		Error: &ErrorInfo{Code: code, Message: err.Error()},
	}
}
