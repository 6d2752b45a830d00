// Package core defines structured issues raised by the orchestrator.
package core

import (
	"fmt"
	"time"
)

// DFOThresholdsNotConsistent is raised when an endpoint is constructed or
// reconfigured with a busy threshold below the free threshold.
type DFOThresholdsNotConsistent struct {
	Busy uint64
	Free uint64
}

func (e DFOThresholdsNotConsistent) Error() string {
	return fmt.Sprintf("dfo: busy threshold (%d) is smaller than free threshold (%d)", e.Busy, e.Free)
}

// MissingConnection is raised at initialization when a required input or
// output connection cannot be found in the module configuration.
type MissingConnection struct {
	DataType  string
	Direction string
}

func (e MissingConnection) Error() string {
	return fmt.Sprintf("dfo: missing %s connection for data type %s", e.Direction, e.DataType)
}

// RunNumberMismatch is raised when a message carries a run number different
// from the current run. The message is dropped.
type RunNumberMismatch struct {
	Received      RunNumber
	Expected      RunNumber
	Source        string
	TriggerNumber TriggerNumber
}

func (e RunNumberMismatch) Error() string {
	return fmt.Sprintf("dfo: run number %d from %s does not match current run %d (trigger number %d)",
		e.Received, e.Source, e.Expected, e.TriggerNumber)
}

// UnableToAssign is raised when no non-errored endpoint is available for a
// decision. The dispatcher retries after a short sleep.
type UnableToAssign struct {
	TriggerNumber TriggerNumber
}

func (e UnableToAssign) Error() string {
	return fmt.Sprintf("dfo: unable to assign trigger decision %d to any endpoint", e.TriggerNumber)
}

// AssignedToBusyApp is a warning raised when every non-errored endpoint is
// busy and the decision is force-assigned to the least occupied one.
type AssignedToBusyApp struct {
	TriggerNumber  TriggerNumber
	ConnectionName string
	UsedSlots      uint64
}

func (e AssignedToBusyApp) Error() string {
	return fmt.Sprintf("dfo: trigger decision %d assigned to busy endpoint %s with %d used slots",
		e.TriggerNumber, e.ConnectionName, e.UsedSlots)
}

// TRBModuleAppUpdate reports a state change of a trigger record builder
// endpoint, such as a send failure or a reconnection.
type TRBModuleAppUpdate struct {
	ConnectionName string
	Message        string
}

func (e TRBModuleAppUpdate) Error() string {
	return fmt.Sprintf("dfo: endpoint %s: %s", e.ConnectionName, e.Message)
}

// UnknownTokenSource is raised when a completion token names an endpoint
// that was never registered. The token is dropped.
type UnknownTokenSource struct {
	ConnectionName string
}

func (e UnknownTokenSource) Error() string {
	return fmt.Sprintf("dfo: received completion token from unknown endpoint %s", e.ConnectionName)
}

// AssignedTriggerDecisionNotFound is raised when a completion token refers
// to a trigger number that is not assigned to the named endpoint.
type AssignedTriggerDecisionNotFound struct {
	TriggerNumber  TriggerNumber
	ConnectionName string
}

func (e AssignedTriggerDecisionNotFound) Error() string {
	return fmt.Sprintf("dfo: trigger decision %d was not found for endpoint %s",
		e.TriggerNumber, e.ConnectionName)
}

// IncompleteTriggerDecision reports a decision still outstanding when the
// drain budget expired at stop. One is raised per residual assignment.
type IncompleteTriggerDecision struct {
	TriggerNumber TriggerNumber
	RunNumber     RunNumber
}

func (e IncompleteTriggerDecision) Error() string {
	return fmt.Sprintf("dfo: trigger decision %d of run %d was not completed at stop",
		e.TriggerNumber, e.RunNumber)
}

// OperationFailed wraps a transient transport failure. It is a warning:
// the operation is retried within its budget.
type OperationFailed struct {
	Operation      string
	ConnectionName string
	Timeout        time.Duration
	Err            error
}

func (e OperationFailed) Error() string {
	return fmt.Sprintf("dfo: %s on connection %s failed after %v: %v",
		e.Operation, e.ConnectionName, e.Timeout, e.Err)
}

func (e OperationFailed) Unwrap() error { return e.Err }
