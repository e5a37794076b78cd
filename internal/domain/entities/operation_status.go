package entities

import "fmt"

// OperationStatus represents the lifecycle status of a cross-chain operation
type OperationStatus string

const (
	OperationStatusInitiated         OperationStatus = "initiated"
	OperationStatusBridgingToEVM     OperationStatus = "bridging_to_evm"
	OperationStatusExecutingProtocol OperationStatus = "executing_protocol"
	OperationStatusBridgingBack      OperationStatus = "bridging_back"
	OperationStatusCompleted         OperationStatus = "completed"
	OperationStatusFailed            OperationStatus = "failed"
)

// ValidOperationStatuses contains all valid operation statuses
var ValidOperationStatuses = map[OperationStatus]bool{
	OperationStatusInitiated:         true,
	OperationStatusBridgingToEVM:     true,
	OperationStatusExecutingProtocol: true,
	OperationStatusBridgingBack:      true,
	OperationStatusCompleted:         true,
	OperationStatusFailed:            true,
}

// IsValid checks if the status is a valid operation status
func (s OperationStatus) IsValid() bool {
	return ValidOperationStatuses[s]
}

// IsTerminal returns true for completed and failed. The in-flight labels are advisory
// and may be set in any order while the operation runs.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusCompleted || s == OperationStatusFailed
}

// IsInProgress returns true once execution has started and before a terminal status
func (s OperationStatus) IsInProgress() bool {
	return s.IsValid() && !s.IsTerminal() && s != OperationStatusInitiated
}

// CanTransitionTo checks if transition to new status is allowed.
// Terminal statuses are left only through a retry reset.
func (s OperationStatus) CanTransitionTo(newStatus OperationStatus) bool {
	if !newStatus.IsValid() || !s.IsValid() {
		return false
	}
	return !s.IsTerminal()
}

// ValidateTransition validates and returns error if transition is invalid
func (s OperationStatus) ValidateTransition(newStatus OperationStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid operation status: %s", newStatus)
	}
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid status transition from %s to %s", s, newStatus)
	}
	return nil
}

// StepStatus represents the status of a single operation step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// StepType is the closed set of step kinds the executor knows how to run
type StepType string

const (
	StepTypeBridgeToTarget    StepType = "bridge_to_target"
	StepTypeProtocolExecution StepType = "protocol_execution"
	StepTypeBridgeBack        StepType = "bridge_back"
)

// StepTypes lists every step kind in execution-template order
var StepTypes = []StepType{StepTypeBridgeToTarget, StepTypeProtocolExecution, StepTypeBridgeBack}

// ParseStepType converts a persisted token into a StepType
func ParseStepType(value string) (StepType, error) {
	for _, t := range StepTypes {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown step type: %s", value)
}

// RunningStatus returns the advisory operation label shown while a step of this type runs
func (t StepType) RunningStatus() OperationStatus {
	switch t {
	case StepTypeBridgeToTarget:
		return OperationStatusBridgingToEVM
	case StepTypeProtocolExecution:
		return OperationStatusExecutingProtocol
	case StepTypeBridgeBack:
		return OperationStatusBridgingBack
	}
	return OperationStatusInitiated
}

// OperationType classifies what an operation does on the target chain
type OperationType string

const (
	OperationTypeCrossChainSwap         OperationType = "cross_chain_swap"
	OperationTypeCrossChainLending      OperationType = "cross_chain_lending"
	OperationTypeCrossChainStaking      OperationType = "cross_chain_staking"
	OperationTypeCrossChainYieldFarming OperationType = "cross_chain_yield_farming"
)

// ValidOperationTypes contains all supported operation types
var ValidOperationTypes = map[OperationType]bool{
	OperationTypeCrossChainSwap:         true,
	OperationTypeCrossChainLending:      true,
	OperationTypeCrossChainStaking:      true,
	OperationTypeCrossChainYieldFarming: true,
}

// IsValid checks if the operation type is supported
func (t OperationType) IsValid() bool {
	return ValidOperationTypes[t]
}

// Retry and status constants
const (
	MaxOperationRetries   = 3
	CancelledErrorMessage = "Cancelled by user"
	CancelledErrorCode    = "CANCELLED_BY_USER"
	StepFailedErrorCode   = "STEP_EXECUTION_FAILED"
)
