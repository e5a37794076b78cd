package entities

import (
	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
)

// StepTemplate describes one step an operation type expands into
type StepTemplate struct {
	Type   StepType
	Name   string
	Action string
}

var stepTemplates = map[OperationType][]StepTemplate{
	OperationTypeCrossChainSwap: {
		{Type: StepTypeBridgeToTarget, Name: "Bridge to target chain", Action: "bridge"},
		{Type: StepTypeProtocolExecution, Name: "Execute swap", Action: "swap"},
		{Type: StepTypeBridgeBack, Name: "Bridge back to source chain", Action: "bridge"},
	},
	OperationTypeCrossChainLending: {
		{Type: StepTypeBridgeToTarget, Name: "Bridge to target chain", Action: "bridge"},
		{Type: StepTypeProtocolExecution, Name: "Supply to lending protocol", Action: "supply"},
	},
	OperationTypeCrossChainStaking: {
		{Type: StepTypeBridgeToTarget, Name: "Bridge to target chain", Action: "bridge"},
		{Type: StepTypeProtocolExecution, Name: "Stake tokens", Action: "stake"},
	},
	OperationTypeCrossChainYieldFarming: {
		{Type: StepTypeBridgeToTarget, Name: "Bridge to target chain", Action: "bridge"},
		{Type: StepTypeProtocolExecution, Name: "Provide liquidity", Action: "add_liquidity"},
		{Type: StepTypeProtocolExecution, Name: "Stake LP tokens", Action: "stake_lp"},
	},
}

// StepTemplateFor returns a copy of the ordered step template for an operation type
func StepTemplateFor(operationType OperationType) ([]StepTemplate, error) {
	template, ok := stepTemplates[operationType]
	if !ok {
		return nil, domainerrors.UnsupportedOperationTypeError(string(operationType))
	}
	out := make([]StepTemplate, len(template))
	copy(out, template)
	return out, nil
}
