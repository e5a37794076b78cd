package entities

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
)

// nowFunc is the clock used by entity lifecycle methods
var nowFunc = time.Now

// OperationStep is one atomic unit of an operation: a bridge transfer or a protocol call
type OperationStep struct {
	ID              uuid.UUID           `json:"id"`
	StepType        StepType            `json:"step_type"`
	StepOrder       int                 `json:"step_order"`
	StepName        string              `json:"step_name"`
	Status          StepStatus          `json:"status"`
	ChainID         string              `json:"chain_id,omitempty"`
	TransactionHash string              `json:"transaction_hash,omitempty"`
	BlockNumber     *int64              `json:"block_number,omitempty"`
	GasUsed         decimal.NullDecimal `json:"gas_used"`
	GasCost         decimal.NullDecimal `json:"gas_cost"`
	Confirmations   *int                `json:"confirmations,omitempty"`
	InputToken      string              `json:"input_token,omitempty"`
	InputAmount     decimal.NullDecimal `json:"input_amount"`
	OutputToken     string              `json:"output_token,omitempty"`
	OutputAmount    decimal.NullDecimal `json:"output_amount"`
	Metadata        JSONMap             `json:"metadata,omitempty"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	ErrorCode       string              `json:"error_code,omitempty"`
	StartedAt       *time.Time          `json:"started_at,omitempty"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	Duration        *int64              `json:"duration_ms,omitempty"`
}

// Action returns the protocol action recorded in the step metadata
func (s *OperationStep) Action() string {
	if s.Metadata == nil {
		return ""
	}
	action, _ := s.Metadata["action"].(string)
	return action
}

// StepUpdate carries a partial update for a step; nil fields are left untouched
type StepUpdate struct {
	Status          *StepStatus
	ChainID         *string
	TransactionHash *string
	BlockNumber     *int64
	GasUsed         *decimal.Decimal
	GasCost         *decimal.Decimal
	Confirmations   *int
	InputToken      *string
	InputAmount     *decimal.Decimal
	OutputToken     *string
	OutputAmount    *decimal.Decimal
	Metadata        map[string]interface{}
	ErrorMessage    *string
	ErrorCode       *string
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// Operation is an in-flight multi-step cross-chain operation
type Operation struct {
	ID                  uuid.UUID           `json:"id" db:"id"`
	UserID              uuid.UUID           `json:"user_id" db:"user_id"`
	ConversationID      *string             `json:"conversation_id,omitempty" db:"conversation_id"`
	OperationType       OperationType       `json:"operation_type" db:"operation_type"`
	SourceChain         string              `json:"source_chain" db:"source_chain"`
	TargetChain         string              `json:"target_chain" db:"target_chain"`
	InputToken          string              `json:"input_token" db:"input_token"`
	InputAmount         decimal.Decimal     `json:"input_amount" db:"input_amount"`
	OutputToken         string              `json:"output_token,omitempty" db:"output_token"`
	OutputAmount        decimal.NullDecimal `json:"output_amount" db:"output_amount"`
	Protocol            string              `json:"protocol,omitempty" db:"protocol"`
	ProtocolAction      string              `json:"protocol_action,omitempty" db:"protocol_action"`
	BridgeTransactionID string              `json:"bridge_transaction_id,omitempty" db:"bridge_transaction_id"`
	BridgeOperationHash string              `json:"bridge_operation_hash,omitempty" db:"bridge_operation_hash"`
	EstimatedTime       *int                `json:"estimated_time,omitempty" db:"estimated_time"`
	ActualTime          *int64              `json:"actual_time,omitempty" db:"actual_time"`
	StartedAt           *time.Time          `json:"started_at,omitempty" db:"started_at"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
	TotalFees           decimal.NullDecimal `json:"total_fees" db:"total_fees"`
	Steps               OperationSteps      `json:"steps" db:"steps"`
	CurrentStepIndex    int                 `json:"current_step" db:"current_step"`
	Status              OperationStatus     `json:"status" db:"status"`
	ErrorMessage        string              `json:"error_message,omitempty" db:"error_message"`
	ErrorCode           string              `json:"error_code,omitempty" db:"error_code"`
	RetryCount          int                 `json:"retry_count" db:"retry_count"`
	LastRetryAt         *time.Time          `json:"last_retry_at,omitempty" db:"last_retry_at"`
	CanRetry            bool                `json:"can_retry" db:"can_retry"`
	CreatedAt           time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" db:"updated_at"`
}

// NewOperationParams holds the caller-supplied fields of a new operation
type NewOperationParams struct {
	// ID is generated when left nil
	ID             uuid.UUID
	UserID         uuid.UUID
	ConversationID *string
	OperationType  OperationType
	SourceChain    string
	TargetChain    string
	InputToken     string
	InputAmount    string
	OutputToken    string
	Protocol       string
	ProtocolAction string
	EstimatedTime  *int
}

// NewOperation validates params and builds an operation in the initiated state with no steps.
// Source and target chain may be equal; protocol-only actions legitimately target the same chain.
func NewOperation(params NewOperationParams) (*Operation, error) {
	if params.UserID == uuid.Nil {
		return nil, domainerrors.ValidationError("user_id", "user id is required")
	}
	if params.OperationType == "" {
		return nil, domainerrors.ValidationError("operation_type", "operation type is required")
	}
	if !params.OperationType.IsValid() {
		return nil, domainerrors.ValidationError("operation_type", "unknown operation type: "+string(params.OperationType))
	}
	if strings.TrimSpace(params.SourceChain) == "" {
		return nil, domainerrors.ValidationError("source_chain", "source chain is required")
	}
	if strings.TrimSpace(params.TargetChain) == "" {
		return nil, domainerrors.ValidationError("target_chain", "target chain is required")
	}
	if strings.TrimSpace(params.InputToken) == "" {
		return nil, domainerrors.ValidationError("input_token", "input token is required")
	}
	amount, err := parsePositiveAmount("input_amount", params.InputAmount)
	if err != nil {
		return nil, err
	}

	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := nowFunc()
	return &Operation{
		ID:             id,
		UserID:         params.UserID,
		ConversationID: params.ConversationID,
		OperationType:  params.OperationType,
		SourceChain:    params.SourceChain,
		TargetChain:    params.TargetChain,
		InputToken:     params.InputToken,
		InputAmount:    amount,
		OutputToken:    params.OutputToken,
		Protocol:       params.Protocol,
		ProtocolAction: params.ProtocolAction,
		EstimatedTime:  params.EstimatedTime,
		Steps:          OperationSteps{},
		Status:         OperationStatusInitiated,
		CanRetry:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func parsePositiveAmount(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, domainerrors.ValidationError(field, field+" is required")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, domainerrors.ValidationError(field, field+" must be a decimal number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, domainerrors.ValidationError(field, field+" must be greater than zero")
	}
	return amount, nil
}

func (o *Operation) touch() {
	o.UpdatedAt = nowFunc()
}

// AddStep appends a pending step; its order is the current step count
func (o *Operation) AddStep(stepType StepType, name string, metadata map[string]interface{}) *OperationStep {
	step := &OperationStep{
		ID:        uuid.New(),
		StepType:  stepType,
		StepOrder: len(o.Steps),
		StepName:  name,
		Status:    StepStatusPending,
		Metadata:  JSONMap{},
	}
	for k, v := range metadata {
		step.Metadata[k] = v
	}
	o.Steps = append(o.Steps, step)
	o.touch()
	return step
}

// ExpandSteps appends the operation type's step template
func (o *Operation) ExpandSteps() error {
	template, err := StepTemplateFor(o.OperationType)
	if err != nil {
		return err
	}
	for _, t := range template {
		metadata := map[string]interface{}{"action": t.Action}
		if t.Type == StepTypeProtocolExecution && o.Protocol != "" {
			metadata["protocol"] = o.Protocol
		}
		o.AddStep(t.Type, t.Name, metadata)
	}
	return nil
}

// StepByID returns the step with the given id
func (o *Operation) StepByID(id uuid.UUID) *OperationStep {
	for _, step := range o.Steps {
		if step.ID == id {
			return step
		}
	}
	return nil
}

// UpdateStep merges the non-nil fields of update into the step
func (o *Operation) UpdateStep(id uuid.UUID, update StepUpdate) error {
	step := o.StepByID(id)
	if step == nil {
		return domainerrors.NotFoundError("STEP")
	}

	if update.Status != nil {
		step.Status = *update.Status
	}
	if update.ChainID != nil {
		step.ChainID = *update.ChainID
	}
	if update.TransactionHash != nil {
		step.TransactionHash = *update.TransactionHash
	}
	if update.BlockNumber != nil {
		step.BlockNumber = update.BlockNumber
	}
	if update.GasUsed != nil {
		step.GasUsed = decimal.NewNullDecimal(*update.GasUsed)
	}
	if update.GasCost != nil {
		step.GasCost = decimal.NewNullDecimal(*update.GasCost)
	}
	if update.Confirmations != nil {
		step.Confirmations = update.Confirmations
	}
	if update.InputToken != nil {
		step.InputToken = *update.InputToken
	}
	if update.InputAmount != nil {
		step.InputAmount = decimal.NewNullDecimal(*update.InputAmount)
	}
	if update.OutputToken != nil {
		step.OutputToken = *update.OutputToken
	}
	if update.OutputAmount != nil {
		step.OutputAmount = decimal.NewNullDecimal(*update.OutputAmount)
	}
	if len(update.Metadata) > 0 {
		if step.Metadata == nil {
			step.Metadata = JSONMap{}
		}
		for k, v := range update.Metadata {
			step.Metadata[k] = v
		}
	}
	if update.ErrorMessage != nil {
		step.ErrorMessage = *update.ErrorMessage
	}
	if update.ErrorCode != nil {
		step.ErrorCode = *update.ErrorCode
	}
	if update.StartedAt != nil {
		step.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		newlyCompleted := step.CompletedAt == nil
		step.CompletedAt = update.CompletedAt
		if newlyCompleted && step.StartedAt != nil {
			d := update.CompletedAt.Sub(*step.StartedAt).Milliseconds()
			step.Duration = &d
		}
	}

	o.touch()
	return nil
}

// UpdateStatus moves the operation to status, stamping start and completion times
func (o *Operation) UpdateStatus(status OperationStatus) error {
	if o.Status == status {
		return nil
	}
	if err := o.Status.ValidateTransition(status); err != nil {
		return domainerrors.InvalidStateError("operation", err.Error())
	}

	now := nowFunc()
	if o.Status == OperationStatusInitiated && o.StartedAt == nil {
		o.StartedAt = &now
	}
	o.Status = status
	if status.IsTerminal() {
		o.finish(now)
	}
	o.touch()
	return nil
}

func (o *Operation) finish(now time.Time) {
	o.CompletedAt = &now
	if o.StartedAt != nil {
		actual := now.Sub(*o.StartedAt).Milliseconds()
		o.ActualTime = &actual
	}
}

// SetError forces the operation into the failed state
func (o *Operation) SetError(message, code string) {
	now := nowFunc()
	o.ErrorMessage = message
	o.ErrorCode = code
	o.Status = OperationStatusFailed
	o.finish(now)
	o.touch()
}

// IncrementRetryCount records a retry attempt and disables retries at the limit
func (o *Operation) IncrementRetryCount() {
	now := nowFunc()
	o.RetryCount++
	o.LastRetryAt = &now
	if o.RetryCount >= MaxOperationRetries {
		o.CanRetry = false
	}
	o.touch()
}

// ResetForRetry returns the operation to initiated with a freshly expanded step list.
// Retry count and retry eligibility are kept.
func (o *Operation) ResetForRetry() error {
	o.Steps = OperationSteps{}
	o.CurrentStepIndex = 0
	o.Status = OperationStatusInitiated
	o.ErrorMessage = ""
	o.ErrorCode = ""
	o.StartedAt = nil
	o.CompletedAt = nil
	o.ActualTime = nil
	o.BridgeTransactionID = ""
	o.BridgeOperationHash = ""
	o.OutputAmount = decimal.NullDecimal{}
	o.TotalFees = decimal.NullDecimal{}
	return o.ExpandSteps()
}

// CompletedStepCount returns how many steps finished successfully
func (o *Operation) CompletedStepCount() int {
	count := 0
	for _, step := range o.Steps {
		if step.Status == StepStatusCompleted {
			count++
		}
	}
	return count
}

// ProgressPercentage returns round(100 * completed / total), 0 without steps
func (o *Operation) ProgressPercentage() int {
	if len(o.Steps) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(o.CompletedStepCount()) / float64(len(o.Steps))))
}

// EstimatedCompletion returns StartedAt + EstimatedTime when both are known
func (o *Operation) EstimatedCompletion() *time.Time {
	if o.StartedAt == nil || o.EstimatedTime == nil {
		return nil
	}
	t := o.StartedAt.Add(time.Duration(*o.EstimatedTime) * time.Second)
	return &t
}

// IsCompleted reports whether the operation reached a terminal status
func (o *Operation) IsCompleted() bool {
	return o.Status.IsTerminal()
}

// Duration returns the operation runtime in milliseconds
func (o *Operation) Duration() *int64 {
	if o.ActualTime != nil {
		return o.ActualTime
	}
	if o.StartedAt != nil && !o.IsCompleted() {
		elapsed := nowFunc().Sub(*o.StartedAt).Milliseconds()
		return &elapsed
	}
	return nil
}

// IsOwnedBy reports whether userID owns the operation
func (o *Operation) IsOwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

// OperationFilter narrows user operation listings
type OperationFilter struct {
	Status        *OperationStatus
	OperationType *OperationType
	SourceChain   string
	TargetChain   string
	Protocol      string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// OperationStatusView is the progress snapshot returned to callers
type OperationStatusView struct {
	Status                 OperationStatus `json:"status"`
	CurrentStep            int             `json:"current_step"`
	TotalSteps             int             `json:"total_steps"`
	Progress               int             `json:"progress"`
	EstimatedTimeRemaining *int            `json:"estimated_time_remaining,omitempty"`
}
