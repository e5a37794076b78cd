package operation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
)

// funds tracks the token and amount flowing from one step into the next
type funds struct {
	token  string
	amount decimal.Decimal
}

// stepOutcome is what a step body reports back to the executor
type stepOutcome struct {
	update entities.StepUpdate
	out    funds
}

// ExecuteOperation runs the operation's steps in order starting at its current step.
// The step index is persisted before each step runs, so a restart re-attempts the last started step.
// Completed steps are never rolled back when a later step fails.
func (s *Service) ExecuteOperation(ctx context.Context, id uuid.UUID) (*entities.Operation, error) {
	ctx, span := s.tracer.Start(ctx, "operation.execute", trace.WithAttributes(
		attribute.String("operation_id", id.String()),
	))
	defer span.End()

	op, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if op.IsCompleted() {
		return nil, domainerrors.InvalidStateError("operation", fmt.Sprintf("cannot execute operation in %s state", op.Status))
	}
	span.SetAttributes(
		attribute.String("operation_type", string(op.OperationType)),
		attribute.Int("steps", len(op.Steps)),
		attribute.Int("start_step", op.CurrentStepIndex),
	)

	s.logger.Info("Executing operation",
		zap.String("operation_id", op.ID.String()),
		zap.Int("current_step", op.CurrentStepIndex),
		zap.Int("total_steps", len(op.Steps)))

	start := op.CurrentStepIndex
	current := s.fundsBefore(op, start)
	for i := start; i < len(op.Steps); i++ {
		step := op.Steps[i]
		if step.Status == entities.StepStatusCompleted {
			current = fundsAfter(step, current)
			continue
		}

		op.CurrentStepIndex = i
		if err := op.UpdateStatus(step.StepType.RunningStatus()); err != nil {
			return nil, err
		}
		started := nowUTC()
		inProgress := entities.StepStatusInProgress
		if err := op.UpdateStep(step.ID, entities.StepUpdate{Status: &inProgress, StartedAt: &started}); err != nil {
			return nil, err
		}
		latest, err := s.writeInFlight(ctx, op)
		if err != nil {
			return nil, domainerrors.InternalError("persist step checkpoint", err)
		}
		if latest != nil {
			return s.stopBeforeStep(latest, step, span), nil
		}

		outcome, stepErr := s.runStep(ctx, op, step, current)
		if stepErr != nil {
			return nil, s.failStep(ctx, op, step, stepErr, span)
		}

		finished := nowUTC()
		completed := entities.StepStatusCompleted
		outcome.update.Status = &completed
		outcome.update.CompletedAt = &finished

		if err := op.UpdateStep(step.ID, outcome.update); err != nil {
			return nil, err
		}
		current = outcome.out

		// a cancellation persisted while the step ran wins over our in-memory state
		latest, err = s.writeInFlight(ctx, op)
		if err != nil {
			return nil, domainerrors.InternalError("persist completed step", err)
		}
		if latest != nil {
			return s.stopFinishedExternally(ctx, op, latest, step, outcome.update, span)
		}

		s.logger.Info("Operation step completed",
			zap.String("operation_id", op.ID.String()),
			zap.String("step_type", string(step.StepType)),
			zap.Int("step_order", step.StepOrder),
			zap.Int("progress", op.ProgressPercentage()))
		s.notify(ctx, op, entities.NotificationOperationProgress, "Operation progress",
			fmt.Sprintf("%s completed (%d%%)", step.StepName, op.ProgressPercentage()))
	}

	return s.completeOperation(ctx, op, current, span)
}

// writeInFlight persists op while it is still in flight. When the stored operation was finished
// elsewhere, nothing is written and the stored record is returned.
func (s *Service) writeInFlight(ctx context.Context, op *entities.Operation) (*entities.Operation, error) {
	err := s.repo.UpdateInFlight(ctx, op)
	if err == nil {
		return nil, nil
	}
	if !domainerrors.IsInvalidState(err) {
		return nil, err
	}
	latest, getErr := s.repo.GetByID(ctx, op.ID)
	if getErr != nil {
		return nil, fmt.Errorf("reload operation: %w", getErr)
	}
	if !latest.IsCompleted() {
		return nil, err
	}
	return latest, nil
}

func (s *Service) stopBeforeStep(latest *entities.Operation, step *entities.OperationStep, span trace.Span) *entities.Operation {
	s.logger.Info("Operation finished externally before step started",
		zap.String("operation_id", latest.ID.String()),
		zap.String("status", string(latest.Status)),
		zap.String("error_code", latest.ErrorCode),
		zap.Int("step_order", step.StepOrder))
	span.SetAttributes(attribute.Bool("stopped_externally", true))
	return latest
}

// stopFinishedExternally records the step that just finished on the externally terminated record and stops
func (s *Service) stopFinishedExternally(ctx context.Context, op, latest *entities.Operation, step *entities.OperationStep, update entities.StepUpdate, span trace.Span) (*entities.Operation, error) {
	if err := latest.UpdateStep(step.ID, update); err == nil {
		if op.BridgeTransactionID != "" {
			latest.BridgeTransactionID = op.BridgeTransactionID
			latest.BridgeOperationHash = op.BridgeOperationHash
		}
		if err := s.repo.Update(ctx, latest); err != nil {
			s.logger.Error("Failed to persist step of stopped operation",
				zap.String("operation_id", latest.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Operation finished externally, stopping execution",
		zap.String("operation_id", latest.ID.String()),
		zap.String("status", string(latest.Status)),
		zap.String("error_code", latest.ErrorCode),
		zap.Int("step_order", step.StepOrder))
	span.SetAttributes(attribute.Bool("stopped_externally", true))
	return latest, nil
}

func (s *Service) completeOperation(ctx context.Context, op *entities.Operation, final funds, span trace.Span) (*entities.Operation, error) {
	if op.OutputToken == "" {
		op.OutputToken = final.token
	}
	op.OutputAmount = decimal.NewNullDecimal(final.amount)
	op.TotalFees = decimal.NewNullDecimal(totalFees(op))
	if len(op.Steps) > 0 {
		op.CurrentStepIndex = len(op.Steps) - 1
	}
	if err := op.UpdateStatus(entities.OperationStatusCompleted); err != nil {
		return nil, err
	}
	latest, err := s.writeInFlight(ctx, op)
	if err != nil {
		return nil, domainerrors.InternalError("persist completed operation", err)
	}
	if latest != nil {
		s.logger.Info("Operation finished externally before completion",
			zap.String("operation_id", latest.ID.String()),
			zap.String("status", string(latest.Status)))
		span.SetAttributes(attribute.Bool("stopped_externally", true))
		return latest, nil
	}

	s.logger.Info("Operation completed",
		zap.String("operation_id", op.ID.String()),
		zap.String("output_token", op.OutputToken),
		zap.String("output_amount", final.amount.String()),
		zap.Int64p("actual_time_ms", op.ActualTime))
	span.SetStatus(codes.Ok, "completed")

	s.notify(ctx, op, entities.NotificationOperationCompleted, "Operation completed",
		fmt.Sprintf("Your %s completed: received %s %s", humanType(op.OperationType), final.amount.String(), op.OutputToken))
	if s.analytics != nil {
		if err := s.analytics.RecordOperationCompleted(ctx, op); err != nil {
			s.logger.Warn("Failed to record operation completion", zap.String("operation_id", op.ID.String()), zap.Error(err))
		}
	}
	return op, nil
}

// failStep records the failure on the step and operation, persists it and returns the step error
func (s *Service) failStep(ctx context.Context, op *entities.Operation, step *entities.OperationStep, cause error, span trace.Span) error {
	stepErr := domainerrors.StepExecutionError(string(step.StepType), cause)

	finished := nowUTC()
	failed := entities.StepStatusFailed
	message := cause.Error()
	code := entities.StepFailedErrorCode
	if err := op.UpdateStep(step.ID, entities.StepUpdate{
		Status:       &failed,
		CompletedAt:  &finished,
		ErrorMessage: &message,
		ErrorCode:    &code,
	}); err != nil {
		s.logger.Error("Failed to record step failure", zap.String("operation_id", op.ID.String()), zap.Error(err))
	}
	op.SetError(stepErr.Error(), entities.StepFailedErrorCode)

	if err := s.repo.UpdateInFlight(ctx, op); err != nil {
		s.logger.Error("Failed to persist failed operation",
			zap.String("operation_id", op.ID.String()),
			zap.Error(err))
	}

	s.logger.Error("Operation step failed",
		zap.String("operation_id", op.ID.String()),
		zap.String("step_type", string(step.StepType)),
		zap.Int("step_order", step.StepOrder),
		zap.Error(cause))
	span.RecordError(stepErr)
	span.SetStatus(codes.Error, stepErr.Error())

	s.recordFailure(ctx, op)
	return stepErr
}

// runStep dispatches over the closed set of step types
func (s *Service) runStep(ctx context.Context, op *entities.Operation, step *entities.OperationStep, in funds) (*stepOutcome, error) {
	switch step.StepType {
	case entities.StepTypeBridgeToTarget:
		return s.bridgeStep(ctx, op, op.SourceChain, op.TargetChain, in)
	case entities.StepTypeProtocolExecution:
		return s.protocolStep(ctx, op, step, in)
	case entities.StepTypeBridgeBack:
		return s.bridgeStep(ctx, op, op.TargetChain, op.SourceChain, in)
	}
	return nil, fmt.Errorf("unknown step type %q", step.StepType)
}

func (s *Service) bridgeStep(ctx context.Context, op *entities.Operation, from, to string, in funds) (*stepOutcome, error) {
	transfer, err := s.bridge.InitiateBridge(ctx, &entities.BridgeTransferRequest{
		OperationID: op.ID,
		UserID:      op.UserID,
		FromChain:   from,
		ToChain:     to,
		Token:       in.token,
		Amount:      in.amount,
	})
	if err != nil {
		return nil, err
	}
	if transfer.Status.IsFailure() {
		if transfer.ErrorMessage != "" {
			return nil, fmt.Errorf("bridge transfer %s %s: %s", transfer.TransactionID, transfer.Status, transfer.ErrorMessage)
		}
		return nil, fmt.Errorf("bridge transfer %s %s", transfer.TransactionID, transfer.Status)
	}

	op.BridgeTransactionID = transfer.TransactionID
	if transfer.OperationHash != "" {
		op.BridgeOperationHash = transfer.OperationHash
	}

	received := transfer.OutputAmount
	if !received.IsPositive() {
		received = in.amount.Sub(transfer.Fee)
	}
	out := funds{token: in.token, amount: received}

	fee := transfer.Fee
	return &stepOutcome{
		update: entities.StepUpdate{
			ChainID:         &to,
			TransactionHash: &transfer.TransactionHash,
			BlockNumber:     transfer.BlockNumber,
			Confirmations:   transfer.Confirmations,
			GasCost:         &fee,
			InputToken:      &in.token,
			InputAmount:     &in.amount,
			OutputToken:     &out.token,
			OutputAmount:    &out.amount,
			Metadata: map[string]interface{}{
				"bridge_transaction_id": transfer.TransactionID,
				"bridge_status":         string(transfer.Status),
				"from_chain":            from,
				"to_chain":              to,
			},
		},
		out: out,
	}, nil
}

func (s *Service) protocolStep(ctx context.Context, op *entities.Operation, step *entities.OperationStep, in funds) (*stepOutcome, error) {
	protocol := op.Protocol
	if p, ok := step.Metadata["protocol"].(string); ok && p != "" {
		protocol = p
	}
	action := step.Action()
	if action == "" {
		action = op.ProtocolAction
	}

	result, err := s.protocols.Execute(ctx, &entities.ProtocolActionRequest{
		OperationID: op.ID,
		UserID:      op.UserID,
		Chain:       op.TargetChain,
		Protocol:    protocol,
		Action:      action,
		Token:       in.token,
		Amount:      in.amount,
		OutputToken: op.OutputToken,
		Metadata:    map[string]interface{}{"protocol_action": op.ProtocolAction},
	})
	if err != nil {
		return nil, err
	}

	out := funds{token: result.OutputToken, amount: result.OutputAmount}
	if out.token == "" {
		out.token = in.token
	}
	if !out.amount.IsPositive() {
		out.amount = in.amount
	}

	return &stepOutcome{
		update: entities.StepUpdate{
			ChainID:         &op.TargetChain,
			TransactionHash: &result.TransactionHash,
			BlockNumber:     result.BlockNumber,
			GasUsed:         &result.GasUsed,
			GasCost:         &result.GasCost,
			InputToken:      &in.token,
			InputAmount:     &in.amount,
			OutputToken:     &out.token,
			OutputAmount:    &out.amount,
			Metadata:        map[string]interface{}{"protocol": protocol},
		},
		out: out,
	}, nil
}

// fundsBefore derives the funds entering step index from the operation input and completed step outputs
func (s *Service) fundsBefore(op *entities.Operation, index int) funds {
	current := funds{token: op.InputToken, amount: op.InputAmount}
	for i := 0; i < index && i < len(op.Steps); i++ {
		current = fundsAfter(op.Steps[i], current)
	}
	return current
}

func fundsAfter(step *entities.OperationStep, in funds) funds {
	if step.Status != entities.StepStatusCompleted {
		return in
	}
	out := in
	if step.OutputToken != "" {
		out.token = step.OutputToken
	}
	if step.OutputAmount.Valid {
		out.amount = step.OutputAmount.Decimal
	}
	return out
}

func totalFees(op *entities.Operation) decimal.Decimal {
	total := decimal.Zero
	for _, step := range op.Steps {
		if step.GasCost.Valid {
			total = total.Add(step.GasCost.Decimal)
		}
	}
	return total
}
