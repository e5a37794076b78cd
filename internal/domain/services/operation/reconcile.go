package operation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
)

// BridgeFailedErrorCode is recorded when the bridge transport reports a linked transfer as failed
const BridgeFailedErrorCode = "BRIDGE_TRANSFER_FAILED"

// ReconcileAction reports what reconciliation did with an operation
type ReconcileAction string

const (
	ReconcileActionNone    ReconcileAction = "none"
	ReconcileActionWaiting ReconcileAction = "waiting"
	ReconcileActionResumed ReconcileAction = "resumed"
	ReconcileActionFailed  ReconcileAction = "failed"
)

// ReconcileOperation advances an operation that stopped making progress.
// A failed linked bridge transfer fails the operation, a settled or missing one resumes execution,
// and a pending one is left alone.
func (s *Service) ReconcileOperation(ctx context.Context, id uuid.UUID) (ReconcileAction, error) {
	op, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ReconcileActionNone, err
	}
	if op.IsCompleted() {
		return ReconcileActionNone, nil
	}
	// never started: execution is only begun by an explicit execute or start call
	if op.Status == entities.OperationStatusInitiated && op.StartedAt == nil {
		return ReconcileActionNone, nil
	}

	if op.BridgeTransactionID == "" {
		return s.resume(ctx, op)
	}

	transfer, err := s.bridge.GetBridgeStatus(ctx, op.BridgeTransactionID)
	if err != nil {
		return ReconcileActionNone, fmt.Errorf("get bridge status: %w", err)
	}

	switch {
	case transfer.Status.IsFailure():
		reason := transfer.ErrorMessage
		if reason == "" {
			reason = string(transfer.Status)
		}
		op.SetError(fmt.Sprintf("bridge transfer %s failed: %s", op.BridgeTransactionID, reason), BridgeFailedErrorCode)
		if err := s.repo.UpdateInFlight(ctx, op); err != nil {
			return ReconcileActionNone, fmt.Errorf("update failed operation: %w", err)
		}
		s.logger.Warn("Operation failed by reconciliation",
			zap.String("operation_id", op.ID.String()),
			zap.String("bridge_transaction_id", op.BridgeTransactionID),
			zap.String("bridge_status", string(transfer.Status)))
		s.recordFailure(ctx, op)
		return ReconcileActionFailed, nil
	case transfer.Status == entities.BridgeTransferStatusCompleted:
		return s.resume(ctx, op)
	default:
		s.logger.Debug("Bridge transfer still pending",
			zap.String("operation_id", op.ID.String()),
			zap.String("bridge_transaction_id", op.BridgeTransactionID))
		return ReconcileActionWaiting, nil
	}
}

func (s *Service) resume(ctx context.Context, op *entities.Operation) (ReconcileAction, error) {
	s.logger.Info("Resuming stalled operation",
		zap.String("operation_id", op.ID.String()),
		zap.Int("current_step", op.CurrentStepIndex),
		zap.String("status", string(op.Status)))

	if _, err := s.ExecuteOperation(ctx, op.ID); err != nil {
		return ReconcileActionResumed, err
	}
	return ReconcileActionResumed, nil
}
