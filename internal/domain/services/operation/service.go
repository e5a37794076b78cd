package operation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/repositories"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var nowUTC = func() time.Time { return time.Now().UTC() }

// BridgeTransport moves funds between chains
type BridgeTransport interface {
	InitiateBridge(ctx context.Context, req *entities.BridgeTransferRequest) (*entities.BridgeTransfer, error)
	GetBridgeStatus(ctx context.Context, transactionID string) (*entities.BridgeTransfer, error)
	CancelBridge(ctx context.Context, transactionID string) error
}

// ProtocolExecutor executes protocol actions on the target chain
type ProtocolExecutor interface {
	Execute(ctx context.Context, req *entities.ProtocolActionRequest) (*entities.ProtocolActionResult, error)
}

// Notifier delivers user notifications
type Notifier interface {
	Notify(ctx context.Context, notification *entities.Notification) error
}

// AnalyticsRecorder records operation lifecycle events
type AnalyticsRecorder interface {
	RecordOperationCreated(ctx context.Context, op *entities.Operation) error
	RecordOperationCompleted(ctx context.Context, op *entities.Operation) error
	RecordOperationFailed(ctx context.Context, op *entities.Operation) error
}

// Service creates and drives cross-chain operations
type Service struct {
	repo      repositories.OperationRepository
	bridge    BridgeTransport
	protocols ProtocolExecutor
	notifier  Notifier
	analytics AnalyticsRecorder
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService creates a new operation service
func NewService(
	repo repositories.OperationRepository,
	bridge BridgeTransport,
	protocols ProtocolExecutor,
	notifier Notifier,
	analytics AnalyticsRecorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		bridge:    bridge,
		protocols: protocols,
		notifier:  notifier,
		analytics: analytics,
		logger:    logger,
		tracer:    otel.Tracer("operation-service"),
	}
}

// CreateOperation builds an operation, expands its step template and persists it. Execution is not started.
func (s *Service) CreateOperation(ctx context.Context, params entities.NewOperationParams) (*entities.Operation, error) {
	op, err := entities.NewOperation(params)
	if err != nil {
		return nil, err
	}
	if err := op.ExpandSteps(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("create operation: %w", err)
	}

	s.logger.Info("Operation created",
		zap.String("operation_id", op.ID.String()),
		zap.String("user_id", op.UserID.String()),
		zap.String("operation_type", string(op.OperationType)),
		zap.String("source_chain", op.SourceChain),
		zap.String("target_chain", op.TargetChain),
		zap.String("input_amount", op.InputAmount.String()),
		zap.Int("steps", len(op.Steps)))

	s.notify(ctx, op, entities.NotificationOperationStarted, "Operation started",
		fmt.Sprintf("Your %s of %s %s has been created", humanType(op.OperationType), op.InputAmount.String(), op.InputToken))
	if s.analytics != nil {
		if err := s.analytics.RecordOperationCreated(ctx, op); err != nil {
			s.logger.Warn("Failed to record operation created", zap.String("operation_id", op.ID.String()), zap.Error(err))
		}
	}

	return op, nil
}

// GetOperation retrieves an operation by ID
func (s *Service) GetOperation(ctx context.Context, id uuid.UUID) (*entities.Operation, error) {
	return s.repo.GetByID(ctx, id)
}

// GetUserOperations lists a user's operations newest first
func (s *Service) GetUserOperations(ctx context.Context, userID uuid.UUID, filter entities.OperationFilter, limit, offset int) ([]*entities.Operation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	ops, err := s.repo.ListByUser(ctx, userID, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}

// GetOperationStatus returns a progress snapshot with an estimate of the remaining time in seconds
func (s *Service) GetOperationStatus(ctx context.Context, id uuid.UUID) (*entities.OperationStatusView, error) {
	op, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &entities.OperationStatusView{
		Status:      op.Status,
		CurrentStep: op.CurrentStepIndex,
		TotalSteps:  len(op.Steps),
		Progress:    op.ProgressPercentage(),
	}

	if op.Status.IsInProgress() && view.Progress > 0 && op.StartedAt != nil {
		elapsed := time.Since(*op.StartedAt).Seconds()
		estimatedTotal := elapsed / (float64(view.Progress) / 100)
		remaining := int(math.Round(math.Max(0, estimatedTotal-elapsed)))
		view.EstimatedTimeRemaining = &remaining
	} else if op.EstimatedTime != nil {
		remaining := *op.EstimatedTime
		view.EstimatedTimeRemaining = &remaining
	}

	return view, nil
}

// StartOperation validates the operation can run and executes it in the background
func (s *Service) StartOperation(ctx context.Context, id uuid.UUID) error {
	op, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if op.IsCompleted() {
		return domainerrors.InvalidStateError("operation", "operation already finished")
	}

	execCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.ExecuteOperation(execCtx, id); err != nil {
			s.logger.Error("Background operation execution failed",
				zap.String("operation_id", id.String()),
				zap.Error(err))
		}
	}()
	return nil
}

// CancelOperation marks a running operation failed. An in-flight step is not interrupted;
// execution stops at the next step boundary.
func (s *Service) CancelOperation(ctx context.Context, id, userID uuid.UUID) (*entities.Operation, error) {
	op, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !op.IsOwnedBy(userID) {
		return nil, domainerrors.UnauthorizedError("operation does not belong to user")
	}
	if op.IsCompleted() {
		return nil, domainerrors.InvalidStateError("operation", fmt.Sprintf("cannot cancel operation in %s state", op.Status))
	}

	if op.BridgeTransactionID != "" {
		if err := s.bridge.CancelBridge(ctx, op.BridgeTransactionID); err != nil {
			s.logger.Warn("Bridge cancellation failed",
				zap.String("operation_id", op.ID.String()),
				zap.String("bridge_transaction_id", op.BridgeTransactionID),
				zap.Error(err))
		}
	}

	op.SetError(entities.CancelledErrorMessage, entities.CancelledErrorCode)
	if err := s.repo.UpdateInFlight(ctx, op); err != nil {
		return nil, fmt.Errorf("update cancelled operation: %w", err)
	}

	s.logger.Info("Operation cancelled",
		zap.String("operation_id", op.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("current_step", op.CurrentStepIndex))

	s.notify(ctx, op, entities.NotificationOperationCancelled, "Operation cancelled",
		fmt.Sprintf("Your %s has been cancelled", humanType(op.OperationType)))

	return op, nil
}

// RetryFailedOperation rebuilds a failed operation from its template and executes it again
func (s *Service) RetryFailedOperation(ctx context.Context, id, userID uuid.UUID) (*entities.Operation, error) {
	op, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !op.IsOwnedBy(userID) {
		return nil, domainerrors.UnauthorizedError("operation does not belong to user")
	}
	if op.Status != entities.OperationStatusFailed {
		return nil, domainerrors.InvalidStateError("operation", fmt.Sprintf("cannot retry operation in %s state", op.Status))
	}
	if !op.CanRetry {
		return nil, domainerrors.InvalidStateError("operation", "retry limit reached")
	}

	if err := op.ResetForRetry(); err != nil {
		return nil, err
	}
	op.IncrementRetryCount()
	if err := s.repo.Update(ctx, op); err != nil {
		return nil, fmt.Errorf("update retried operation: %w", err)
	}

	s.logger.Info("Retrying operation",
		zap.String("operation_id", op.ID.String()),
		zap.Int("retry_count", op.RetryCount),
		zap.Bool("can_retry", op.CanRetry))

	return s.ExecuteOperation(ctx, id)
}

func (s *Service) notify(ctx context.Context, op *entities.Operation, notificationType entities.NotificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	n := entities.NewOperationNotification(op, notificationType, title, message)
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Failed to send operation notification",
			zap.String("operation_id", op.ID.String()),
			zap.String("type", string(notificationType)),
			zap.Error(err))
	}
}

func (s *Service) recordFailure(ctx context.Context, op *entities.Operation) {
	s.notify(ctx, op, entities.NotificationOperationFailed, "Operation failed", op.ErrorMessage)
	if s.analytics != nil {
		if err := s.analytics.RecordOperationFailed(ctx, op); err != nil {
			s.logger.Warn("Failed to record operation failure", zap.String("operation_id", op.ID.String()), zap.Error(err))
		}
	}
}

func humanType(t entities.OperationType) string {
	switch t {
	case entities.OperationTypeCrossChainSwap:
		return "cross-chain swap"
	case entities.OperationTypeCrossChainLending:
		return "cross-chain lending"
	case entities.OperationTypeCrossChainStaking:
		return "cross-chain staking"
	case entities.OperationTypeCrossChainYieldFarming:
		return "cross-chain yield farming"
	}
	return string(t)
}
