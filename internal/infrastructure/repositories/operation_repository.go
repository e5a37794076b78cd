package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
	domainrepos "github.com/rail-service/crosschain_orchestrator/internal/domain/repositories"
)

const operationColumns = `id, user_id, conversation_id, operation_type, source_chain, target_chain,
	input_token, input_amount, output_token, output_amount, protocol, protocol_action,
	bridge_transaction_id, bridge_operation_hash, estimated_time, actual_time, started_at,
	completed_at, total_fees, steps, current_step, status, error_message, error_code,
	retry_count, last_retry_at, can_retry, created_at, updated_at`

// OperationRepository persists operations in Postgres; steps are stored as JSONB
type OperationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOperationRepository(db *sqlx.DB, logger *zap.Logger) domainrepos.OperationRepository {
	return &OperationRepository{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("operation-repository"),
	}
}

func (r *OperationRepository) Create(ctx context.Context, op *entities.Operation) error {
	ctx, span := r.tracer.Start(ctx, "repository.create_operation", trace.WithAttributes(
		attribute.String("operation_id", op.ID.String()),
		attribute.String("operation_type", string(op.OperationType)),
	))
	defer span.End()

	query := `INSERT INTO operations (` + operationColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`

	_, err := r.db.ExecContext(ctx, query,
		op.ID, op.UserID, op.ConversationID, op.OperationType, op.SourceChain, op.TargetChain,
		op.InputToken, op.InputAmount, op.OutputToken, op.OutputAmount, op.Protocol, op.ProtocolAction,
		op.BridgeTransactionID, op.BridgeOperationHash, op.EstimatedTime, op.ActualTime, op.StartedAt,
		op.CompletedAt, op.TotalFees, op.Steps, op.CurrentStepIndex, op.Status, op.ErrorMessage, op.ErrorCode,
		op.RetryCount, op.LastRetryAt, op.CanRetry, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to create operation", zap.Error(err), zap.String("operation_id", op.ID.String()))
		return fmt.Errorf("failed to create operation: %w", err)
	}
	return nil
}

func (r *OperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Operation, error) {
	ctx, span := r.tracer.Start(ctx, "repository.get_operation", trace.WithAttributes(
		attribute.String("operation_id", id.String()),
	))
	defer span.End()

	var op entities.Operation
	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = $1`
	if err := r.db.GetContext(ctx, &op, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("OPERATION")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get operation %s: %w", id, err)
	}
	return &op, nil
}

func (r *OperationRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter entities.OperationFilter, limit, offset int) ([]*entities.Operation, error) {
	ctx, span := r.tracer.Start(ctx, "repository.list_operations", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	))
	defer span.End()

	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}
	add := func(condition string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.OperationType != nil {
		add("operation_type = $%d", *filter.OperationType)
	}
	if filter.SourceChain != "" {
		add("source_chain = $%d", filter.SourceChain)
	}
	if filter.TargetChain != "" {
		add("target_chain = $%d", filter.TargetChain)
	}
	if filter.Protocol != "" {
		add("protocol = $%d", filter.Protocol)
	}
	if filter.CreatedFrom != nil {
		add("created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		add("created_at <= $%d", *filter.CreatedTo)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM operations WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		operationColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	ops := []*entities.Operation{}
	if err := r.db.SelectContext(ctx, &ops, query, args...); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

const updateOperationQuery = `
	UPDATE operations SET
		output_token = $2, output_amount = $3, protocol = $4, protocol_action = $5,
		bridge_transaction_id = $6, bridge_operation_hash = $7, estimated_time = $8,
		actual_time = $9, started_at = $10, completed_at = $11, total_fees = $12,
		steps = $13, current_step = $14, status = $15, error_message = $16, error_code = $17,
		retry_count = $18, last_retry_at = $19, can_retry = $20, updated_at = $21
	WHERE id = $1`

func updateOperationArgs(op *entities.Operation) []interface{} {
	return []interface{}{
		op.ID, op.OutputToken, op.OutputAmount, op.Protocol, op.ProtocolAction,
		op.BridgeTransactionID, op.BridgeOperationHash, op.EstimatedTime,
		op.ActualTime, op.StartedAt, op.CompletedAt, op.TotalFees,
		op.Steps, op.CurrentStepIndex, op.Status, op.ErrorMessage, op.ErrorCode,
		op.RetryCount, op.LastRetryAt, op.CanRetry, op.UpdatedAt,
	}
}

func (r *OperationRepository) Update(ctx context.Context, op *entities.Operation) error {
	ctx, span := r.tracer.Start(ctx, "repository.update_operation", trace.WithAttributes(
		attribute.String("operation_id", op.ID.String()),
		attribute.String("status", string(op.Status)),
	))
	defer span.End()

	result, err := r.db.ExecContext(ctx, updateOperationQuery, updateOperationArgs(op)...)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to update operation", zap.Error(err), zap.String("operation_id", op.ID.String()))
		return fmt.Errorf("failed to update operation: %w", err)
	}
	return requireAffected(result, "OPERATION")
}

func (r *OperationRepository) UpdateInFlight(ctx context.Context, op *entities.Operation) error {
	ctx, span := r.tracer.Start(ctx, "repository.update_operation_in_flight", trace.WithAttributes(
		attribute.String("operation_id", op.ID.String()),
		attribute.String("status", string(op.Status)),
	))
	defer span.End()

	args := append(updateOperationArgs(op), entities.OperationStatusCompleted, entities.OperationStatusFailed)
	result, err := r.db.ExecContext(ctx, updateOperationQuery+` AND status NOT IN ($22, $23)`, args...)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to update operation", zap.Error(err), zap.String("operation_id", op.ID.String()))
		return fmt.Errorf("failed to update operation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status entities.OperationStatus
	if err := r.db.GetContext(ctx, &status, `SELECT status FROM operations WHERE id = $1`, op.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainerrors.NotFoundError("OPERATION")
		}
		return fmt.Errorf("failed to read operation status: %w", err)
	}
	span.SetAttributes(attribute.String("stored_status", string(status)))
	return domainerrors.InvalidStateError("operation", fmt.Sprintf("operation already %s", status))
}

func (r *OperationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return requireAffected(result, "OPERATION")
}

func (r *OperationRepository) FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]*entities.Operation, error) {
	ctx, span := r.tracer.Start(ctx, "repository.find_stuck_operations")
	defer span.End()

	query := `SELECT ` + operationColumns + ` FROM operations
		WHERE status NOT IN ($1, $2) AND started_at IS NOT NULL AND updated_at < $3
		ORDER BY updated_at ASC LIMIT $4`

	ops := []*entities.Operation{}
	err := r.db.SelectContext(ctx, &ops, query,
		entities.OperationStatusCompleted, entities.OperationStatusFailed, olderThan, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find stuck operations: %w", err)
	}
	span.SetAttributes(attribute.Int("count", len(ops)))
	return ops, nil
}

func (r *OperationRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM operations WHERE status IN ($1, $2) AND completed_at < $3`
	result, err := r.db.ExecContext(ctx, query,
		entities.OperationStatusCompleted, entities.OperationStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune operations: %w", err)
	}
	return result.RowsAffected()
}

func requireAffected(result sql.Result, resource string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domainerrors.NotFoundError(resource)
	}
	return nil
}
