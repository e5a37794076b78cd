package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const quoteColumns = `id, user_id, from_chain, to_chain, from_token, to_token, amount, operation_type,
	route, alternatives, expires_at, is_executed, executed_at, operation_id, metadata, created_at, updated_at`

// QuoteRepository persists quotes in Postgres; routes and metadata are stored as JSONB
type QuoteRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewQuoteRepository(db *sqlx.DB, logger *zap.Logger) domainrepos.QuoteRepository {
	return &QuoteRepository{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("quote-repository"),
		now:    time.Now,
	}
}

func (r *QuoteRepository) Create(ctx context.Context, q *entities.Quote) error {
	ctx, span := r.tracer.Start(ctx, "repository.create_quote", trace.WithAttributes(
		attribute.String("quote_id", q.ID.String()),
		attribute.String("provider", q.Route.Provider),
	))
	defer span.End()

	query := `INSERT INTO quotes (` + quoteColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		q.ID, q.UserID, q.FromChain, q.ToChain, q.FromToken, q.ToToken, q.Amount, q.OperationType,
		q.Route, q.Alternatives, q.ExpiresAt, q.IsExecuted, q.ExecutedAt, q.OperationID, q.Metadata,
		q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to create quote", zap.Error(err), zap.String("quote_id", q.ID.String()))
		return fmt.Errorf("failed to create quote: %w", err)
	}
	return nil
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Quote, error) {
	ctx, span := r.tracer.Start(ctx, "repository.get_quote")
	defer span.End()

	var q entities.Quote
	if err := r.db.GetContext(ctx, &q, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("QUOTE")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get quote %s: %w", id, err)
	}
	return &q, nil
}

func (r *QuoteRepository) ListByUser(ctx context.Context, userID uuid.UUID, includeExpired bool, limit int) ([]*entities.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE user_id = $1`
	args := []interface{}{userID}
	if !includeExpired {
		query += ` AND expires_at > $2`
		args = append(args, r.now())
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	quotes := []*entities.Quote{}
	if err := r.db.SelectContext(ctx, &quotes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, nil
}

func (r *QuoteRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*entities.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes
		WHERE user_id = $1 AND is_executed = FALSE AND expires_at > $2
		ORDER BY created_at DESC`

	quotes := []*entities.Quote{}
	if err := r.db.SelectContext(ctx, &quotes, query, userID, r.now()); err != nil {
		return nil, fmt.Errorf("failed to list active quotes: %w", err)
	}
	return quotes, nil
}

func (r *QuoteRepository) Update(ctx context.Context, q *entities.Quote) error {
	ctx, span := r.tracer.Start(ctx, "repository.update_quote", trace.WithAttributes(
		attribute.String("quote_id", q.ID.String()),
	))
	defer span.End()

	query := `
		UPDATE quotes SET
			expires_at = $2, is_executed = $3, executed_at = $4, operation_id = $5,
			metadata = $6, updated_at = $7
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		q.ID, q.ExpiresAt, q.IsExecuted, q.ExecutedAt, q.OperationID, q.Metadata, q.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update quote: %w", err)
	}
	return requireAffected(result, "QUOTE")
}

func (r *QuoteRepository) MarkExecuted(ctx context.Context, q *entities.Quote) error {
	ctx, span := r.tracer.Start(ctx, "repository.mark_quote_executed", trace.WithAttributes(
		attribute.String("quote_id", q.ID.String()),
	))
	defer span.End()

	query := `
		UPDATE quotes SET is_executed = TRUE, executed_at = $2, operation_id = $3, updated_at = $4
		WHERE id = $1 AND is_executed = FALSE`

	result, err := r.db.ExecContext(ctx, query, q.ID, q.ExecutedAt, q.OperationID, q.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark quote executed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM quotes WHERE id = $1)`, q.ID); err != nil {
		return fmt.Errorf("failed to check quote: %w", err)
	}
	if !exists {
		return domainerrors.NotFoundError("QUOTE")
	}
	return domainerrors.InvalidStateError("quote", "quote already executed")
}

func (r *QuoteRepository) ReleaseExecution(ctx context.Context, id, operationID uuid.UUID) error {
	query := `
		UPDATE quotes SET is_executed = FALSE, executed_at = NULL, operation_id = NULL, updated_at = $3
		WHERE id = $1 AND operation_id = $2`

	if _, err := r.db.ExecContext(ctx, query, id, operationID, r.now()); err != nil {
		return fmt.Errorf("failed to release quote execution: %w", err)
	}
	return nil
}

func (r *QuoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	return requireAffected(result, "QUOTE")
}

func (r *QuoteRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM quotes WHERE is_executed = FALSE AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune quotes: %w", err)
	}
	return result.RowsAffected()
}
