package analytics

import (
	"context"

	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/pkg/metrics"
)

// OperationAnalyticsService turns operation and quote lifecycle events into metrics and log lines
type OperationAnalyticsService struct {
	logger *zap.Logger
}

func NewOperationAnalyticsService(logger *zap.Logger) *OperationAnalyticsService {
	return &OperationAnalyticsService{logger: logger}
}

func (s *OperationAnalyticsService) RecordOperationCreated(ctx context.Context, op *entities.Operation) error {
	metrics.OperationsCreated.WithLabelValues(string(op.OperationType)).Inc()

	s.logger.Info("Operation created",
		zap.String("operation_id", op.ID.String()),
		zap.String("user_id", op.UserID.String()),
		zap.String("operation_type", string(op.OperationType)),
		zap.String("source_chain", op.SourceChain),
		zap.String("target_chain", op.TargetChain),
		zap.String("input_amount", op.InputAmount.String()))
	return nil
}

func (s *OperationAnalyticsService) RecordOperationCompleted(ctx context.Context, op *entities.Operation) error {
	opType := string(op.OperationType)
	metrics.OperationsCompleted.WithLabelValues(opType).Inc()
	s.observeDuration(op)

	fields := []zap.Field{
		zap.String("operation_id", op.ID.String()),
		zap.String("operation_type", opType),
		zap.Int("steps", len(op.Steps)),
	}
	if op.OutputAmount.Valid {
		fields = append(fields, zap.String("output_amount", op.OutputAmount.Decimal.String()))
	}
	if op.TotalFees.Valid {
		fields = append(fields, zap.String("total_fees", op.TotalFees.Decimal.String()))
	}
	s.logger.Info("Operation completed", fields...)
	return nil
}

func (s *OperationAnalyticsService) RecordOperationFailed(ctx context.Context, op *entities.Operation) error {
	code := op.ErrorCode
	if code == "" {
		code = "unknown"
	}
	metrics.OperationsFailed.WithLabelValues(string(op.OperationType), code).Inc()
	s.observeDuration(op)

	s.logger.Warn("Operation failed",
		zap.String("operation_id", op.ID.String()),
		zap.String("operation_type", string(op.OperationType)),
		zap.String("error_code", code),
		zap.String("error_message", op.ErrorMessage),
		zap.Int("retry_count", op.RetryCount),
		zap.Bool("can_retry", op.CanRetry))
	return nil
}

func (s *OperationAnalyticsService) RecordQuoteGenerated(ctx context.Context, quote *entities.Quote) error {
	metrics.QuotesGenerated.WithLabelValues(quote.Route.Provider).Inc()
	metrics.QuoteAlternatives.Observe(float64(len(quote.Alternatives)))

	s.logger.Debug("Quote generated",
		zap.String("quote_id", quote.ID.String()),
		zap.String("provider", quote.Route.Provider),
		zap.Int("alternatives", len(quote.Alternatives)),
		zap.String("estimated_output", quote.Route.EstimatedOutput.String()))
	return nil
}

func (s *OperationAnalyticsService) observeDuration(op *entities.Operation) {
	if op.ActualTime == nil {
		return
	}
	seconds := float64(*op.ActualTime) / 1000
	metrics.OperationDuration.WithLabelValues(string(op.OperationType), string(op.Status)).Observe(seconds)
}
