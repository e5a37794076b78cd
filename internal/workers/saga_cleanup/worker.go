package saga_cleanup

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// QuotePruner deletes quotes that expired unexecuted
type QuotePruner interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OperationPruner deletes finished operations
type OperationPruner interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Schedule           string
	QuoteRetention     time.Duration
	OperationRetention time.Duration
}

// Worker prunes expired quotes and old finished operations on a cron schedule
type Worker struct {
	config     Config
	quotes     QuotePruner
	operations OperationPruner
	cron       *cron.Cron
	logger     *zap.Logger
	now        func() time.Time
}

func NewWorker(config Config, quotes QuotePruner, operations OperationPruner, logger *zap.Logger) *Worker {
	if config.Schedule == "" {
		config.Schedule = "0 3 * * *"
	}
	return &Worker{
		config:     config,
		quotes:     quotes,
		operations: operations,
		cron:       cron.New(),
		logger:     logger,
		now:        time.Now,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		w.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Saga cleanup worker started", zap.String("schedule", w.config.Schedule))
	return nil
}

// RunOnce prunes both tables; a zero retention disables that table
func (w *Worker) RunOnce(ctx context.Context) (quotes, operations int64) {
	now := w.now()

	if w.config.QuoteRetention > 0 {
		n, err := w.quotes.DeleteExpiredBefore(ctx, now.Add(-w.config.QuoteRetention))
		if err != nil {
			w.logger.Error("Failed to prune expired quotes", zap.Error(err))
		} else {
			quotes = n
		}
	}

	if w.config.OperationRetention > 0 {
		n, err := w.operations.DeleteFinishedBefore(ctx, now.Add(-w.config.OperationRetention))
		if err != nil {
			w.logger.Error("Failed to prune finished operations", zap.Error(err))
		} else {
			operations = n
		}
	}

	w.logger.Info("Saga cleanup completed",
		zap.Int64("quotes_deleted", quotes),
		zap.Int64("operations_deleted", operations))
	return quotes, operations
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Saga cleanup worker stopped")
}
