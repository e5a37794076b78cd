package operation_reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/operation"
)

// Config holds configuration for the reconciliation worker
type Config struct {
	Enabled        bool
	Interval       time.Duration
	Threshold      time.Duration
	BatchSize      int
	MaxConcurrency int
	LeaseTTL       time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Interval:       time.Minute,
		Threshold:      5 * time.Minute,
		BatchSize:      50,
		MaxConcurrency: 5,
		LeaseTTL:       10 * time.Minute,
	}
}

// StuckOperationFinder lists operations that stopped making progress
type StuckOperationFinder interface {
	FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]*entities.Operation, error)
}

// OperationReconciler advances a single stuck operation
type OperationReconciler interface {
	ReconcileOperation(ctx context.Context, id uuid.UUID) (operation.ReconcileAction, error)
}

// Lease keeps two instances from reconciling the same operation at once
type Lease interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// Reconciler periodically resumes or fails operations whose bridge transfers settled while nobody was watching
type Reconciler struct {
	config     Config
	finder     StuckOperationFinder
	operations OperationReconciler
	lease      Lease
	instanceID string
	logger     *zap.Logger

	runsCounter       metric.Int64Counter
	actionsCounter    metric.Int64Counter
	failedCounter     metric.Int64Counter
	durationHistogram metric.Float64Histogram

	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	now            func() time.Time
}

// NewReconciler creates the worker; lease may be nil for single-instance deployments
func NewReconciler(config Config, finder StuckOperationFinder, operations OperationReconciler, lease Lease, logger *zap.Logger) (*Reconciler, error) {
	meter := otel.Meter("operation-reconciler")

	runsCounter, err := meter.Int64Counter("operation_reconciler.runs.total",
		metric.WithDescription("Total number of reconciliation runs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	actionsCounter, err := meter.Int64Counter("operation_reconciler.actions.total",
		metric.WithDescription("Reconciled operations by resulting action"))
	if err != nil {
		return nil, fmt.Errorf("failed to create actions counter: %w", err)
	}
	failedCounter, err := meter.Int64Counter("operation_reconciler.errors.total",
		metric.WithDescription("Total number of reconciliation errors"))
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	durationHistogram, err := meter.Float64Histogram("operation_reconciler.duration.seconds",
		metric.WithDescription("Reconciliation run duration in seconds"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		config:            config,
		finder:            finder,
		operations:        operations,
		lease:             lease,
		instanceID:        uuid.NewString(),
		logger:            logger,
		runsCounter:       runsCounter,
		actionsCounter:    actionsCounter,
		failedCounter:     failedCounter,
		durationHistogram: durationHistogram,
		shutdownCtx:       ctx,
		shutdownCancel:    cancel,
		now:               time.Now,
	}, nil
}

// Start begins the reconciliation loop
func (r *Reconciler) Start(ctx context.Context) error {
	if !r.config.Enabled {
		r.logger.Info("Operation reconciler is disabled")
		return nil
	}

	r.logger.Info("Starting operation reconciler",
		zap.Duration("interval", r.config.Interval),
		zap.Duration("threshold", r.config.Threshold),
		zap.Int("batch_size", r.config.BatchSize))

	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Shutdown stops the loop and waits for the current run up to timeout
func (r *Reconciler) Shutdown(timeout time.Duration) error {
	r.shutdownCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Operation reconciler shutdown complete")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdownCtx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunResult summarises one reconciliation pass
type RunResult struct {
	Candidates int
	Resumed    int
	Failed     int
	Waiting    int
	Skipped    int
	Errors     int
}

// RunOnce performs a single reconciliation pass
func (r *Reconciler) RunOnce(ctx context.Context) RunResult {
	start := time.Now()
	r.runsCounter.Add(ctx, 1)

	var result RunResult
	candidates, err := r.finder.FindStuck(ctx, r.now().Add(-r.config.Threshold), r.config.BatchSize)
	if err != nil {
		r.logger.Error("Failed to find stuck operations", zap.Error(err))
		r.failedCounter.Add(ctx, 1)
		return result
	}
	result.Candidates = len(candidates)

	var resumed, failed, waiting, skipped, errs int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.MaxConcurrency)

	for _, op := range candidates {
		id := op.ID
		g.Go(func() error {
			action, ok := r.reconcile(gctx, id)
			switch {
			case !ok:
				atomic.AddInt64(&errs, 1)
			case action == "":
				atomic.AddInt64(&skipped, 1)
			case action == operation.ReconcileActionResumed:
				atomic.AddInt64(&resumed, 1)
			case action == operation.ReconcileActionFailed:
				atomic.AddInt64(&failed, 1)
			case action == operation.ReconcileActionWaiting:
				atomic.AddInt64(&waiting, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Resumed, result.Failed = int(resumed), int(failed)
	result.Waiting, result.Skipped, result.Errors = int(waiting), int(skipped), int(errs)
	r.durationHistogram.Record(ctx, time.Since(start).Seconds())

	if result.Candidates > 0 {
		r.logger.Info("Reconciliation run completed",
			zap.Duration("duration", time.Since(start)),
			zap.Int("candidates", result.Candidates),
			zap.Int("resumed", result.Resumed),
			zap.Int("failed", result.Failed),
			zap.Int("waiting", result.Waiting),
			zap.Int("errors", result.Errors))
	}
	return result
}

// reconcile returns an empty action when another instance holds the lease
func (r *Reconciler) reconcile(ctx context.Context, id uuid.UUID) (operation.ReconcileAction, bool) {
	key := "operation:reconcile:" + id.String()
	if r.lease != nil {
		acquired, err := r.lease.Acquire(ctx, key, r.instanceID, r.config.LeaseTTL)
		if err != nil {
			r.logger.Warn("Failed to acquire reconciliation lease", zap.String("operation_id", id.String()), zap.Error(err))
			r.failedCounter.Add(ctx, 1)
			return "", false
		}
		if !acquired {
			return "", true
		}
		defer func() {
			if err := r.lease.Release(context.WithoutCancel(ctx), key, r.instanceID); err != nil {
				r.logger.Warn("Failed to release reconciliation lease", zap.String("operation_id", id.String()), zap.Error(err))
			}
		}()
	}

	action, err := r.operations.ReconcileOperation(ctx, id)
	if err != nil {
		r.logger.Error("Failed to reconcile operation", zap.String("operation_id", id.String()), zap.Error(err))
		r.failedCounter.Add(ctx, 1)
		return "", false
	}

	r.actionsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(action))))
	return action, true
}
