package operation_reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/operation"
)

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]*entities.Operation, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Operation), args.Error(1)
}

type MockOperations struct {
	mock.Mock
}

func (m *MockOperations) ReconcileOperation(ctx context.Context, id uuid.UUID) (operation.ReconcileAction, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(operation.ReconcileAction), args.Error(1)
}

type MockLease struct {
	mock.Mock
}

func (m *MockLease) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, token, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLease) Release(ctx context.Context, key, token string) error {
	return m.Called(ctx, key, token).Error(0)
}

func newTestReconciler(t *testing.T, finder *MockFinder, ops *MockOperations, lease Lease) *Reconciler {
	r, err := NewReconciler(DefaultConfig(), finder, ops, lease, zap.NewNop())
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r
}

func TestRunOnce_ClassifiesActions(t *testing.T) {
	finder := new(MockFinder)
	ops := new(MockOperations)
	r := newTestReconciler(t, finder, ops, nil)

	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	cutoff := time.Date(2026, 5, 1, 9, 55, 0, 0, time.UTC)
	finder.On("FindStuck", mock.Anything, cutoff, 50).Return([]*entities.Operation{{ID: a}, {ID: b}, {ID: c}, {ID: d}}, nil)

	ops.On("ReconcileOperation", mock.Anything, a).Return(operation.ReconcileActionResumed, nil)
	ops.On("ReconcileOperation", mock.Anything, b).Return(operation.ReconcileActionFailed, nil)
	ops.On("ReconcileOperation", mock.Anything, c).Return(operation.ReconcileActionWaiting, nil)
	ops.On("ReconcileOperation", mock.Anything, d).Return(operation.ReconcileActionNone, errors.New("bridge unreachable"))

	result := r.RunOnce(context.Background())
	assert.Equal(t, RunResult{Candidates: 4, Resumed: 1, Failed: 1, Waiting: 1, Errors: 1}, result)
	finder.AssertExpectations(t)
	ops.AssertExpectations(t)
}

func TestRunOnce_SkipsLeasedOperations(t *testing.T) {
	finder := new(MockFinder)
	ops := new(MockOperations)
	lease := new(MockLease)
	r := newTestReconciler(t, finder, ops, lease)

	mine, theirs := uuid.New(), uuid.New()
	finder.On("FindStuck", mock.Anything, mock.Anything, mock.Anything).Return([]*entities.Operation{{ID: mine}, {ID: theirs}}, nil)

	lease.On("Acquire", mock.Anything, "operation:reconcile:"+mine.String(), r.instanceID, 10*time.Minute).Return(true, nil)
	lease.On("Acquire", mock.Anything, "operation:reconcile:"+theirs.String(), r.instanceID, 10*time.Minute).Return(false, nil)
	lease.On("Release", mock.Anything, "operation:reconcile:"+mine.String(), r.instanceID).Return(nil).Once()
	ops.On("ReconcileOperation", mock.Anything, mine).Return(operation.ReconcileActionResumed, nil)

	result := r.RunOnce(context.Background())
	assert.Equal(t, 1, result.Resumed)
	assert.Equal(t, 1, result.Skipped)
	ops.AssertNotCalled(t, "ReconcileOperation", mock.Anything, theirs)
	lease.AssertExpectations(t)
}

func TestRunOnce_FinderError(t *testing.T) {
	finder := new(MockFinder)
	ops := new(MockOperations)
	r := newTestReconciler(t, finder, ops, nil)

	finder.On("FindStuck", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	assert.Equal(t, RunResult{}, r.RunOnce(context.Background()))
	ops.AssertNotCalled(t, "ReconcileOperation", mock.Anything, mock.Anything)
}

func TestStartAndShutdown(t *testing.T) {
	finder := new(MockFinder)
	ops := new(MockOperations)
	r := newTestReconciler(t, finder, ops, nil)
	r.config.Interval = time.Hour

	finder.On("FindStuck", mock.Anything, mock.Anything, mock.Anything).Return([]*entities.Operation{}, nil)

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Shutdown(time.Second))
	finder.AssertCalled(t, "FindStuck", mock.Anything, mock.Anything, mock.Anything)
}
