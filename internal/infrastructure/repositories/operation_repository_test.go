package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func sampleOperation(t *testing.T) *entities.Operation {
	op, err := entities.NewOperation(entities.NewOperationParams{
		UserID:        uuid.New(),
		OperationType: entities.OperationTypeCrossChainLending,
		SourceChain:   "solana",
		TargetChain:   "ethereum",
		InputToken:    "USDC",
		InputAmount:   "250",
		Protocol:      "lending",
	})
	require.NoError(t, err)
	return op
}

func TestOperationRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOperationRepository(db, zap.NewNop())
	op := sampleOperation(t)

	args := make([]driver.Value, 29)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	args[0] = op.ID
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operations")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), op))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOperationRepository(db, zap.NewNop())
	id := uuid.New()
	userID := uuid.New()
	now := time.Now().UTC()

	steps := `[{"id":"` + uuid.NewString() + `","step_type":"bridge_to_target","step_order":0,"step_name":"Bridge to target chain","status":"completed","metadata":{"action":"bridge"}}]`
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "operation_type", "source_chain", "target_chain", "input_token",
		"input_amount", "output_amount", "steps", "current_step", "status", "can_retry", "created_at", "updated_at",
	}).AddRow(
		id.String(), userID.String(), "cross_chain_staking", "solana", "ethereum", "USDC",
		"100", nil, []byte(steps), 0, "bridging_to_evm", true, now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta("FROM operations WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(rows)

	op, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, op.ID)
	assert.Equal(t, userID, op.UserID)
	assert.Equal(t, entities.OperationStatusBridgingToEVM, op.Status)
	assert.True(t, op.InputAmount.Equal(decimal.NewFromInt(100)))
	assert.False(t, op.OutputAmount.Valid)
	require.Len(t, op.Steps, 1)
	assert.Equal(t, entities.StepStatusCompleted, op.Steps[0].Status)
	assert.Equal(t, "bridge", op.Steps[0].Action())
}

func TestOperationRepository_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOperationRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM operations WHERE id = $1")).WillReturnError(sql.ErrNoRows)
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, domainerrors.IsNotFound(err))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE operations SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Update(context.Background(), sampleOperation(t))
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestOperationRepository_ListByUserFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOperationRepository(db, zap.NewNop())
	userID := uuid.New()
	status := entities.OperationStatusFailed

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND status = $2 AND source_chain = $3 ORDER BY created_at DESC LIMIT $4 OFFSET $5")).
		WithArgs(userID, "failed", "solana", 20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status"}).
			AddRow(uuid.NewString(), userID.String(), "failed"))

	ops, err := repo.ListByUser(context.Background(), userID, entities.OperationFilter{
		Status:      &status,
		SourceChain: "solana",
	}, 20, 40)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, entities.OperationStatusFailed, ops[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_FindStuckAndPrune(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOperationRepository(db, zap.NewNop())
	cutoff := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status NOT IN ($1, $2) AND started_at IS NOT NULL AND updated_at < $3")).
		WithArgs("completed", "failed", cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow(uuid.NewString(), "executing_protocol"))

	stuck, err := repo.FindStuck(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, entities.OperationStatusExecutingProtocol, stuck[0].Status)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM operations WHERE status IN ($1, $2) AND completed_at < $3")).
		WithArgs("completed", "failed", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteFinishedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_UpdateInFlight(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOperationRepository(db, zap.NewNop())
	op := sampleOperation(t)

	mock.ExpectExec(regexp.QuoteMeta("AND status NOT IN ($22, $23)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateInFlight(context.Background(), op))

	mock.ExpectExec(regexp.QuoteMeta("AND status NOT IN ($22, $23)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM operations WHERE id = $1")).
		WithArgs(op.ID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("failed"))
	err := repo.UpdateInFlight(context.Background(), op)
	assert.True(t, domainerrors.IsInvalidState(err))

	mock.ExpectExec(regexp.QuoteMeta("AND status NOT IN ($22, $23)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM operations WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)
	err = repo.UpdateInFlight(context.Background(), op)
	assert.True(t, domainerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
