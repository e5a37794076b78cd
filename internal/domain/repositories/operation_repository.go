package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
)

// OperationRepository defines the interface for cross-chain operation persistence.
// GetByID returns a not-found domain error when the operation does not exist.
type OperationRepository interface {
	Create(ctx context.Context, op *entities.Operation) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Operation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter entities.OperationFilter, limit, offset int) ([]*entities.Operation, error)
	Update(ctx context.Context, op *entities.Operation) error
	// UpdateInFlight writes op only while the stored operation is not yet completed or failed.
	// It returns an invalid-state domain error when the stored operation already finished.
	UpdateInFlight(ctx context.Context, op *entities.Operation) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindStuck returns non-terminal operations not updated since olderThan, oldest first
	FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]*entities.Operation, error)
	// DeleteFinishedBefore prunes terminal operations completed before cutoff
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
