package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
)

// QuoteRepository defines the interface for quote persistence.
// GetByID returns a not-found domain error when the quote does not exist.
type QuoteRepository interface {
	Create(ctx context.Context, quote *entities.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Quote, error)
	ListByUser(ctx context.Context, userID uuid.UUID, includeExpired bool, limit int) ([]*entities.Quote, error)
	// ListActive returns unexpired, unexecuted quotes of a user
	ListActive(ctx context.Context, userID uuid.UUID) ([]*entities.Quote, error)
	Update(ctx context.Context, quote *entities.Quote) error
	// MarkExecuted persists the execution fields only while the stored quote is unexecuted.
	// It returns an invalid-state domain error when the quote was already executed.
	MarkExecuted(ctx context.Context, quote *entities.Quote) error
	// ReleaseExecution clears the execution fields of a quote still linked to operationID
	ReleaseExecution(ctx context.Context, id, operationID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteExpiredBefore prunes unexecuted quotes that expired before cutoff
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
