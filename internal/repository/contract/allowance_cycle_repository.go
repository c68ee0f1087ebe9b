package contract

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/repository/specification"

	"github.com/google/uuid"
)

type AllowanceCycleRepository interface {
	Create(ctx context.Context, cycle *entity.AllowanceCycle) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AllowanceCycle, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AllowanceCycle, error)

	// FindActiveForUpdate row-locks the active cycle until the surrounding transaction ends.
	FindActiveForUpdate(ctx context.Context, subscriptionId uuid.UUID) (*entity.AllowanceCycle, error)

	// UpdateBalance writes used/remaining only if the stored version still matches
	// cycle.Version, then bumps it. A lost race returns entity.ErrConcurrencyConflict.
	UpdateBalance(ctx context.Context, cycle *entity.AllowanceCycle) error

	Deactivate(ctx context.Context, subscriptionId uuid.UUID) error
}
