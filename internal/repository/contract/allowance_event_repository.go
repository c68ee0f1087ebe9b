package contract

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/repository/specification"

	"github.com/google/uuid"
)

// AllowanceEventRepository is append-only.
type AllowanceEventRepository interface {
	Append(ctx context.Context, event *entity.AllowanceEvent) error
	FindByCycle(ctx context.Context, cycleId uuid.UUID, specs ...specification.Specification) ([]*entity.AllowanceEvent, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AllowanceEvent, error)
}
