package contract

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/repository/specification"
)

type AppointmentCoverageRepository interface {
	Create(ctx context.Context, coverage *entity.AppointmentCoverage) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AppointmentCoverage, error)

	// MarkRestored persists a reversal. It only applies to a record not yet restored.
	MarkRestored(ctx context.Context, coverage *entity.AppointmentCoverage) error
}
