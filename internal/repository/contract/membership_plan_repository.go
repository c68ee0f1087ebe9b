package contract

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/repository/specification"
)

type MembershipPlanRepository interface {
	Create(ctx context.Context, plan *entity.MembershipPlan) error
	Update(ctx context.Context, plan *entity.MembershipPlan) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MembershipPlan, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MembershipPlan, error)
}
