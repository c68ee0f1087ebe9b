package contract

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/repository/specification"
)

// Subscriptions are kept for audit, there is no delete.
type MembershipSubscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.MembershipSubscription) error
	Update(ctx context.Context, subscription *entity.MembershipSubscription) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MembershipSubscription, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MembershipSubscription, error)
}
