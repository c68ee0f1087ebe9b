package unitofwork

import (
	"context"
	"time"

	"membership-ledger-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// SetLockTimeout bounds row-lock waits for the current transaction.
	// It is a no-op on dialects without lock_timeout.
	SetLockTimeout(timeout time.Duration) error

	MembershipPlanRepository() contract.MembershipPlanRepository
	MembershipSubscriptionRepository() contract.MembershipSubscriptionRepository
	AllowanceCycleRepository() contract.AllowanceCycleRepository
	AllowanceEventRepository() contract.AllowanceEventRepository
	AppointmentCoverageRepository() contract.AppointmentCoverageRepository
}
