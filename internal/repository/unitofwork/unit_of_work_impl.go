package unitofwork

import (
	"context"
	"fmt"
	"time"

	"membership-ledger-be/internal/repository/contract"
	"membership-ledger-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return implementation.TranslateError(tx.Error, "begin transaction")
	}
	u.tx = tx
	return nil
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return implementation.TranslateError(err, "commit transaction")
}

// Rollback after a successful Commit is a no-op so callers can always defer it.
func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) SetLockTimeout(timeout time.Duration) error {
	if u.tx == nil {
		return fmt.Errorf("lock timeout requires an open transaction")
	}
	if u.tx.Dialector.Name() != "postgres" || timeout <= 0 {
		return nil
	}
	// SET LOCAL does not accept bind parameters.
	err := u.tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())).Error
	return implementation.TranslateError(err, "set lock timeout")
}

// Repository Accessors

func (u *UnitOfWorkImpl) MembershipPlanRepository() contract.MembershipPlanRepository {
	return implementation.NewMembershipPlanRepository(u.getDB())
}

func (u *UnitOfWorkImpl) MembershipSubscriptionRepository() contract.MembershipSubscriptionRepository {
	return implementation.NewMembershipSubscriptionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) AllowanceCycleRepository() contract.AllowanceCycleRepository {
	return implementation.NewAllowanceCycleRepository(u.getDB())
}

func (u *UnitOfWorkImpl) AllowanceEventRepository() contract.AllowanceEventRepository {
	return implementation.NewAllowanceEventRepository(u.getDB())
}

func (u *UnitOfWorkImpl) AppointmentCoverageRepository() contract.AppointmentCoverageRepository {
	return implementation.NewAppointmentCoverageRepository(u.getDB())
}
