package database

import (
	"membership-ledger-be/internal/model"

	"gorm.io/gorm"
)

// Partial unique indexes are not expressible as struct tags. Both dialects accept this form.
const oneActiveCycleIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_membership_cycles_one_active
	ON membership_cycles (subscription_id) WHERE is_active`

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.MembershipPlan{},
		&model.MembershipSubscription{},
		&model.AllowanceCycle{},
		&model.AppointmentCoverage{},
		&model.AllowanceEvent{},
	); err != nil {
		return err
	}
	return db.Exec(oneActiveCycleIndex).Error
}
