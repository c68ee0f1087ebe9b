package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByPlanCode struct {
	Code string
}

func (s ByPlanCode) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("code = ?", s.Code)
}

type ActivePlans struct{}

func (s ActivePlans) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

type ByPatientID struct {
	PatientID int64
}

func (s ByPatientID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("patient_id = ?", s.PatientID)
}

type ByProviderSubscriptionID struct {
	ProviderSubscriptionID string
}

func (s ByProviderSubscriptionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("provider_subscription_id = ?", s.ProviderSubscriptionID)
}

type ByStatuses struct {
	Statuses []string
}

func (s ByStatuses) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", s.Statuses)
}

type BySubscriptionID struct {
	SubscriptionID uuid.UUID
}

func (s BySubscriptionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("subscription_id = ?", s.SubscriptionID)
}

type ByCycleID struct {
	CycleID uuid.UUID
}

func (s ByCycleID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("cycle_id = ?", s.CycleID)
}

// ActiveCycle selects the single is_active cycle of a subscription.
type ActiveCycle struct{}

func (s ActiveCycle) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

type ByAppointmentID struct {
	AppointmentID int64
}

func (s ByAppointmentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("appointment_id = ?", s.AppointmentID)
}
