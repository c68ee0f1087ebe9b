package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ids are generated in Go so the same schema migrates on PostgreSQL and SQLite.

type MembershipPlan struct {
	Id                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code              string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name              string          `gorm:"type:varchar(255);not null"`
	Description       string          `gorm:"type:text"`
	Price             decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency          string          `gorm:"type:varchar(3);not null"`
	IntervalCount     int             `gorm:"not null"`
	AllowancePerCycle int             `gorm:"not null"`
	IsActive          bool            `gorm:"not null"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime"`
}

func (MembershipPlan) TableName() string {
	return "membership_plans"
}

func (m *MembershipPlan) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	return nil
}

type MembershipSubscription struct {
	Id                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	PatientId              int64     `gorm:"not null;index"`
	PlanId                 string    `gorm:"type:varchar(64);not null"`
	ProviderSubscriptionId string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	ProviderCustomerId     string    `gorm:"type:varchar(255)"`
	Status                 string    `gorm:"type:varchar(20);not null;index"`
	CurrentPeriodStart     time.Time `gorm:"not null"`
	CurrentPeriodEnd       time.Time `gorm:"not null"`
	ActivatedAt            time.Time `gorm:"not null"`
	CancelledAt            *time.Time
	EndsAt                 *time.Time
	CreatedAt              time.Time `gorm:"autoCreateTime"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime"`
}

func (MembershipSubscription) TableName() string {
	return "membership_subscriptions"
}

func (m *MembershipSubscription) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	return nil
}

// AllowanceCycle rows are never deleted. The one-active-cycle-per-subscription rule is
// a partial unique index created by database.AutoMigrate.
type AllowanceCycle struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubscriptionId     uuid.UUID `gorm:"type:uuid;not null;index"`
	CycleStart         time.Time `gorm:"not null"`
	CycleEnd           time.Time `gorm:"not null"`
	AllowanceGranted   int       `gorm:"not null"`
	AllowanceUsed      int       `gorm:"not null"`
	AllowanceRemaining int       `gorm:"not null"`
	IsActive           bool      `gorm:"not null;index"`
	Version            int       `gorm:"not null"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

func (AllowanceCycle) TableName() string {
	return "membership_cycles"
}

func (m *AllowanceCycle) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	return nil
}

type AppointmentCoverage struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AppointmentId  int64           `gorm:"not null;uniqueIndex"`
	SubscriptionId uuid.UUID       `gorm:"type:uuid;not null;index"`
	CycleId        uuid.UUID       `gorm:"type:uuid;not null;index"`
	AllowanceUnits int             `gorm:"not null"`
	OriginalPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CoveredAmount  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PatientPaid    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CoverageType   string          `gorm:"type:varchar(32);not null"`
	RestoredAt     *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (AppointmentCoverage) TableName() string {
	return "appointment_coverage"
}

func (m *AppointmentCoverage) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	return nil
}

// AllowanceEvent is append-only; the repository exposes no update or delete.
type AllowanceEvent struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubscriptionId  uuid.UUID `gorm:"type:uuid;not null;index"`
	CycleId         uuid.UUID `gorm:"type:uuid;not null;index:idx_allowance_events_cycle_created,priority:1;index:idx_allowance_events_cycle_sequence,priority:1"`
	EventType       string    `gorm:"type:varchar(20);not null"`
	AppointmentId   *int64    `gorm:"index"`
	AmountChanged   int       `gorm:"not null"`
	PreviousBalance int       `gorm:"not null"`
	NewBalance      int       `gorm:"not null"`
	Reason          string    `gorm:"type:varchar(255)"`
	Metadata        datatypes.JSON
	Sequence        int       `gorm:"not null;default:0;index:idx_allowance_events_cycle_sequence,priority:2"`
	CreatedAt       time.Time `gorm:"not null;index:idx_allowance_events_cycle_created,priority:2"`
}

func (AllowanceEvent) TableName() string {
	return "membership_allowance_events"
}

func (m *AllowanceEvent) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}
