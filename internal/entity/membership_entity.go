// FILE: internal/entity/membership_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubscriptionStatus string
type CoverageType string
type AllowanceEventType string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"

	CoverageTypeFull    CoverageType = "full_coverage"
	CoverageTypePartial CoverageType = "partial_coverage" // reserved, no policy produces it yet
	CoverageTypeNone    CoverageType = "no_coverage"

	AllowanceEventGranted  AllowanceEventType = "granted"
	AllowanceEventConsumed AllowanceEventType = "consumed"
	AllowanceEventRestored AllowanceEventType = "restored"
	AllowanceEventExpired  AllowanceEventType = "expired"
)

// MembershipPlan is a Plan Catalog entry. AllowancePerCycle is copied into every
// cycle created for the plan, at creation time only.
type MembershipPlan struct {
	Id                uuid.UUID
	Code              string // e.g. "monthly_plan"
	Name              string
	Description       string
	Price             decimal.Decimal
	Currency          string
	IntervalCount     int // months per billing period
	AllowancePerCycle int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type MembershipSubscription struct {
	Id                     uuid.UUID
	PatientId              int64
	PlanId                 string // plan code
	ProviderSubscriptionId string
	ProviderCustomerId     string
	Status                 SubscriptionStatus
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	ActivatedAt            time.Time
	CancelledAt            *time.Time
	EndsAt                 *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// CoversDate reports whether the subscription entitles the patient to coverage at the
// given instant. past_due never does; a cancelled subscription does until EndsAt.
func (s *MembershipSubscription) CoversDate(at time.Time) bool {
	switch s.Status {
	case SubscriptionStatusActive:
		return true
	case SubscriptionStatusCancelled:
		return s.EndsAt != nil && at.Before(*s.EndsAt)
	}
	return false
}

// CanTransitionTo encodes the lifecycle: active -> cancelled (terminal),
// active <-> past_due, past_due -> cancelled.
func (s *MembershipSubscription) CanTransitionTo(next SubscriptionStatus) bool {
	switch s.Status {
	case SubscriptionStatusActive:
		return next == SubscriptionStatusCancelled || next == SubscriptionStatusPastDue
	case SubscriptionStatusPastDue:
		return next == SubscriptionStatusActive || next == SubscriptionStatusCancelled
	}
	return false
}

type AllowanceCycle struct {
	Id                 uuid.UUID
	SubscriptionId     uuid.UUID
	CycleStart         time.Time
	CycleEnd           time.Time
	AllowanceGranted   int
	AllowanceUsed      int
	AllowanceRemaining int
	IsActive           bool
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Contains checks the half-open window [CycleStart, CycleEnd).
func (c *AllowanceCycle) Contains(at time.Time) bool {
	return !at.Before(c.CycleStart) && at.Before(c.CycleEnd)
}

// Consume moves units from remaining to used. It never lets used exceed granted.
func (c *AllowanceCycle) Consume(units int) error {
	if units <= 0 {
		return ErrInvalidUnits
	}
	if c.AllowanceRemaining < units {
		return ErrInsufficientAllowance
	}
	c.AllowanceUsed += units
	c.AllowanceRemaining -= units
	return c.CheckBalance()
}

// Restore credits units back, clamped to [0, AllowanceGranted] on both counters.
// It returns the number of units actually credited.
func (c *AllowanceCycle) Restore(units int) int {
	if units <= 0 {
		return 0
	}
	before := c.AllowanceRemaining
	newUsed := c.AllowanceUsed - units
	if newUsed < 0 {
		newUsed = 0
	}
	newRemaining := c.AllowanceRemaining + units
	if newRemaining > c.AllowanceGranted {
		newRemaining = c.AllowanceGranted
	}
	c.AllowanceUsed = newUsed
	c.AllowanceRemaining = newRemaining
	return newRemaining - before
}

func (c *AllowanceCycle) CheckBalance() error {
	if c.AllowanceUsed < 0 || c.AllowanceUsed > c.AllowanceGranted {
		return ErrBalanceInvariant
	}
	if c.AllowanceRemaining != c.AllowanceGranted-c.AllowanceUsed {
		return ErrBalanceInvariant
	}
	return nil
}

// AppointmentCoverage links one appointment to the cycle whose allowance paid for it.
type AppointmentCoverage struct {
	Id             uuid.UUID
	AppointmentId  int64
	SubscriptionId uuid.UUID
	CycleId        uuid.UUID
	AllowanceUnits int
	OriginalPrice  decimal.Decimal
	CoveredAmount  decimal.Decimal
	PatientPaid    decimal.Decimal
	CoverageType   CoverageType
	RestoredAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *AppointmentCoverage) IsReversed() bool {
	return c.RestoredAt != nil || c.CoverageType == CoverageTypeNone
}

// AllowanceEvent is one append-only audit row.
type AllowanceEvent struct {
	Id              uuid.UUID
	SubscriptionId  uuid.UUID
	CycleId         uuid.UUID
	EventType       AllowanceEventType
	AppointmentId   *int64
	AmountChanged   int
	PreviousBalance int
	NewBalance      int
	Reason          string
	Metadata        map[string]interface{}
	// Sequence is the cycle version the event produced. It orders a cycle's
	// events when timestamps collide.
	Sequence  int
	CreatedAt time.Time
}
