// FILE: internal/dto/membership_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Requests ---

// CoverageCheckRequest previews coverage without consuming anything
type CoverageCheckRequest struct {
	PatientId       int64           `json:"patient_id" validate:"required,gt=0"`
	Price           decimal.Decimal `json:"price"`
	AppointmentDate *time.Time      `json:"appointment_date,omitempty"`
}

// ConsumeAllowanceRequest is sent by the booking flow once an appointment is confirmed
type ConsumeAllowanceRequest struct {
	SubscriptionId uuid.UUID       `json:"subscription_id" validate:"required"`
	AppointmentId  int64           `json:"appointment_id" validate:"required,gt=0"`
	Price          decimal.Decimal `json:"price"`
	Units          int             `json:"units,omitempty" validate:"omitempty,gt=0"`
}

type RestoreAllowanceRequest struct {
	AppointmentId int64  `json:"appointment_id" validate:"required,gt=0"`
	Reason        string `json:"reason" validate:"max=255"`
	Units         int    `json:"units,omitempty" validate:"omitempty,gt=0"`
}

// --- Responses ---

type MembershipPlanResponse struct {
	Id                uuid.UUID `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Price             string    `json:"price"`
	Currency          string    `json:"currency"`
	IntervalCount     int       `json:"interval_count"`
	AllowancePerCycle int       `json:"allowance_per_cycle"`
}

type CoverageResponse struct {
	IsCovered          bool       `json:"is_covered"`
	CoverageType       string     `json:"coverage_type"`
	OriginalPrice      string     `json:"original_price"`
	CoveredAmount      string     `json:"covered_amount"`
	PatientPaid        string     `json:"patient_paid"`
	AllowanceDeducted  int        `json:"allowance_deducted"`
	RemainingAllowance int        `json:"remaining_allowance"`
	Reason             string     `json:"reason,omitempty"`
	SubscriptionId     *uuid.UUID `json:"subscription_id,omitempty"`
	CycleId            *uuid.UUID `json:"cycle_id,omitempty"`
	CoverageId         *uuid.UUID `json:"coverage_id,omitempty"`
}

type AllowanceStatusResponse struct {
	SubscriptionId     uuid.UUID `json:"subscription_id"`
	SubscriptionStatus string    `json:"subscription_status"`
	PlanId             string    `json:"plan_id"`
	CycleId            uuid.UUID `json:"cycle_id"`
	AllowanceGranted   int       `json:"allowance_granted"`
	AllowanceUsed      int       `json:"allowance_used"`
	AllowanceRemaining int       `json:"allowance_remaining"`
	CycleStart         time.Time `json:"cycle_start"`
	CycleEnd           time.Time `json:"cycle_end"`
	ResetDate          time.Time `json:"reset_date"`
	IsActive           bool      `json:"is_active"`
}

type AllowanceEventResponse struct {
	Id              uuid.UUID              `json:"id"`
	CycleId         uuid.UUID              `json:"cycle_id"`
	EventType       string                 `json:"event_type"`
	AppointmentId   *int64                 `json:"appointment_id,omitempty"`
	AmountChanged   int                    `json:"amount_changed"`
	PreviousBalance int                    `json:"previous_balance"`
	NewBalance      int                    `json:"new_balance"`
	Reason          string                 `json:"reason"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

type CycleBalanceResponse struct {
	Granted   int `json:"granted"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

type CycleVerificationResponse struct {
	CycleId    uuid.UUID            `json:"cycle_id"`
	Stored     CycleBalanceResponse `json:"stored"`
	Replayed   CycleBalanceResponse `json:"replayed"`
	EventCount int                  `json:"event_count"`
	Consistent bool                 `json:"consistent"`
}
