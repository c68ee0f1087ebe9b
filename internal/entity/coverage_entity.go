package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decline and audit reasons. Callers match on these strings, keep them stable.
const (
	ReasonNoActiveSubscription       = "No active subscription found"
	ReasonNoActiveCycle              = "No active allowance cycle"
	ReasonOutsideCyclePeriod         = "Appointment date outside of current cycle period"
	ReasonAllowanceExhausted         = "Allowance exhausted for current cycle"
	ReasonNoActiveCycleFound         = "No active allowance cycle found"
	ReasonInsufficientAllowance      = "Insufficient allowance remaining"
	ReasonCoverageRestored           = "Appointment coverage was restored"
	ReasonCoveredByOtherSubscription = "Appointment already covered by another subscription"

	EventReasonBooking      = "Appointment booking"
	EventReasonInitialGrant = "Initial allowance grant"
	EventReasonRenewalGrant = "Cycle renewal grant"
)

// CoverageResult is both the evaluator's preview and the ledger's consumption outcome.
// IsCovered=false is a policy decline, not an error: the caller charges PatientPaid.
type CoverageResult struct {
	IsCovered          bool
	CoverageType       CoverageType
	OriginalPrice      decimal.Decimal
	CoveredAmount      decimal.Decimal
	PatientPaid        decimal.Decimal
	AllowanceDeducted  int
	RemainingAllowance int
	Reason             string

	SubscriptionId *uuid.UUID
	CycleId        *uuid.UUID
	CoverageId     *uuid.UUID
}

func NotCovered(price decimal.Decimal, remaining int, reason string) *CoverageResult {
	return &CoverageResult{
		IsCovered:          false,
		CoverageType:       CoverageTypeNone,
		OriginalPrice:      price,
		CoveredAmount:      decimal.Zero,
		PatientPaid:        price,
		AllowanceDeducted:  0,
		RemainingAllowance: remaining,
		Reason:             reason,
	}
}

func FullyCovered(price decimal.Decimal, units, remaining int) *CoverageResult {
	return &CoverageResult{
		IsCovered:          true,
		CoverageType:       CoverageTypeFull,
		OriginalPrice:      price,
		CoveredAmount:      price,
		PatientPaid:        decimal.Zero,
		AllowanceDeducted:  units,
		RemainingAllowance: remaining,
	}
}

type AllowanceStatus struct {
	SubscriptionId     uuid.UUID
	SubscriptionStatus SubscriptionStatus
	PlanId             string
	CycleId            uuid.UUID
	AllowanceGranted   int
	AllowanceUsed      int
	AllowanceRemaining int
	CycleStart         time.Time
	CycleEnd           time.Time
	ResetDate          time.Time
	IsActive           bool
}

type CycleBalance struct {
	Granted   int
	Used      int
	Remaining int
}

type CycleVerification struct {
	CycleId    uuid.UUID
	Stored     CycleBalance
	Replayed   CycleBalance
	EventCount int
	Consistent bool
}

// ReplayCycle rebuilds a cycle balance from its event history in write order:
// by sequence, then timestamp.
// Restorations are clamped to the granted amount the same way the ledger clamps them;
// expired events are markers and do not move the balance.
func ReplayCycle(events []*AllowanceEvent) (CycleBalance, error) {
	ordered := make([]*AllowanceEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Sequence != ordered[j].Sequence {
			return ordered[i].Sequence < ordered[j].Sequence
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var b CycleBalance
	if len(ordered) == 0 || ordered[0].EventType != AllowanceEventGranted {
		return b, ErrReplayMissingGrant
	}

	for _, e := range ordered {
		switch e.EventType {
		case AllowanceEventGranted:
			b.Granted = e.NewBalance
			b.Remaining = e.NewBalance
		case AllowanceEventConsumed:
			b.Remaining += e.AmountChanged
			if b.Remaining < 0 {
				return b, ErrBalanceInvariant
			}
		case AllowanceEventRestored:
			b.Remaining += e.AmountChanged
			if b.Remaining > b.Granted {
				b.Remaining = b.Granted
			}
		}
	}
	b.Used = b.Granted - b.Remaining
	return b, nil
}
