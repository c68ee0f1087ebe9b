package entity

import "errors"

var (
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrInvalidUnits         = errors.New("units must be greater than zero")
	ErrInvalidPeriod        = errors.New("period end must be after period start")
	ErrInvalidPatient       = errors.New("patient id is required")
	ErrMissingProviderRef   = errors.New("provider subscription reference is required")
	ErrPlanNotFound         = errors.New("membership plan not found")
	ErrSubscriptionNotFound = errors.New("membership subscription not found")
	ErrCycleNotFound        = errors.New("allowance cycle not found")

	ErrInsufficientAllowance = errors.New("insufficient allowance remaining")
	ErrBalanceInvariant      = errors.New("allowance cycle balance invariant violated")
	ErrInvalidTransition     = errors.New("invalid subscription status transition")
	ErrDuplicateRecord       = errors.New("record already exists")

	// ErrConcurrencyConflict covers lock timeouts, serialization failures, deadlocks and
	// lost compare-and-swap updates. Callers retry it a bounded number of times.
	ErrConcurrencyConflict = errors.New("concurrent allowance update, retry the operation")

	ErrReplayMissingGrant = errors.New("event history does not start with a granted event")

	ErrInvalidWebhookSignature = errors.New("billing webhook signature verification failed")
)

func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
