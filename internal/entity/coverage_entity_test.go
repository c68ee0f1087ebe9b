package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(minute int) time.Time {
	return time.Date(2026, 1, 1, 10, minute, 0, 0, time.UTC)
}

func TestReplayCycle(t *testing.T) {
	evts := []*AllowanceEvent{
		{EventType: AllowanceEventGranted, AmountChanged: 2, PreviousBalance: 0, NewBalance: 2, CreatedAt: at(0)},
		{EventType: AllowanceEventConsumed, AmountChanged: -1, PreviousBalance: 2, NewBalance: 1, CreatedAt: at(1)},
		{EventType: AllowanceEventConsumed, AmountChanged: -1, PreviousBalance: 1, NewBalance: 0, CreatedAt: at(2)},
		{EventType: AllowanceEventRestored, AmountChanged: 1, PreviousBalance: 0, NewBalance: 1, CreatedAt: at(3)},
	}

	b, err := ReplayCycle(evts)
	require.NoError(t, err)
	assert.Equal(t, CycleBalance{Granted: 2, Used: 1, Remaining: 1}, b)
}

func TestReplayCycleOrdersByTimestamp(t *testing.T) {
	evts := []*AllowanceEvent{
		{EventType: AllowanceEventConsumed, AmountChanged: -1, CreatedAt: at(2)},
		{EventType: AllowanceEventGranted, AmountChanged: 12, NewBalance: 12, CreatedAt: at(0)},
		{EventType: AllowanceEventExpired, AmountChanged: 0, CreatedAt: at(5)},
	}

	b, err := ReplayCycle(evts)
	require.NoError(t, err)
	assert.Equal(t, CycleBalance{Granted: 12, Used: 1, Remaining: 11}, b)
	assert.Equal(t, AllowanceEventConsumed, evts[0].EventType, "input slice must not be reordered")
}

func TestReplayCycleBreaksTimestampTiesBySequence(t *testing.T) {
	// A full restore and a new booking committed within the same microsecond
	evts := []*AllowanceEvent{
		{EventType: AllowanceEventConsumed, AmountChanged: -1, Sequence: 3, CreatedAt: at(1)},
		{EventType: AllowanceEventRestored, AmountChanged: 2, Sequence: 2, CreatedAt: at(1)},
		{EventType: AllowanceEventConsumed, AmountChanged: -2, Sequence: 1, CreatedAt: at(1)},
		{EventType: AllowanceEventGranted, AmountChanged: 2, NewBalance: 2, Sequence: 0, CreatedAt: at(0)},
	}

	b, err := ReplayCycle(evts)
	require.NoError(t, err)
	assert.Equal(t, CycleBalance{Granted: 2, Used: 1, Remaining: 1}, b)
}

func TestReplayCycleClampsRestoration(t *testing.T) {
	evts := []*AllowanceEvent{
		{EventType: AllowanceEventGranted, NewBalance: 2, CreatedAt: at(0)},
		{EventType: AllowanceEventConsumed, AmountChanged: -1, CreatedAt: at(1)},
		{EventType: AllowanceEventRestored, AmountChanged: 3, CreatedAt: at(2)},
	}

	b, err := ReplayCycle(evts)
	require.NoError(t, err)
	assert.Equal(t, CycleBalance{Granted: 2, Used: 0, Remaining: 2}, b)
}

func TestReplayCycleErrors(t *testing.T) {
	_, err := ReplayCycle(nil)
	assert.ErrorIs(t, err, ErrReplayMissingGrant)

	_, err = ReplayCycle([]*AllowanceEvent{
		{EventType: AllowanceEventConsumed, AmountChanged: -1, CreatedAt: at(0)},
	})
	assert.ErrorIs(t, err, ErrReplayMissingGrant)

	_, err = ReplayCycle([]*AllowanceEvent{
		{EventType: AllowanceEventGranted, NewBalance: 1, CreatedAt: at(0)},
		{EventType: AllowanceEventConsumed, AmountChanged: -1, CreatedAt: at(1)},
		{EventType: AllowanceEventConsumed, AmountChanged: -1, CreatedAt: at(2)},
	})
	assert.ErrorIs(t, err, ErrBalanceInvariant)
}

func TestCoverageResultConstructors(t *testing.T) {
	price := decimal.RequireFromString("80.00")

	declined := NotCovered(price, 0, ReasonAllowanceExhausted)
	assert.False(t, declined.IsCovered)
	assert.Equal(t, CoverageTypeNone, declined.CoverageType)
	assert.True(t, declined.PatientPaid.Equal(price))
	assert.True(t, declined.CoveredAmount.IsZero())
	assert.Equal(t, 0, declined.AllowanceDeducted)

	covered := FullyCovered(price, 1, 1)
	assert.True(t, covered.IsCovered)
	assert.Equal(t, CoverageTypeFull, covered.CoverageType)
	assert.True(t, covered.CoveredAmount.Equal(price))
	assert.True(t, covered.PatientPaid.IsZero())
	assert.Equal(t, 1, covered.RemainingAllowance)
	assert.Empty(t, covered.Reason)
}
