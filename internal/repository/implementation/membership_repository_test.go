package implementation_test

import (
	"context"
	"testing"
	"time"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/repository/implementation"
	"membership-ledger-be/internal/repository/specification"
	"membership-ledger-be/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func newSubscription(t *testing.T, db *gorm.DB, ref string) *entity.MembershipSubscription {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &entity.MembershipSubscription{
		PatientId:              42,
		PlanId:                 "monthly_plan",
		ProviderSubscriptionId: ref,
		Status:                 entity.SubscriptionStatusActive,
		CurrentPeriodStart:     start,
		CurrentPeriodEnd:       start.AddDate(0, 1, 0),
		ActivatedAt:            start,
	}
	require.NoError(t, implementation.NewMembershipSubscriptionRepository(db).Create(context.Background(), sub))
	return sub
}

func newActiveCycle(t *testing.T, db *gorm.DB, subscriptionId uuid.UUID, granted int) *entity.AllowanceCycle {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cycle := &entity.AllowanceCycle{
		SubscriptionId:     subscriptionId,
		CycleStart:         start,
		CycleEnd:           start.AddDate(0, 1, 0),
		AllowanceGranted:   granted,
		AllowanceRemaining: granted,
		IsActive:           true,
	}
	require.NoError(t, implementation.NewAllowanceCycleRepository(db).Create(context.Background(), cycle))
	return cycle
}

func TestSubscriptionRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := implementation.NewMembershipSubscriptionRepository(db)

	sub := newSubscription(t, db, "sub_123")
	assert.NotEqual(t, uuid.Nil, sub.Id)

	t.Run("Find by provider reference", func(t *testing.T) {
		found, err := repo.FindOne(ctx, specification.ByProviderSubscriptionID{ProviderSubscriptionID: "sub_123"})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, sub.Id, found.Id)
		assert.Equal(t, entity.SubscriptionStatusActive, found.Status)
	})

	t.Run("Missing row returns nil", func(t *testing.T) {
		found, err := repo.FindOne(ctx, specification.ByProviderSubscriptionID{ProviderSubscriptionID: "sub_missing"})
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Duplicate provider reference", func(t *testing.T) {
		dup := *sub
		dup.Id = uuid.Nil
		err := repo.Create(ctx, &dup)
		assert.ErrorIs(t, err, entity.ErrDuplicateRecord)
	})

	t.Run("Update status", func(t *testing.T) {
		endsAt := sub.CurrentPeriodEnd
		sub.Status = entity.SubscriptionStatusCancelled
		sub.EndsAt = &endsAt
		require.NoError(t, repo.Update(ctx, sub))

		found, err := repo.FindOne(ctx, specification.ByID{ID: sub.Id})
		require.NoError(t, err)
		assert.Equal(t, entity.SubscriptionStatusCancelled, found.Status)
		require.NotNil(t, found.EndsAt)
		assert.True(t, found.EndsAt.Equal(endsAt))
	})
}

func TestAllowanceCycleRepositoryCompareAndSwap(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := implementation.NewAllowanceCycleRepository(db)

	sub := newSubscription(t, db, "sub_cas")
	cycle := newActiveCycle(t, db, sub.Id, 2)

	stale := *cycle

	require.NoError(t, cycle.Consume(1))
	require.NoError(t, repo.UpdateBalance(ctx, cycle))
	assert.Equal(t, 1, cycle.Version)

	require.NoError(t, stale.Consume(1))
	err := repo.UpdateBalance(ctx, &stale)
	assert.ErrorIs(t, err, entity.ErrConcurrencyConflict)
	assert.True(t, entity.IsRetryable(err))

	stored, err := repo.FindActiveForUpdate(ctx, sub.Id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.AllowanceUsed)
	assert.Equal(t, 1, stored.AllowanceRemaining)
}

func TestAllowanceCycleRepositoryRejectsBrokenBalance(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := implementation.NewAllowanceCycleRepository(db)

	sub := newSubscription(t, db, "sub_balance")
	cycle := newActiveCycle(t, db, sub.Id, 2)

	cycle.AllowanceUsed = 3
	cycle.AllowanceRemaining = -1
	assert.ErrorIs(t, repo.UpdateBalance(ctx, cycle), entity.ErrBalanceInvariant)
}

func TestAllowanceCycleRepositoryOneActivePerSubscription(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := implementation.NewAllowanceCycleRepository(db)

	sub := newSubscription(t, db, "sub_one_active")
	first := newActiveCycle(t, db, sub.Id, 2)

	second := &entity.AllowanceCycle{
		SubscriptionId:     sub.Id,
		CycleStart:         first.CycleEnd,
		CycleEnd:           first.CycleEnd.AddDate(0, 1, 0),
		AllowanceGranted:   2,
		AllowanceRemaining: 2,
		IsActive:           true,
	}
	assert.ErrorIs(t, repo.Create(ctx, second), entity.ErrDuplicateRecord)

	require.NoError(t, repo.Deactivate(ctx, sub.Id))
	second.Id = uuid.Nil
	require.NoError(t, repo.Create(ctx, second))

	active, err := repo.FindActiveForUpdate(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, second.Id, active.Id)

	all, err := repo.FindAll(ctx, specification.BySubscriptionID{SubscriptionID: sub.Id})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAppointmentCoverageRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := implementation.NewAppointmentCoverageRepository(db)

	sub := newSubscription(t, db, "sub_coverage")
	cycle := newActiveCycle(t, db, sub.Id, 2)
	price := decimal.RequireFromString("80.00")

	coverage := &entity.AppointmentCoverage{
		AppointmentId:  1001,
		SubscriptionId: sub.Id,
		CycleId:        cycle.Id,
		AllowanceUnits: 1,
		OriginalPrice:  price,
		CoveredAmount:  price,
		PatientPaid:    decimal.Zero,
		CoverageType:   entity.CoverageTypeFull,
	}
	require.NoError(t, repo.Create(ctx, coverage))

	t.Run("Appointment is unique", func(t *testing.T) {
		dup := *coverage
		dup.Id = uuid.Nil
		assert.ErrorIs(t, repo.Create(ctx, &dup), entity.ErrDuplicateRecord)
	})

	t.Run("Restore only once", func(t *testing.T) {
		now := time.Now().UTC()
		coverage.CoverageType = entity.CoverageTypeNone
		coverage.CoveredAmount = decimal.Zero
		coverage.RestoredAt = &now
		require.NoError(t, repo.MarkRestored(ctx, coverage))

		assert.ErrorIs(t, repo.MarkRestored(ctx, coverage), entity.ErrConcurrencyConflict)

		found, err := repo.FindOne(ctx, specification.ByAppointmentID{AppointmentID: 1001})
		require.NoError(t, err)
		assert.True(t, found.IsReversed())
		assert.True(t, found.OriginalPrice.Equal(price))
		assert.True(t, found.CoveredAmount.IsZero())
	})
}

func TestAllowanceEventRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := implementation.NewAllowanceEventRepository(db)

	sub := newSubscription(t, db, "sub_events")
	cycle := newActiveCycle(t, db, sub.Id, 2)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	appointmentId := int64(7)

	// Appended out of order on purpose
	consumed := &entity.AllowanceEvent{
		SubscriptionId: sub.Id, CycleId: cycle.Id, EventType: entity.AllowanceEventConsumed,
		AppointmentId: &appointmentId, AmountChanged: -1, PreviousBalance: 2, NewBalance: 1,
		Reason: entity.EventReasonBooking, Metadata: map[string]interface{}{"coverage_id": "c1"},
		Sequence: 1, CreatedAt: base.Add(time.Minute),
	}
	granted := &entity.AllowanceEvent{
		SubscriptionId: sub.Id, CycleId: cycle.Id, EventType: entity.AllowanceEventGranted,
		AmountChanged: 2, NewBalance: 2, Reason: entity.EventReasonInitialGrant, CreatedAt: base,
	}
	require.NoError(t, repo.Append(ctx, consumed))
	require.NoError(t, repo.Append(ctx, granted))

	evts, err := repo.FindByCycle(ctx, cycle.Id)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, entity.AllowanceEventGranted, evts[0].EventType)
	assert.Equal(t, entity.AllowanceEventConsumed, evts[1].EventType)
	assert.Equal(t, "c1", evts[1].Metadata["coverage_id"])
	require.NotNil(t, evts[1].AppointmentId)
	assert.Equal(t, appointmentId, *evts[1].AppointmentId)

	filtered, err := repo.FindByCycle(ctx, cycle.Id, specification.ByAppointmentID{AppointmentID: appointmentId})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	balance, err := entity.ReplayCycle(evts)
	require.NoError(t, err)
	assert.Equal(t, entity.CycleBalance{Granted: 2, Used: 1, Remaining: 1}, balance)
}

func TestAllowanceEventRepositoryOrdersBySequenceOnEqualTimestamps(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := implementation.NewAllowanceEventRepository(db)

	sub := newSubscription(t, db, "sub_event_ties")
	cycle := newActiveCycle(t, db, sub.Id, 2)
	same := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	appointmentId := int64(8)

	appendEvent := func(eventType entity.AllowanceEventType, amount, prev, next, sequence int) {
		t.Helper()
		require.NoError(t, repo.Append(ctx, &entity.AllowanceEvent{
			SubscriptionId: sub.Id, CycleId: cycle.Id, EventType: eventType, AppointmentId: &appointmentId,
			AmountChanged: amount, PreviousBalance: prev, NewBalance: next, Reason: "tie",
			Sequence: sequence, CreatedAt: same,
		}))
	}
	// Inserted in reverse so row order cannot stand in for write order
	appendEvent(entity.AllowanceEventConsumed, -1, 2, 1, 3)
	appendEvent(entity.AllowanceEventRestored, 2, 0, 2, 2)
	appendEvent(entity.AllowanceEventConsumed, -2, 2, 0, 1)
	appendEvent(entity.AllowanceEventGranted, 2, 0, 2, 0)

	evts, err := repo.FindByCycle(ctx, cycle.Id)
	require.NoError(t, err)
	require.Len(t, evts, 4)
	for i, e := range evts {
		assert.Equal(t, i, e.Sequence)
	}

	balance, err := entity.ReplayCycle(evts)
	require.NoError(t, err)
	assert.Equal(t, entity.CycleBalance{Granted: 2, Used: 1, Remaining: 1}, balance)
}
