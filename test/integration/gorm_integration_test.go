package integration

import (
	"context"
	"log"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"membership-ledger-be/internal/config"
	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/repository/cache"
	"membership-ledger-be/internal/repository/memory"
	"membership-ledger-be/internal/repository/unitofwork"
	"membership-ledger-be/internal/service"
	"membership-ledger-be/pkg/database"
	"membership-ledger-be/pkg/events"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, ...events.Event) {}

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	require.NoError(t, database.AutoMigrate(gormDB))

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.MembershipPlanRepository())
	assert.NotNil(t, uow.MembershipSubscriptionRepository())
	assert.NotNil(t, uow.AllowanceCycleRepository())
	assert.NotNil(t, uow.AppointmentCoverageRepository())
	assert.NotNil(t, uow.AllowanceEventRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	ctx := context.Background()
	sysLogger := logger.NewNopLogger()
	cfg := config.DefaultLedgerConfig()
	plans := service.NewPlanCatalogService(uowFactory, memory.NewPlanCache(time.Minute), sysLogger)
	require.NoError(t, plans.SeedDefaultPlans(ctx))

	ledger := service.NewAllowanceLedgerService(uowFactory, plans, discardPublisher{}, cache.NopAllowanceStatusCache{}, cfg, sysLogger)
	lifecycle := service.NewSubscriptionLifecycleService(uowFactory, plans, discardPublisher{}, cfg, sysLogger)

	// Random ids keep reruns against the same database independent
	patientId := rand.Int63n(1<<40) + 1
	now := time.Now().UTC()
	sub, err := lifecycle.ActivateSubscription(ctx, service.SubscriptionActivation{
		ProviderSubscriptionId: "sub_it_" + uuid.NewString(),
		ProviderCustomerId:     "cus_it",
		PlanId:                 "monthly_plan",
		PatientId:              patientId,
		PeriodStart:            now.Add(-time.Hour),
		PeriodEnd:              now.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	t.Run("Concurrent consumption never overdraws the cycle", func(t *testing.T) {
		const workers = 6
		price := decimal.RequireFromString("35.00")
		baseAppointment := rand.Int63n(1<<40) + 1

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			covered int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(appointmentId int64) {
				defer wg.Done()
				result, err := service.RetryOnConflict(ctx, 10, func() (*entity.CoverageResult, error) {
					return ledger.ConsumeAllowance(ctx, sub.Id, appointmentId, price, 1)
				})
				if !assert.NoError(t, err) {
					return
				}
				if result.IsCovered {
					mu.Lock()
					covered++
					mu.Unlock()
				}
			}(baseAppointment + int64(i))
		}
		wg.Wait()

		assert.Equal(t, 2, covered)

		status, err := ledger.GetAllowanceStatus(ctx, patientId)
		require.NoError(t, err)
		assert.Equal(t, 0, status.AllowanceRemaining)
		assert.Equal(t, 2, status.AllowanceUsed)

		verification, err := ledger.VerifyCycle(ctx, status.CycleId)
		require.NoError(t, err)
		assert.True(t, verification.Consistent)
		assert.Equal(t, 3, verification.EventCount)
	})

	t.Run("Consumption racing a renewal lands in a live cycle", func(t *testing.T) {
		racerPatient := rand.Int63n(1<<40) + 1
		racer, err := lifecycle.ActivateSubscription(ctx, service.SubscriptionActivation{
			ProviderSubscriptionId: "sub_it_race_" + uuid.NewString(),
			ProviderCustomerId:     "cus_it",
			PlanId:                 "monthly_plan",
			PatientId:              racerPatient,
			PeriodStart:            now.Add(-time.Hour),
			PeriodEnd:              now.AddDate(0, 1, 0),
		})
		require.NoError(t, err)

		price := decimal.RequireFromString("35.00")
		baseAppointment := rand.Int63n(1<<40) + 1
		periodStart := now.AddDate(0, 1, 0)

		// Every cycle takes at most two consumptions (its own round and the next one),
		// which the monthly plan always covers.
		for i := 0; i < 10; i++ {
			start := periodStart.AddDate(0, i, 0)
			end := start.AddDate(0, 1, 0)

			var wg sync.WaitGroup
			var result *entity.CoverageResult
			var consumeErr, renewErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, renewErr = service.RetryOnConflict(ctx, 10, func() (*entity.AllowanceCycle, error) {
					return ledger.RenewAllowanceCycle(ctx, racer.Id, start, end)
				})
			}()
			go func(appointmentId int64) {
				defer wg.Done()
				result, consumeErr = service.RetryOnConflict(ctx, 10, func() (*entity.CoverageResult, error) {
					return ledger.ConsumeAllowance(ctx, racer.Id, appointmentId, price, 1)
				})
			}(baseAppointment + int64(i))
			wg.Wait()

			require.NoError(t, renewErr)
			require.NoError(t, consumeErr)
			assert.True(t, result.IsCovered, "round %d declined: %s", i, result.Reason)
		}
	})
}
