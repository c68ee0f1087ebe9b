package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"membership-ledger-be/internal/config"
	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/repository/cache"
	"membership-ledger-be/internal/repository/memory"
	"membership-ledger-be/internal/repository/unitofwork"
	"membership-ledger-be/pkg/database"
	"membership-ledger-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	jan1 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mar1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type testEnv struct {
	db         *gorm.DB
	uowFactory unitofwork.RepositoryFactory
	publisher  *recordingPublisher
	plans      IPlanCatalogService
	ledger     *allowanceLedgerService
	lifecycle  *subscriptionLifecycleService
	evaluator  *coverageEvaluator
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewSQLiteDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	log := logger.NewNopLogger()
	uowFactory := unitofwork.NewRepositoryFactory(db)
	publisher := &recordingPublisher{}
	cfg := config.DefaultLedgerConfig()

	plans := NewPlanCatalogService(uowFactory, memory.NewPlanCache(time.Minute), log)
	require.NoError(t, plans.SeedDefaultPlans(context.Background()))

	return &testEnv{
		db:         db,
		uowFactory: uowFactory,
		publisher:  publisher,
		plans:      plans,
		ledger:     NewAllowanceLedgerService(uowFactory, plans, publisher, cache.NopAllowanceStatusCache{}, cfg, log).(*allowanceLedgerService),
		lifecycle:  NewSubscriptionLifecycleService(uowFactory, plans, publisher, cfg, log).(*subscriptionLifecycleService),
		evaluator:  NewCoverageEvaluator(uowFactory).(*coverageEvaluator),
	}
}

func (e *testEnv) activate(t *testing.T, ref string, patientId int64, planId string) *entity.MembershipSubscription {
	t.Helper()
	sub, err := e.lifecycle.ActivateSubscription(context.Background(), SubscriptionActivation{
		ProviderSubscriptionId: ref,
		ProviderCustomerId:     "cus_" + ref,
		PlanId:                 planId,
		PatientId:              patientId,
		PeriodStart:            jan1,
		PeriodEnd:              feb1,
	})
	require.NoError(t, err)
	return sub
}

func (e *testEnv) activeCycle(t *testing.T, subscriptionId uuid.UUID) *entity.AllowanceCycle {
	t.Helper()
	cycle, err := e.uowFactory.NewUnitOfWork(context.Background()).AllowanceCycleRepository().
		FindActiveForUpdate(context.Background(), subscriptionId)
	require.NoError(t, err)
	return cycle
}
