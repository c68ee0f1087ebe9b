package service

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/repository/memory"
	"membership-ledger-be/internal/repository/specification"
	"membership-ledger-be/internal/repository/unitofwork"

	"github.com/shopspring/decimal"
)

type IPlanCatalogService interface {
	// GetPlan resolves a plan by code, including retired plans that existing subscriptions still renew on.
	GetPlan(ctx context.Context, code string) (*entity.MembershipPlan, error)
	ListPlans(ctx context.Context) ([]*entity.MembershipPlan, error)
	SeedDefaultPlans(ctx context.Context) error
}

// DefaultPlans is the catalog the platform launched with.
func DefaultPlans() []*entity.MembershipPlan {
	return []*entity.MembershipPlan{
		{
			Code:              "monthly_plan",
			Name:              "Monthly Membership",
			Description:       "2 consultations per month",
			Price:             decimal.RequireFromString("45.00"),
			Currency:          "EUR",
			IntervalCount:     1,
			AllowancePerCycle: 2,
			IsActive:          true,
		},
		{
			Code:              "biannual_plan",
			Name:              "6-Month Membership",
			Description:       "12 consultations per 6 months",
			Price:             decimal.RequireFromString("219.00"),
			Currency:          "EUR",
			IntervalCount:     6,
			AllowancePerCycle: 12,
			IsActive:          true,
		},
	}
}

type planCatalogService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.PlanCache
	logger     logger.ILogger
}

func NewPlanCatalogService(uowFactory unitofwork.RepositoryFactory, cache *memory.PlanCache, logger logger.ILogger) IPlanCatalogService {
	return &planCatalogService{
		uowFactory: uowFactory,
		cache:      cache,
		logger:     logger,
	}
}

func (s *planCatalogService) GetPlan(ctx context.Context, code string) (*entity.MembershipPlan, error) {
	if plan, ok := s.cache.GetPlan(code); ok {
		return plan, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	plan, err := uow.MembershipPlanRepository().FindOne(ctx, specification.ByPlanCode{Code: code})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, entity.ErrPlanNotFound
	}

	s.cache.SavePlan(plan)
	return plan, nil
}

func (s *planCatalogService) ListPlans(ctx context.Context) ([]*entity.MembershipPlan, error) {
	if plans, ok := s.cache.GetActivePlans(); ok {
		return plans, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	plans, err := uow.MembershipPlanRepository().FindAll(ctx,
		specification.ActivePlans{},
		specification.OrderBy{Field: "interval_count"},
	)
	if err != nil {
		return nil, err
	}

	s.cache.SaveActivePlans(plans)
	return plans, nil
}

// SeedDefaultPlans inserts missing default plans and brings existing ones in line
// with DefaultPlans. Allowance changes only reach cycles created afterwards.
func (s *planCatalogService) SeedDefaultPlans(ctx context.Context) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	repo := uow.MembershipPlanRepository()
	for _, plan := range DefaultPlans() {
		existing, err := repo.FindOne(ctx, specification.ByPlanCode{Code: plan.Code})
		if err != nil {
			return err
		}
		if existing == nil {
			if err := repo.Create(ctx, plan); err != nil {
				return err
			}
			s.logger.Info("PLAN_CATALOG", "Seeded plan", map[string]interface{}{"code": plan.Code})
			continue
		}

		plan.Id = existing.Id
		plan.CreatedAt = existing.CreatedAt
		if err := repo.Update(ctx, plan); err != nil {
			return err
		}
	}

	if err := uow.Commit(); err != nil {
		return err
	}
	s.cache.Flush()
	return nil
}
