package service

import (
	"context"
	"time"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/repository/specification"
	"membership-ledger-be/internal/repository/unitofwork"
	"membership-ledger-be/internal/tracer"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ICoverageEvaluator previews whether a patient's membership pays for an appointment.
// It never writes, so booking pages may call it as often as they like.
type ICoverageEvaluator interface {
	CheckCoverage(ctx context.Context, patientId int64, price decimal.Decimal, appointmentDate *time.Time) (*entity.CoverageResult, error)
}

type coverageEvaluator struct {
	uowFactory unitofwork.RepositoryFactory
	clock      func() time.Time
}

func NewCoverageEvaluator(uowFactory unitofwork.RepositoryFactory) ICoverageEvaluator {
	return &coverageEvaluator{
		uowFactory: uowFactory,
		clock:      time.Now,
	}
}

func (e *coverageEvaluator) CheckCoverage(ctx context.Context, patientId int64, price decimal.Decimal, appointmentDate *time.Time) (*entity.CoverageResult, error) {
	if !price.IsPositive() {
		return nil, entity.ErrInvalidPrice
	}
	if patientId <= 0 {
		return nil, entity.ErrInvalidPatient
	}

	ctx, span := tracer.Tracer().Start(ctx, "coverage.CheckCoverage")
	defer span.End()
	span.SetAttributes(attribute.Int64("patient.id", patientId))

	at := e.clock()
	if appointmentDate != nil {
		at = *appointmentDate
	}

	uow := e.uowFactory.NewUnitOfWork(ctx)

	subscription, err := e.findCoveringSubscription(ctx, uow, patientId, at)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return entity.NotCovered(price, 0, entity.ReasonNoActiveSubscription), nil
	}

	cycle, err := uow.AllowanceCycleRepository().FindOne(ctx,
		specification.BySubscriptionID{SubscriptionID: subscription.Id},
		specification.ActiveCycle{},
	)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return entity.NotCovered(price, 0, entity.ReasonNoActiveCycle), nil
	}

	var result *entity.CoverageResult
	switch {
	case !cycle.Contains(at):
		result = entity.NotCovered(price, cycle.AllowanceRemaining, entity.ReasonOutsideCyclePeriod)
	case cycle.AllowanceRemaining <= 0:
		result = entity.NotCovered(price, 0, entity.ReasonAllowanceExhausted)
	default:
		result = entity.FullyCovered(price, 1, cycle.AllowanceRemaining-1)
	}

	result.SubscriptionId = &subscription.Id
	result.CycleId = &cycle.Id
	span.SetAttributes(attribute.Bool("coverage.covered", result.IsCovered))
	return result, nil
}

// findCoveringSubscription picks the newest subscription that still entitles the
// patient at the given instant. past_due subscriptions never qualify.
func (e *coverageEvaluator) findCoveringSubscription(ctx context.Context, uow unitofwork.UnitOfWork, patientId int64, at time.Time) (*entity.MembershipSubscription, error) {
	subscriptions, err := uow.MembershipSubscriptionRepository().FindAll(ctx,
		specification.ByPatientID{PatientID: patientId},
		specification.ByStatuses{Statuses: []string{
			string(entity.SubscriptionStatusActive),
			string(entity.SubscriptionStatusCancelled),
		}},
		specification.OrderBy{Field: "activated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}
	for _, s := range subscriptions {
		if s.CoversDate(at) {
			return s, nil
		}
	}
	return nil, nil
}
