package service

import (
	"context"
	"strings"
	"time"

	"membership-ledger-be/internal/config"
	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/repository/specification"
	"membership-ledger-be/internal/repository/unitofwork"
	"membership-ledger-be/internal/tracer"
	"membership-ledger-be/pkg/events"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// SubscriptionActivation carries what the billing provider reports for a new subscription.
type SubscriptionActivation struct {
	ProviderSubscriptionId string
	ProviderCustomerId     string
	PlanId                 string
	PatientId              int64
	PeriodStart            time.Time
	PeriodEnd              time.Time
}

// ISubscriptionLifecycleService applies billing signals to subscriptions.
// Subscriptions are addressed by the billing provider's reference.
//
//	active -> cancelled (terminal)
//	active <-> past_due
//	past_due -> cancelled
type ISubscriptionLifecycleService interface {
	ActivateSubscription(ctx context.Context, req SubscriptionActivation) (*entity.MembershipSubscription, error)
	RenewSubscription(ctx context.Context, providerRef string, start, end time.Time) (*entity.AllowanceCycle, error)
	CancelSubscription(ctx context.Context, providerRef string, cancelledAt, endsAt time.Time) error
	MarkPastDue(ctx context.Context, providerRef string) error
}

type subscriptionLifecycleService struct {
	uowFactory unitofwork.RepositoryFactory
	plans      IPlanCatalogService
	publisher  ILedgerEventPublisher
	cfg        config.LedgerConfig
	logger     logger.ILogger
	clock      func() time.Time
}

func NewSubscriptionLifecycleService(
	uowFactory unitofwork.RepositoryFactory,
	plans IPlanCatalogService,
	publisher ILedgerEventPublisher,
	cfg config.LedgerConfig,
	logger logger.ILogger,
) ISubscriptionLifecycleService {
	return &subscriptionLifecycleService{
		uowFactory: uowFactory,
		plans:      plans,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
		clock:      time.Now,
	}
}

// ActivateSubscription creates the subscription and its first cycle together.
// Activating a provider reference that already exists returns the stored subscription.
func (s *subscriptionLifecycleService) ActivateSubscription(ctx context.Context, req SubscriptionActivation) (*entity.MembershipSubscription, error) {
	if strings.TrimSpace(req.ProviderSubscriptionId) == "" {
		return nil, entity.ErrMissingProviderRef
	}
	if req.PatientId <= 0 {
		return nil, entity.ErrInvalidPatient
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, entity.ErrInvalidPeriod
	}

	ctx, span := tracer.Tracer().Start(ctx, "lifecycle.ActivateSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("subscription.provider_ref", req.ProviderSubscriptionId))

	plan, err := s.plans.GetPlan(ctx, req.PlanId)
	if err != nil {
		return nil, err
	}

	txCtx, uow, cancel, err := beginLedgerTx(ctx, s.uowFactory, s.cfg)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer uow.Rollback()

	subRepo := uow.MembershipSubscriptionRepository()
	existing, err := subRepo.FindOne(txCtx, specification.ByProviderSubscriptionID{ProviderSubscriptionID: req.ProviderSubscriptionId})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock().UTC()
	subscription := &entity.MembershipSubscription{
		PatientId:              req.PatientId,
		PlanId:                 plan.Code,
		ProviderSubscriptionId: req.ProviderSubscriptionId,
		ProviderCustomerId:     req.ProviderCustomerId,
		Status:                 entity.SubscriptionStatusActive,
		CurrentPeriodStart:     req.PeriodStart.UTC(),
		CurrentPeriodEnd:       req.PeriodEnd.UTC(),
		ActivatedAt:            now,
	}
	if err := subRepo.Create(txCtx, subscription); err != nil {
		if errors.Is(err, entity.ErrDuplicateRecord) {
			return nil, errors.Wrap(entity.ErrConcurrencyConflict, err.Error())
		}
		return nil, err
	}

	_, evts, err := grantCycle(txCtx, uow, subscription, plan, req.PeriodStart, req.PeriodEnd, entity.EventReasonInitialGrant)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("LIFECYCLE", "Subscription activated", map[string]interface{}{
		"subscription_id": subscription.Id.String(),
		"patient_id":      subscription.PatientId,
		"plan_id":         subscription.PlanId,
	})
	out := []events.Event{subscriptionMessage(events.SubscriptionActivated, subscription, now)}
	s.publisher.Publish(ctx, append(out, allowanceMessages(subscription.PatientId, evts)...)...)
	return subscription, nil
}

// RenewSubscription moves the subscription to a new paid period and rolls the cycle.
// A renewal for the period the active cycle already starts at is a redelivery: it only
// clears past_due.
func (s *subscriptionLifecycleService) RenewSubscription(ctx context.Context, providerRef string, start, end time.Time) (*entity.AllowanceCycle, error) {
	if !end.After(start) {
		return nil, entity.ErrInvalidPeriod
	}

	ctx, span := tracer.Tracer().Start(ctx, "lifecycle.RenewSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("subscription.provider_ref", providerRef))

	snapshot, err := s.uowFactory.NewUnitOfWork(ctx).MembershipSubscriptionRepository().
		FindOne(ctx, specification.ByProviderSubscriptionID{ProviderSubscriptionID: providerRef})
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, entity.ErrSubscriptionNotFound
	}
	plan, err := s.plans.GetPlan(ctx, snapshot.PlanId)
	if err != nil {
		return nil, err
	}

	txCtx, uow, cancel, err := beginLedgerTx(ctx, s.uowFactory, s.cfg)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer uow.Rollback()

	current, err := uow.AllowanceCycleRepository().FindActiveForUpdate(txCtx, snapshot.Id)
	if err != nil {
		return nil, err
	}

	subscription, err := uow.MembershipSubscriptionRepository().FindOne(txCtx,
		specification.ByID{ID: snapshot.Id},
		specification.ForUpdate{},
	)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, entity.ErrSubscriptionNotFound
	}
	if subscription.Status == entity.SubscriptionStatusCancelled {
		return nil, errors.Wrapf(entity.ErrInvalidTransition, "cannot renew %s subscription", subscription.Status)
	}

	now := s.clock().UTC()
	redelivery := current != nil && current.CycleStart.Equal(start.UTC())
	if redelivery {
		if subscription.Status != entity.SubscriptionStatusPastDue {
			return current, nil
		}
		subscription.Status = entity.SubscriptionStatusActive
		if err := uow.MembershipSubscriptionRepository().Update(txCtx, subscription); err != nil {
			return nil, err
		}
		if err := uow.Commit(); err != nil {
			return nil, err
		}
		s.publisher.Publish(ctx, subscriptionMessage(events.SubscriptionRenewed, subscription, now))
		return current, nil
	}

	subscription.Status = entity.SubscriptionStatusActive
	subscription.CurrentPeriodStart = start.UTC()
	subscription.CurrentPeriodEnd = end.UTC()
	if err := uow.MembershipSubscriptionRepository().Update(txCtx, subscription); err != nil {
		return nil, err
	}

	cycle, evts, err := renewCycle(txCtx, uow, subscription, plan, start, end)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("LIFECYCLE", "Subscription renewed", map[string]interface{}{
		"subscription_id": subscription.Id.String(),
		"cycle_id":        cycle.Id.String(),
		"granted":         cycle.AllowanceGranted,
	})
	out := []events.Event{subscriptionMessage(events.SubscriptionRenewed, subscription, now)}
	s.publisher.Publish(ctx, append(out, allowanceMessages(subscription.PatientId, evts)...)...)
	return cycle, nil
}

// CancelSubscription ends the subscription at endsAt. The active cycle is left as is:
// already paid allowance stays usable until the cycle ends. A zero endsAt means the
// end of the current period.
func (s *subscriptionLifecycleService) CancelSubscription(ctx context.Context, providerRef string, cancelledAt, endsAt time.Time) error {
	ctx, span := tracer.Tracer().Start(ctx, "lifecycle.CancelSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("subscription.provider_ref", providerRef))

	return s.transition(ctx, providerRef, entity.SubscriptionStatusCancelled, events.SubscriptionCancelled, func(sub *entity.MembershipSubscription) {
		if cancelledAt.IsZero() {
			cancelledAt = s.clock()
		}
		if endsAt.IsZero() {
			endsAt = sub.CurrentPeriodEnd
		}
		c := cancelledAt.UTC()
		e := endsAt.UTC()
		sub.CancelledAt = &c
		sub.EndsAt = &e
	})
}

func (s *subscriptionLifecycleService) MarkPastDue(ctx context.Context, providerRef string) error {
	ctx, span := tracer.Tracer().Start(ctx, "lifecycle.MarkPastDue")
	defer span.End()
	span.SetAttributes(attribute.String("subscription.provider_ref", providerRef))

	return s.transition(ctx, providerRef, entity.SubscriptionStatusPastDue, events.SubscriptionPastDue, nil)
}

// transition applies a status change that touches no cycle. Repeating the change
// the subscription is already in is a no-op.
func (s *subscriptionLifecycleService) transition(ctx context.Context, providerRef string, next entity.SubscriptionStatus, eventType string, mutate func(*entity.MembershipSubscription)) error {
	txCtx, uow, cancel, err := beginLedgerTx(ctx, s.uowFactory, s.cfg)
	if err != nil {
		return err
	}
	defer cancel()
	defer uow.Rollback()

	subRepo := uow.MembershipSubscriptionRepository()
	subscription, err := subRepo.FindOne(txCtx,
		specification.ByProviderSubscriptionID{ProviderSubscriptionID: providerRef},
		specification.ForUpdate{},
	)
	if err != nil {
		return err
	}
	if subscription == nil {
		return entity.ErrSubscriptionNotFound
	}
	if subscription.Status == next {
		return nil
	}
	if !subscription.CanTransitionTo(next) {
		return errors.Wrapf(entity.ErrInvalidTransition, "%s -> %s", subscription.Status, next)
	}

	previous := subscription.Status
	subscription.Status = next
	if mutate != nil {
		mutate(subscription)
	}
	if err := subRepo.Update(txCtx, subscription); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.logger.Info("LIFECYCLE", "Subscription status changed", map[string]interface{}{
		"subscription_id": subscription.Id.String(),
		"from":            string(previous),
		"to":              string(next),
	})
	s.publisher.Publish(ctx, subscriptionMessage(eventType, subscription, s.clock().UTC()))
	return nil
}
