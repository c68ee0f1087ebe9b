package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Stripe subscription metadata set by the checkout flow.
const (
	metadataPatientId = "patientId"
	metadataPlanId    = "planId"
)

// IBillingWebhookService verifies Stripe webhooks and applies them to the lifecycle.
type IBillingWebhookService interface {
	HandleStripeEvent(ctx context.Context, payload []byte, signature string) error
}

type billingWebhookService struct {
	lifecycle  ISubscriptionLifecycleService
	secret     string
	maxRetries int
	logger     logger.ILogger
}

func NewBillingWebhookService(lifecycle ISubscriptionLifecycleService, secret string, maxRetries int, logger logger.ILogger) IBillingWebhookService {
	return &billingWebhookService{
		lifecycle:  lifecycle,
		secret:     secret,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (s *billingWebhookService) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return errors.Wrap(entity.ErrInvalidWebhookSignature, err.Error())
	}

	switch string(event.Type) {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
	default:
		s.logger.Debug("BILLING_WEBHOOK", "Ignoring event type", map[string]interface{}{"type": string(event.Type), "id": event.ID})
		return nil
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		s.logger.Error("BILLING_WEBHOOK", "Malformed subscription object", map[string]interface{}{"id": event.ID, "error": err.Error()})
		return nil
	}

	s.logger.Info("BILLING_WEBHOOK", "Processing subscription event", map[string]interface{}{
		"type":            string(event.Type),
		"event_id":        event.ID,
		"subscription_id": sub.ID,
		"status":          string(sub.Status),
	})

	err = s.apply(ctx, string(event.Type), &sub)
	if errors.Is(err, entity.ErrSubscriptionNotFound) {
		// Subscriptions created outside the membership checkout are not ours.
		s.logger.Warn("BILLING_WEBHOOK", "Unknown subscription", map[string]interface{}{"subscription_id": sub.ID})
		return nil
	}
	return err
}

func (s *billingWebhookService) apply(ctx context.Context, eventType string, sub *stripe.Subscription) error {
	if eventType == "customer.subscription.deleted" {
		return s.cancel(ctx, sub)
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		if sub.CancelAtPeriodEnd {
			return s.cancel(ctx, sub)
		}
		return s.activateOrRenew(ctx, sub)
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return s.retry(ctx, func() error {
			return s.lifecycle.MarkPastDue(ctx, sub.ID)
		})
	case stripe.SubscriptionStatusCanceled:
		return s.cancel(ctx, sub)
	}

	// incomplete, incomplete_expired, paused: nothing has been paid for yet
	return nil
}

func (s *billingWebhookService) activateOrRenew(ctx context.Context, sub *stripe.Subscription) error {
	start := unixTime(sub.CurrentPeriodStart)
	end := unixTime(sub.CurrentPeriodEnd)

	err := s.retry(ctx, func() error {
		_, err := s.lifecycle.RenewSubscription(ctx, sub.ID, start, end)
		return err
	})
	if !errors.Is(err, entity.ErrSubscriptionNotFound) {
		return err
	}

	patientId, err := strconv.ParseInt(sub.Metadata[metadataPatientId], 10, 64)
	if err != nil || sub.Metadata[metadataPlanId] == "" {
		s.logger.Warn("BILLING_WEBHOOK", "Subscription missing membership metadata", map[string]interface{}{"subscription_id": sub.ID})
		return nil
	}

	req := SubscriptionActivation{
		ProviderSubscriptionId: sub.ID,
		PlanId:                 sub.Metadata[metadataPlanId],
		PatientId:              patientId,
		PeriodStart:            start,
		PeriodEnd:              end,
	}
	if sub.Customer != nil {
		req.ProviderCustomerId = sub.Customer.ID
	}
	return s.retry(ctx, func() error {
		_, err := s.lifecycle.ActivateSubscription(ctx, req)
		return err
	})
}

func (s *billingWebhookService) cancel(ctx context.Context, sub *stripe.Subscription) error {
	cancelledAt := unixTime(sub.CanceledAt)
	endsAt := unixTime(sub.CurrentPeriodEnd)
	if sub.EndedAt > 0 {
		endsAt = unixTime(sub.EndedAt)
	}
	return s.retry(ctx, func() error {
		return s.lifecycle.CancelSubscription(ctx, sub.ID, cancelledAt, endsAt)
	})
}

func (s *billingWebhookService) retry(ctx context.Context, op func() error) error {
	_, err := RetryOnConflict(ctx, s.maxRetries, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// unixTime maps Stripe's unset timestamps (0) to the zero time.
func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
