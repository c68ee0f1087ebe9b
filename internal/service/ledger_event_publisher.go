package service

import (
	"context"
	"strconv"
	"time"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ILedgerEventPublisher hands committed ledger changes to the in-process bus.
// Delivery is best-effort: the database rows are the record, events are notifications.
type ILedgerEventPublisher interface {
	Publish(ctx context.Context, evts ...events.Event)
}

type ledgerEventPublisher struct {
	publisher message.Publisher
	topic     string
	logger    logger.ILogger
}

func NewLedgerEventPublisher(publisher message.Publisher, topic string, logger logger.ILogger) ILedgerEventPublisher {
	return &ledgerEventPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

func (p *ledgerEventPublisher) Publish(ctx context.Context, evts ...events.Event) {
	if len(evts) == 0 {
		return
	}

	msgs := make([]*message.Message, 0, len(evts))
	for _, evt := range evts {
		payload, err := events.Marshal(evt)
		if err != nil {
			p.logger.Error("LEDGER_EVENTS", "Failed to encode event", map[string]interface{}{"type": evt.EventType(), "error": err.Error()})
			continue
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)
		msgs = append(msgs, msg)
	}

	if err := p.publisher.Publish(p.topic, msgs...); err != nil {
		p.logger.Error("LEDGER_EVENTS", "Failed to publish ledger events", map[string]interface{}{"count": len(msgs), "error": err.Error()})
	}
}

var allowanceEventTypes = map[entity.AllowanceEventType]string{
	entity.AllowanceEventGranted:  events.AllowanceGranted,
	entity.AllowanceEventConsumed: events.AllowanceConsumed,
	entity.AllowanceEventRestored: events.AllowanceRestored,
	entity.AllowanceEventExpired:  events.AllowanceExpired,
}

func allowanceMessage(patientId int64, e *entity.AllowanceEvent) events.Event {
	data := map[string]interface{}{
		"event_id":         e.Id.String(),
		"subscription_id":  e.SubscriptionId.String(),
		"cycle_id":         e.CycleId.String(),
		"patient_id":       patientId,
		"amount_changed":   e.AmountChanged,
		"previous_balance": e.PreviousBalance,
		"new_balance":      e.NewBalance,
		"reason":           e.Reason,
	}
	if e.AppointmentId != nil {
		data["appointment_id"] = *e.AppointmentId
	}
	return events.BaseEvent{
		Type:       allowanceEventTypes[e.EventType],
		Data:       data,
		OccurredAt: e.CreatedAt,
	}
}

func allowanceMessages(patientId int64, evts []*entity.AllowanceEvent) []events.Event {
	out := make([]events.Event, len(evts))
	for i, e := range evts {
		out[i] = allowanceMessage(patientId, e)
	}
	return out
}

func subscriptionMessage(eventType string, sub *entity.MembershipSubscription, at time.Time) events.Event {
	data := map[string]interface{}{
		"event_id":                 eventType + ":" + sub.Id.String() + ":" + strconv.FormatInt(at.UnixNano(), 10),
		"subscription_id":          sub.Id.String(),
		"provider_subscription_id": sub.ProviderSubscriptionId,
		"patient_id":               sub.PatientId,
		"plan_id":                  sub.PlanId,
		"status":                   string(sub.Status),
		"current_period_start":     sub.CurrentPeriodStart,
		"current_period_end":       sub.CurrentPeriodEnd,
	}
	if sub.EndsAt != nil {
		data["ends_at"] = *sub.EndsAt
	}
	return events.BaseEvent{Type: eventType, Data: data, OccurredAt: at}
}

// payloadInt64 reads an integer from a decoded JSON payload, where numbers arrive as float64.
func payloadInt64(data map[string]interface{}, key string) (int64, bool) {
	switch v := data[key].(type) {
	case float64:
		return int64(v), v == float64(int64(v))
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
