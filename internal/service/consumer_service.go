// FILE: internal/service/consumer_service.go
package service

import (
	"context"

	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/repository/cache"
	"membership-ledger-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// IEventForwarder is the outbound bus for the notification side, NATS in production.
type IEventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	forwarder   IEventForwarder
	statusCache cache.AllowanceStatusCache
	logger      logger.ILogger
}

// NewConsumerService drains committed ledger events. forwarder may be nil when
// NATS is unavailable; the cache is still invalidated.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	forwarder IEventForwarder,
	statusCache cache.AllowanceStatusCache,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		forwarder:   forwarder,
		statusCache: statusCache,
		logger:      logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks. The ledger rows are already committed, and a nack on
// the in-process channel would redeliver immediately in a tight loop.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		cs.logger.Error("LEDGER_CONSUMER", "Failed to unmarshal ledger event", map[string]interface{}{"message_id": msg.UUID, "error": err.Error()})
		return
	}

	if patientId, ok := payloadInt64(event.Data, "patient_id"); ok && patientId > 0 {
		cs.statusCache.Invalidate(ctx, patientId)
	}

	if cs.forwarder == nil {
		return
	}
	if err := cs.forwarder.Publish(ctx, event); err != nil {
		cs.logger.Error("LEDGER_CONSUMER", "Failed to forward ledger event", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}
	cs.logger.Debug("LEDGER_CONSUMER", "Forwarded ledger event", map[string]interface{}{"type": event.Type})
}
