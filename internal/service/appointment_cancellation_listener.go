package service

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/pkg/events"
	pktNats "membership-ledger-be/pkg/nats"
)

const (
	cancellationDurable       = "membership-ledger-restore"
	defaultCancellationReason = "Appointment cancelled"
)

type IEventSubscriber interface {
	Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error
}

// IAppointmentCancellationListener restores allowance when the booking side cancels
// a covered appointment.
type IAppointmentCancellationListener interface {
	Start(ctx context.Context) error
	Handle(ctx context.Context, event events.Event) error
}

type appointmentCancellationListener struct {
	subscriber IEventSubscriber
	ledger     IAllowanceLedgerService
	maxRetries int
	logger     logger.ILogger
}

func NewAppointmentCancellationListener(subscriber IEventSubscriber, ledger IAllowanceLedgerService, maxRetries int, logger logger.ILogger) IAppointmentCancellationListener {
	return &appointmentCancellationListener{
		subscriber: subscriber,
		ledger:     ledger,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (l *appointmentCancellationListener) Start(ctx context.Context) error {
	return l.subscriber.Subscribe(ctx, pktNats.Subject(events.AppointmentCancelled), cancellationDurable, l.Handle)
}

// Handle returns an error only for failures worth redelivering. Malformed events
// are logged and dropped.
func (l *appointmentCancellationListener) Handle(ctx context.Context, event events.Event) error {
	data := event.Payload()

	appointmentId, ok := payloadInt64(data, "appointment_id")
	if !ok || appointmentId <= 0 {
		l.logger.Warn("CANCELLATION_LISTENER", "Dropping cancellation without appointment_id", map[string]interface{}{"payload": data})
		return nil
	}

	reason := defaultCancellationReason
	if r, ok := data["reason"].(string); ok && r != "" {
		reason = r
	}

	// zero restores whatever the appointment consumed
	units := 0
	if u, ok := payloadInt64(data, "units"); ok && u > 0 {
		units = int(u)
	}

	_, err := RetryOnConflict(ctx, l.maxRetries, func() (struct{}, error) {
		return struct{}{}, l.ledger.RestoreAllowance(ctx, appointmentId, reason, units)
	})
	if err != nil {
		if entity.IsRetryable(err) {
			l.logger.Warn("CANCELLATION_LISTENER", "Restoration still contended, leaving for redelivery", map[string]interface{}{"appointment_id": appointmentId})
		} else {
			l.logger.Error("CANCELLATION_LISTENER", "Restoration failed", map[string]interface{}{"appointment_id": appointmentId, "error": err.Error()})
		}
		return err
	}
	return nil
}
