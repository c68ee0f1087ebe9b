package events

// Ledger events, published after the transaction that produced them commits.
const (
	AllowanceGranted  = "ALLOWANCE_GRANTED"
	AllowanceConsumed = "ALLOWANCE_CONSUMED"
	AllowanceRestored = "ALLOWANCE_RESTORED"
	AllowanceExpired  = "ALLOWANCE_EXPIRED"

	SubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	SubscriptionRenewed   = "SUBSCRIPTION_RENEWED"
	SubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
	SubscriptionPastDue   = "SUBSCRIPTION_PAST_DUE"
)

// Consumed from the booking side.
const (
	AppointmentCancelled = "APPOINTMENT_CANCELLED"
)
