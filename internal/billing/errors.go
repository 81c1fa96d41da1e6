package billing

import "errors"

// Error taxonomy for the lifecycle engine. Handlers map these onto HTTP
// responses; anything not in this list is treated as transient and
// surfaced as retryable so the provider redelivers.
var (
	// ErrEventAlreadyProcessed means the event id is already in the
	// ledger. Callers treat it as success: the transition happened once.
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")

	// ErrStaleEvent means the event carries an older logical timestamp
	// than the stored state. It is ignored and acknowledged; redelivery
	// would not help.
	ErrStaleEvent = errors.New("event is older than stored subscription state")

	// ErrSubscriptionNotFound means the referenced subscription does not
	// exist locally. Acknowledged, not retried.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	ErrPlanNotFound = errors.New("plan not found")

	// ErrLimitReached is a business rule violation surfaced to the end
	// user, never retried.
	ErrLimitReached = errors.New("plan limit reached")

	// ErrTerminalState means the row already reached canceled/expired
	// and can never transition again.
	ErrTerminalState = errors.New("subscription is in a terminal state")
)

// Deny reasons returned by the access guard. This is the stable,
// user-visible vocabulary; internal errors never leak through it.
const (
	ReasonNoSubscription      = "no_subscription"
	ReasonExpired             = "expired"
	ReasonPastDueGraceExpired = "past_due_grace_expired"
	ReasonLimitReached        = "limit_reached"
)
