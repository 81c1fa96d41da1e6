package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyEvent authenticates a raw webhook payload against the shared
// endpoint secret (timestamp + HMAC over the raw body). The payload must
// be the exact bytes Stripe sent; re-serialized JSON will not verify.
func VerifyEvent(payload []byte, sigHeader, secret string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return &event, nil
}
