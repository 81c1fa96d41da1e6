package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"
)

// ProviderSubscription is the provider-neutral view of a remote
// subscription, used to reconcile fields a webhook payload does not
// carry (checkout.session.completed has no period end).
type ProviderSubscription struct {
	ID                string
	Status            string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	PriceID           string
}

// ProviderClient is the outbound payment-provider surface the engine
// consumes. The Stripe implementation lives below; tests inject fakes.
type ProviderClient interface {
	RetrieveSubscription(ctx context.Context, providerSubID string) (*ProviderSubscription, error)
	// CancelAtPeriodEnd schedules a cancellation at the provider. The
	// local flag is not flipped here; it lands through the webhook.
	CancelAtPeriodEnd(ctx context.Context, providerSubID string) error
}

type stripeClient struct{}

// NewStripeClient returns a ProviderClient backed by the Stripe API.
// stripe.Key must be set by the caller before use.
func NewStripeClient() ProviderClient {
	return &stripeClient{}
}

func (c *stripeClient) RetrieveSubscription(ctx context.Context, providerSubID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(providerSubID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve stripe subscription %s: %w", providerSubID, err)
	}

	ps := &ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			ps.CurrentPeriodEnd = &t
		}
		if item.Price != nil {
			ps.PriceID = item.Price.ID
		}
	}
	return ps, nil
}

func (c *stripeClient) CancelAtPeriodEnd(ctx context.Context, providerSubID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := subscription.Update(providerSubID, params); err != nil {
		return fmt.Errorf("cancel stripe subscription %s: %w", providerSubID, err)
	}
	return nil
}
