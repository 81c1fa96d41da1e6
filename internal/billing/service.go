package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/planvault/backend/internal/models"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/datatypes"
)

// Service is the subscription lifecycle engine. It owns every mutation
// of subscription rows; handlers and middleware only call into it.
type Service struct {
	repo     Repository
	provider ProviderClient
	now      func() time.Time
}

// NewService creates the engine from an injected repository and provider
// client. provider may be nil in contexts that never reconcile remotely.
func NewService(repo Repository, provider ProviderClient) *Service {
	return &Service{repo: repo, provider: provider, now: time.Now}
}

// checkoutSession is the minimal shape of a checkout.session.completed
// payload. Metadata carries our user and plan references.
type checkoutSession struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// subscriptionEvent is the minimal shape of customer.subscription.*
// payloads. Period end is read from the top level when present and from
// the first item otherwise.
type subscriptionEvent struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (e *subscriptionEvent) periodEnd() *time.Time {
	ts := e.CurrentPeriodEnd
	if ts == 0 && len(e.Items.Data) > 0 {
		ts = e.Items.Data[0].CurrentPeriodEnd
	}
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func (e *subscriptionEvent) priceID() string {
	if len(e.Items.Data) > 0 {
		return e.Items.Data[0].Price.ID
	}
	return ""
}

// invoiceEvent is the minimal shape of invoice.* payloads. Newer API
// versions nest the subscription reference under parent.
type invoiceEvent struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (e *invoiceEvent) subscriptionID() string {
	if e.Subscription != "" {
		return e.Subscription
	}
	return e.Parent.SubscriptionDetails.Subscription
}

// ProcessEvent runs the full notification pipeline for one verified
// event: dedup check, transition, side effects, ledger insert — all in
// a single transaction. The ledger insert is the commit point, so a
// crash mid-apply is recovered by safe redelivery, never partial replay.
//
// A nil return tells the caller to acknowledge (200). Errors are
// transient and should surface as retryable (500) so Stripe redelivers.
func (s *Service) ProcessEvent(ctx context.Context, event *stripe.Event) error {
	err := s.repo.Transaction(func(tx Repository) error {
		seen, err := tx.HasProcessedEvent(event.ID)
		if err != nil {
			return err
		}
		if seen {
			return ErrEventAlreadyProcessed
		}

		if err := s.applyEvent(ctx, tx, event); err != nil {
			if !isPermanent(err) {
				return err
			}
			// Permanently inapplicable: log, record as processed, ack.
			// Redelivery cannot help these.
			slog.Warn("webhook event not applicable",
				"event_id", event.ID,
				"event_type", string(event.Type),
				"reason", err.Error(),
			)
		}

		return tx.MarkEventProcessed(&models.WebhookEvent{
			ID:        event.ID,
			EventType: string(event.Type),
			Payload:   datatypes.JSON(event.Data.Raw),
		})
	})

	if errors.Is(err, ErrEventAlreadyProcessed) {
		// Two deliveries raced, or the dedup check short-circuited.
		// Either way the transition was applied exactly once.
		slog.Info("duplicate webhook delivery ignored", "event_id", event.ID)
		return nil
	}
	return err
}

// isPermanent reports whether redelivering the event could ever change
// the outcome.
func isPermanent(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrStaleEvent) ||
		errors.Is(err, ErrTerminalState)
}

func (s *Service) applyEvent(ctx context.Context, tx Repository, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		return s.applyCheckoutCompleted(ctx, tx, &session)

	case "invoice.payment_failed":
		var inv invoiceEvent
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return s.applyPaymentFailed(tx, inv.subscriptionID())

	case "invoice.payment_succeeded":
		var inv invoiceEvent
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return s.applyPaymentRecovered(tx, inv.subscriptionID())

	case "customer.subscription.updated":
		var sub subscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.applySubscriptionUpdated(tx, &sub)

	case "customer.subscription.deleted":
		var sub subscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.applySubscriptionDeleted(tx, sub.ID)

	default:
		slog.Info("webhook event ignored (unhandled type)",
			"event_id", event.ID, "event_type", string(event.Type))
		return nil
	}
}
