package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planvault/backend/internal/models"
)

// StartTrial creates a trialing subscription on the given plan. Called
// once at registration; there is no provider-side object yet, so the
// correlation key stays empty until a checkout upgrades the user.
func (s *Service) StartTrial(userID uuid.UUID, planID uint, trialDays int) (*models.Subscription, error) {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	periodEnd := s.now().UTC().AddDate(0, 0, trialDays)
	pid := plan.ID
	sub := &models.Subscription{
		UserID:            userID,
		PlanID:            &pid,
		Status:            models.SubStatusTrialing,
		CurrentPeriodEnd:  &periodEnd,
		GraceDaysSnapshot: plan.GracePeriodDays,
	}
	if err := s.repo.CreateSubscription(sub); err != nil {
		return nil, fmt.Errorf("create trial subscription: %w", err)
	}

	slog.Info("trial subscription started",
		"subscription_id", sub.ID, "user_id", userID, "plan", plan.Name, "trial_days", trialDays)
	return sub, nil
}

// Current returns the user's current subscription (greatest id).
func (s *Service) Current(userID uuid.UUID) (*models.Subscription, error) {
	return s.repo.CurrentSubscription(userID)
}

// CancelCurrent schedules cancellation of the user's current
// subscription. Provider-backed subscriptions are canceled at Stripe
// and the cancel_at_period_end flag lands through the webhook; a bare
// trial is canceled locally since there is nothing remote to call.
func (s *Service) CancelCurrent(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.repo.CurrentSubscription(userID)
	if err != nil {
		return err
	}
	if sub.IsTerminal() {
		return ErrTerminalState
	}

	if sub.StripeSubscriptionID == "" {
		return s.repo.Transaction(func(tx Repository) error {
			locked, err := tx.CurrentSubscriptionForUpdate(userID)
			if err != nil {
				return err
			}
			if locked.IsTerminal() {
				return ErrTerminalState
			}
			locked.Status = models.SubStatusCanceled
			locked.GracePeriodEnd = nil
			return tx.SaveSubscription(locked)
		})
	}

	if err := s.provider.CancelAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
		return err
	}
	slog.Info("cancellation scheduled at provider",
		"subscription_id", sub.ID, "stripe_subscription_id", sub.StripeSubscriptionID)
	return nil
}

// Usage summarizes project consumption against the plan ceiling.
type Usage struct {
	ProjectsUsed int `json:"projects_used"`
	ProjectLimit int `json:"project_limit"`
}

// UsageFor reports current active-project usage for the user.
func (s *Service) UsageFor(userID uuid.UUID) (*Usage, error) {
	sub, err := s.repo.CurrentSubscription(userID)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountActiveProjects(userID)
	if err != nil {
		return nil, err
	}
	return &Usage{
		ProjectsUsed: int(active),
		ProjectLimit: s.projectLimit(s.repo, sub),
	}, nil
}
