package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/planvault/backend/internal/models"
)

// applyCheckoutCompleted creates the subscription row for a completed
// checkout. The plan's grace window is snapshotted here and never read
// from the catalog again, so later plan edits cannot retroactively move
// an in-flight grace period.
func (s *Service) applyCheckoutCompleted(ctx context.Context, tx Repository, session *checkoutSession) error {
	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		return fmt.Errorf("checkout session %s has no valid user_id metadata: %w", session.ID, ErrSubscriptionNotFound)
	}
	planID, err := strconv.ParseUint(session.Metadata["plan_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("checkout session %s has no valid plan_id metadata: %w", session.ID, ErrPlanNotFound)
	}

	plan, err := tx.GetPlan(uint(planID))
	if err != nil {
		return err
	}

	now := s.now().UTC()
	status := models.SubStatusActive
	periodEnd := now.AddDate(0, plan.DurationMonths, 0)

	// The checkout payload carries neither status nor period end, so
	// reconcile them from the provider. On failure fall back to the
	// plan-derived period; the next subscription.updated corrects it.
	if s.provider != nil && session.Subscription != "" {
		remote, err := s.provider.RetrieveSubscription(ctx, session.Subscription)
		if err != nil {
			slog.Warn("provider reconcile failed, using plan-derived period",
				"subscription", session.Subscription, "error", err)
		} else {
			if remote.Status == models.SubStatusTrialing {
				status = models.SubStatusTrialing
			}
			if remote.CurrentPeriodEnd != nil {
				periodEnd = *remote.CurrentPeriodEnd
			}
		}
	}

	pid := plan.ID
	sub := &models.Subscription{
		UserID:               userID,
		PlanID:               &pid,
		StripeSubscriptionID: session.Subscription,
		Status:               status,
		CurrentPeriodEnd:     &periodEnd,
		GraceDaysSnapshot:    plan.GracePeriodDays,
	}
	if err := tx.CreateSubscription(sub); err != nil {
		return err
	}

	slog.Info("subscription created",
		"subscription_id", sub.ID,
		"user_id", userID,
		"plan", plan.Name,
		"status", status,
	)
	return nil
}

// applyPaymentFailed moves an entitled subscription to past_due and
// opens the grace window from the creation-time snapshot.
func (s *Service) applyPaymentFailed(tx Repository, providerSubID string) error {
	if providerSubID == "" {
		return ErrSubscriptionNotFound
	}
	sub, err := tx.SubscriptionByProviderIDForUpdate(providerSubID)
	if err != nil {
		return err
	}
	if sub.IsTerminal() {
		return ErrTerminalState
	}
	if sub.Status == models.SubStatusPastDue {
		// Repeat failure while already past due; the original grace
		// window keeps running.
		return nil
	}

	graceEnd := s.now().UTC().AddDate(0, 0, sub.GraceDaysSnapshot)
	sub.Status = models.SubStatusPastDue
	sub.GracePeriodEnd = &graceEnd
	if err := tx.SaveSubscription(sub); err != nil {
		return err
	}

	slog.Info("subscription past due",
		"subscription_id", sub.ID,
		"grace_period_end", graceEnd,
		"grace_days", sub.GraceDaysSnapshot,
	)
	return nil
}

// applyPaymentRecovered returns a past_due subscription to active and
// closes the grace window.
func (s *Service) applyPaymentRecovered(tx Repository, providerSubID string) error {
	if providerSubID == "" {
		return ErrSubscriptionNotFound
	}
	sub, err := tx.SubscriptionByProviderIDForUpdate(providerSubID)
	if err != nil {
		return err
	}
	if sub.IsTerminal() {
		return ErrTerminalState
	}
	if sub.Status != models.SubStatusPastDue {
		// Renewal invoice for a healthy subscription; nothing to change
		// here, the period end arrives via subscription.updated.
		return nil
	}

	sub.Status = models.SubStatusActive
	sub.GracePeriodEnd = nil
	if err := tx.SaveSubscription(sub); err != nil {
		return err
	}

	slog.Info("subscription recovered", "subscription_id", sub.ID)
	return nil
}

// applySubscriptionUpdated applies provider-reported field changes.
// Deliveries are not ordered, so the apply is monotonic: an update whose
// period end is older than the stored one is discarded outright.
func (s *Service) applySubscriptionUpdated(tx Repository, event *subscriptionEvent) error {
	if event.ID == "" {
		return ErrSubscriptionNotFound
	}
	sub, err := tx.SubscriptionByProviderIDForUpdate(event.ID)
	if err != nil {
		return err
	}
	if sub.IsTerminal() {
		return ErrTerminalState
	}

	incomingEnd := event.periodEnd()
	if incomingEnd != nil && sub.CurrentPeriodEnd != nil && incomingEnd.Before(*sub.CurrentPeriodEnd) {
		return fmt.Errorf("period end %s predates stored %s: %w",
			incomingEnd.Format(time.RFC3339), sub.CurrentPeriodEnd.Format(time.RFC3339), ErrStaleEvent)
	}

	if incomingEnd != nil {
		sub.CurrentPeriodEnd = incomingEnd
	}
	sub.CancelAtPeriodEnd = event.CancelAtPeriodEnd

	if err := s.applyPlanChange(tx, sub, event.priceID()); err != nil {
		return err
	}

	if err := tx.SaveSubscription(sub); err != nil {
		return err
	}

	slog.Info("subscription updated",
		"subscription_id", sub.ID,
		"cancel_at_period_end", sub.CancelAtPeriodEnd,
	)
	return nil
}

// applyPlanChange repoints the subscription at the plan matching the
// provider price and reactivates projects on upgrade. Downgrades do not
// deactivate anything; that behavior is an open product decision.
func (s *Service) applyPlanChange(tx Repository, sub *models.Subscription, priceID string) error {
	if priceID == "" {
		return nil
	}
	newPlan, err := tx.GetPlanByPriceID(priceID)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			slog.Warn("no plan mapped to provider price", "price_id", priceID, "subscription_id", sub.ID)
			return nil
		}
		return err
	}
	if sub.PlanID != nil && *sub.PlanID == newPlan.ID {
		return nil
	}

	oldLimit := 0
	if sub.PlanID != nil {
		if oldPlan, err := tx.GetPlan(*sub.PlanID); err == nil {
			oldLimit = oldPlan.ProjectLimit
		}
	}

	pid := newPlan.ID
	sub.PlanID = &pid

	if newPlan.ProjectLimit > oldLimit {
		active, err := tx.CountActiveProjects(sub.UserID)
		if err != nil {
			return err
		}
		headroom := newPlan.ProjectLimit - int(active)
		restored, err := tx.ReactivateProjects(sub.UserID, headroom)
		if err != nil {
			return err
		}
		if restored > 0 {
			slog.Info("projects reactivated after upgrade",
				"user_id", sub.UserID, "restored", restored, "new_limit", newPlan.ProjectLimit)
		}
	}
	return nil
}

// applySubscriptionDeleted moves any non-terminal subscription to
// canceled. Canceled is terminal; a future billing relationship gets a
// brand new row.
func (s *Service) applySubscriptionDeleted(tx Repository, providerSubID string) error {
	if providerSubID == "" {
		return ErrSubscriptionNotFound
	}
	sub, err := tx.SubscriptionByProviderIDForUpdate(providerSubID)
	if err != nil {
		return err
	}
	if sub.IsTerminal() {
		return ErrTerminalState
	}

	sub.Status = models.SubStatusCanceled
	sub.GracePeriodEnd = nil
	if err := tx.SaveSubscription(sub); err != nil {
		return err
	}

	slog.Info("subscription canceled", "subscription_id", sub.ID)
	return nil
}
