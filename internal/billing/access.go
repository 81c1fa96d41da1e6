package billing

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planvault/backend/internal/models"
)

// Decision is the access guard's answer for one request.
type Decision struct {
	Allow        bool
	Warning      bool
	Reason       string
	Subscription *models.Subscription
}

// AccessDeniedError carries a stable deny reason to the HTTP layer.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + e.Reason
}

// CheckAccess classifies the user's current subscription as allow,
// allow-with-warning or deny. It is a read path with one possible
// write: an entitled subscription whose period has lapsed is moved to
// expired before the answer is given. That write happens under the same
// row lock as webhook-driven writes, so the two paths never interleave.
func (s *Service) CheckAccess(userID uuid.UUID) (*Decision, error) {
	var decision *Decision
	err := s.repo.Transaction(func(tx Repository) error {
		sub, err := tx.CurrentSubscriptionForUpdate(userID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			decision = &Decision{Reason: ReasonNoSubscription}
			return nil
		}
		if err != nil {
			return err
		}
		decision, err = s.classify(tx, sub)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("check access for user %s: %w", userID, err)
	}
	return decision, nil
}

// classify must be called with the subscription row locked.
func (s *Service) classify(tx Repository, sub *models.Subscription) (*Decision, error) {
	now := s.now().UTC()

	// Lazy expiry: no background sweeper exists, so a lapsed entitled
	// subscription expires the first time anyone reads it.
	if sub.Entitled() && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(now) {
		sub.Status = models.SubStatusExpired
		sub.GracePeriodEnd = nil
		if err := tx.SaveSubscription(sub); err != nil {
			return nil, err
		}
		slog.Info("subscription lazily expired",
			"subscription_id", sub.ID, "period_end", sub.CurrentPeriodEnd)
		return &Decision{Reason: ReasonExpired, Subscription: sub}, nil
	}

	switch sub.Status {
	case models.SubStatusTrialing, models.SubStatusActive:
		return &Decision{Allow: true, Subscription: sub}, nil

	case models.SubStatusPastDue:
		if InGrace(sub, now) {
			return &Decision{Allow: true, Warning: true, Subscription: sub}, nil
		}
		return &Decision{Reason: ReasonPastDueGraceExpired, Subscription: sub}, nil

	default: // canceled, expired
		return &Decision{Reason: ReasonExpired, Subscription: sub}, nil
	}
}
