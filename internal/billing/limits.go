package billing

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planvault/backend/internal/models"
)

// CreateProject enforces the plan ceiling at creation time. The count
// and the insert run in one transaction with the user's current
// subscription row locked, so two concurrent creates by the same user
// cannot both squeeze past the last slot.
func (s *Service) CreateProject(userID uuid.UUID, name string) (*models.Project, error) {
	var project *models.Project
	err := s.repo.Transaction(func(tx Repository) error {
		sub, err := tx.CurrentSubscriptionForUpdate(userID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			return &AccessDeniedError{Reason: ReasonNoSubscription}
		}
		if err != nil {
			return err
		}

		decision, err := s.classify(tx, sub)
		if err != nil {
			return err
		}
		if !decision.Allow {
			return &AccessDeniedError{Reason: decision.Reason}
		}

		limit := s.projectLimit(tx, sub)
		active, err := tx.CountActiveProjects(userID)
		if err != nil {
			return err
		}
		if int(active) >= limit {
			return ErrLimitReached
		}

		project = &models.Project{
			UserID:   userID,
			Name:     name,
			IsActive: true,
		}
		return tx.CreateProject(project)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ProjectLimit exposes the ceiling for the user's current subscription.
func (s *Service) ProjectLimit(userID uuid.UUID) (int, error) {
	sub, err := s.repo.CurrentSubscription(userID)
	if err != nil {
		return 0, err
	}
	return s.projectLimit(s.repo, sub), nil
}

// projectLimit derives the ceiling from the subscription's plan. A
// missing plan (deleted from the catalog) yields a ceiling of zero
// rather than an error; the subscription row itself stays valid.
func (s *Service) projectLimit(tx Repository, sub *models.Subscription) int {
	if sub.PlanID == nil {
		slog.Warn("subscription has no plan, project limit is zero", "subscription_id", sub.ID)
		return 0
	}
	plan, err := tx.GetPlan(*sub.PlanID)
	if err != nil {
		slog.Warn("plan lookup failed, project limit is zero",
			"subscription_id", sub.ID, "plan_id", *sub.PlanID, "error", err)
		return 0
	}
	return plan.ProjectLimit
}
