package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/planvault/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeUserWithPlan(repo *fakeRepo, plan models.Plan) uuid.UUID {
	repo.addPlan(plan)
	userID := uuid.New()
	pid := plan.ID
	end := testNow.AddDate(0, 1, 0)
	repo.addSubscription(models.Subscription{
		UserID:           userID,
		PlanID:           &pid,
		Status:           models.SubStatusActive,
		CurrentPeriodEnd: &end,
	})
	return userID
}

func TestCreateProjectUnderLimit(t *testing.T) {
	repo := newFakeRepo()
	userID := activeUserWithPlan(repo, models.Plan{ID: 1, Name: "Basic", ProjectLimit: 3})
	svc := newTestService(repo, nil)

	p, err := svc.CreateProject(userID, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", p.Name)
	assert.True(t, p.IsActive)
}

func TestCreateProjectAtCeiling(t *testing.T) {
	repo := newFakeRepo()
	userID := activeUserWithPlan(repo, models.Plan{ID: 1, Name: "Basic", ProjectLimit: 3})
	for i := 0; i < 3; i++ {
		repo.addProject(models.Project{UserID: userID, Name: fmt.Sprintf("p-%d", i), IsActive: true})
	}
	svc := newTestService(repo, nil)

	_, err := svc.CreateProject(userID, "overflow")
	assert.ErrorIs(t, err, ErrLimitReached)
}

func TestCreateProjectInactiveProjectsDoNotCount(t *testing.T) {
	repo := newFakeRepo()
	userID := activeUserWithPlan(repo, models.Plan{ID: 1, Name: "Basic", ProjectLimit: 3})
	repo.addProject(models.Project{UserID: userID, Name: "live-1", IsActive: true})
	repo.addProject(models.Project{UserID: userID, Name: "live-2", IsActive: true})
	for i := 0; i < 5; i++ {
		repo.addProject(models.Project{UserID: userID, Name: fmt.Sprintf("parked-%d", i), IsActive: false})
	}
	svc := newTestService(repo, nil)

	_, err := svc.CreateProject(userID, "third")
	require.NoError(t, err, "only active projects count against the ceiling")
}

func TestCreateProjectDeniedWithoutEntitlement(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	_, err := svc.CreateProject(uuid.New(), "nope")
	var denied *AccessDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, ReasonNoSubscription, denied.Reason)
}

func TestCreateProjectDeniedAfterGraceExpiry(t *testing.T) {
	repo := newFakeRepo()
	graceEnd := testNow.Add(-time.Hour)
	sub := repo.addSubscription(models.Subscription{
		UserID:         uuid.New(),
		Status:         models.SubStatusPastDue,
		GracePeriodEnd: &graceEnd,
	})
	svc := newTestService(repo, nil)

	_, err := svc.CreateProject(sub.UserID, "nope")
	var denied *AccessDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, ReasonPastDueGraceExpired, denied.Reason)
}

func TestCreateProjectAllowedDuringGrace(t *testing.T) {
	repo := newFakeRepo()
	repo.addPlan(models.Plan{ID: 1, Name: "Basic", ProjectLimit: 3})
	pid := uint(1)
	graceEnd := testNow.AddDate(0, 0, 2)
	sub := repo.addSubscription(models.Subscription{
		UserID:         uuid.New(),
		PlanID:         &pid,
		Status:         models.SubStatusPastDue,
		GracePeriodEnd: &graceEnd,
	})
	svc := newTestService(repo, nil)

	_, err := svc.CreateProject(sub.UserID, "grace-create")
	require.NoError(t, err, "grace period preserves full access, including writes")
}

func TestCreateProjectMissingPlanMeansZeroCeiling(t *testing.T) {
	repo := newFakeRepo()
	deletedPlanID := uint(99)
	end := testNow.AddDate(0, 1, 0)
	sub := repo.addSubscription(models.Subscription{
		UserID:           uuid.New(),
		PlanID:           &deletedPlanID,
		Status:           models.SubStatusActive,
		CurrentPeriodEnd: &end,
	})
	svc := newTestService(repo, nil)

	_, err := svc.CreateProject(sub.UserID, "nope")
	assert.ErrorIs(t, err, ErrLimitReached, "a dangling plan reference degrades to ceiling zero, not a crash")
}

func TestUsageFor(t *testing.T) {
	repo := newFakeRepo()
	userID := activeUserWithPlan(repo, models.Plan{ID: 1, Name: "Basic", ProjectLimit: 3})
	repo.addProject(models.Project{UserID: userID, Name: "one", IsActive: true})
	repo.addProject(models.Project{UserID: userID, Name: "parked", IsActive: false})
	svc := newTestService(repo, nil)

	usage, err := svc.UsageFor(userID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.ProjectsUsed)
	assert.Equal(t, 3, usage.ProjectLimit)
}

func TestStartTrial(t *testing.T) {
	repo := newFakeRepo()
	repo.addPlan(models.Plan{ID: 1, Name: "Basic", GracePeriodDays: 3, ProjectLimit: 3})
	svc := newTestService(repo, nil)
	userID := uuid.New()

	sub, err := svc.StartTrial(userID, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusTrialing, sub.Status)
	assert.Empty(t, sub.StripeSubscriptionID)
	assert.Equal(t, 3, sub.GraceDaysSnapshot)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(testNow.AddDate(0, 0, 7)))
}

func TestCancelCurrentLocalTrial(t *testing.T) {
	repo := newFakeRepo()
	end := testNow.AddDate(0, 0, 7)
	sub := repo.addSubscription(models.Subscription{
		UserID:           uuid.New(),
		Status:           models.SubStatusTrialing,
		CurrentPeriodEnd: &end,
	})
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	require.NoError(t, svc.CancelCurrent(context.Background(), sub.UserID))
	assert.Equal(t, models.SubStatusCanceled, repo.subByID(sub.ID).Status)
	assert.Empty(t, provider.canceled, "no provider call for a local-only trial")
}

func TestCancelCurrentProviderBacked(t *testing.T) {
	repo := newFakeRepo()
	end := testNow.AddDate(0, 1, 0)
	sub := repo.addSubscription(models.Subscription{
		UserID:               uuid.New(),
		StripeSubscriptionID: "sub_abc",
		Status:               models.SubStatusActive,
		CurrentPeriodEnd:     &end,
	})
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	require.NoError(t, svc.CancelCurrent(context.Background(), sub.UserID))
	assert.Equal(t, []string{"sub_abc"}, provider.canceled)
	assert.Equal(t, models.SubStatusActive, repo.subByID(sub.ID).Status,
		"local status flips via webhook, not here")
}

func TestCancelCurrentTerminal(t *testing.T) {
	repo := newFakeRepo()
	sub := repo.addSubscription(models.Subscription{
		UserID: uuid.New(),
		Status: models.SubStatusExpired,
	})
	svc := newTestService(repo, nil)

	err := svc.CancelCurrent(context.Background(), sub.UserID)
	assert.ErrorIs(t, err, ErrTerminalState)
}
