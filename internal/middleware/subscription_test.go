package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/planvault/backend/internal/billing"
	"github.com/planvault/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subStore backs the guard with a single subscription row per test.
type subStore struct {
	sub *models.Subscription
}

func (s *subStore) Transaction(fn func(billing.Repository) error) error { return fn(s) }

func (s *subStore) GetPlan(uint) (*models.Plan, error) { return nil, billing.ErrPlanNotFound }
func (s *subStore) GetPlanByPriceID(string) (*models.Plan, error) {
	return nil, billing.ErrPlanNotFound
}

func (s *subStore) CurrentSubscription(uuid.UUID) (*models.Subscription, error) {
	if s.sub == nil {
		return nil, billing.ErrSubscriptionNotFound
	}
	cp := *s.sub
	return &cp, nil
}

func (s *subStore) CurrentSubscriptionForUpdate(userID uuid.UUID) (*models.Subscription, error) {
	return s.CurrentSubscription(userID)
}

func (s *subStore) SubscriptionByProviderID(string) (*models.Subscription, error) {
	return nil, billing.ErrSubscriptionNotFound
}
func (s *subStore) SubscriptionByProviderIDForUpdate(string) (*models.Subscription, error) {
	return nil, billing.ErrSubscriptionNotFound
}

func (s *subStore) CreateSubscription(*models.Subscription) error { return nil }
func (s *subStore) SaveSubscription(sub *models.Subscription) error {
	cp := *sub
	s.sub = &cp
	return nil
}

func (s *subStore) HasProcessedEvent(string) (bool, error)           { return false, nil }
func (s *subStore) MarkEventProcessed(*models.WebhookEvent) error    { return nil }
func (s *subStore) CountActiveProjects(uuid.UUID) (int64, error)     { return 0, nil }
func (s *subStore) CreateProject(*models.Project) error              { return nil }
func (s *subStore) ReactivateProjects(uuid.UUID, int) (int64, error) { return 0, nil }

// withClaims simulates JWTProtected by planting a parsed token.
func withClaims(userID uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"sub": userID.String()}})
		return c.Next()
	}
}

func newGuardedApp(store *subStore) *fiber.App {
	svc := billing.NewService(store, nil)
	app := fiber.New()
	app.Get("/protected", withClaims(uuid.New()), SubscriptionRequired(svc), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestSubscriptionRequiredAllowsActive(t *testing.T) {
	end := time.Now().UTC().Add(24 * time.Hour)
	store := &subStore{sub: &models.Subscription{
		ID: 1, Status: models.SubStatusActive, CurrentPeriodEnd: &end,
	}}
	app := newGuardedApp(store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubscriptionRequiredDeniesWithReason(t *testing.T) {
	tests := []struct {
		name   string
		sub    *models.Subscription
		reason string
	}{
		{
			name:   "no subscription",
			sub:    nil,
			reason: "no_subscription",
		},
		{
			name: "grace lapsed",
			sub: func() *models.Subscription {
				graceEnd := time.Now().UTC().Add(-time.Hour)
				return &models.Subscription{ID: 1, Status: models.SubStatusPastDue, GracePeriodEnd: &graceEnd}
			}(),
			reason: "past_due_grace_expired",
		},
		{
			name:   "canceled",
			sub:    &models.Subscription{ID: 1, Status: models.SubStatusCanceled},
			reason: "expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newGuardedApp(&subStore{sub: tt.sub})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var denied struct {
				Error  bool   `json:"error"`
				Reason string `json:"reason"`
			}
			require.NoError(t, json.Unmarshal(body, &denied))
			assert.True(t, denied.Error)
			assert.Equal(t, tt.reason, denied.Reason)
		})
	}
}

func TestSubscriptionRequiredLazilyExpires(t *testing.T) {
	lapsed := time.Now().UTC().Add(-time.Hour)
	store := &subStore{sub: &models.Subscription{
		ID: 1, Status: models.SubStatusActive, CurrentPeriodEnd: &lapsed,
	}}
	app := newGuardedApp(store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.SubStatusExpired, store.sub.Status, "guard writes the expiry back")
}
