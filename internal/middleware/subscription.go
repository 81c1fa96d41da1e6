package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/planvault/backend/internal/billing"
	"github.com/planvault/backend/internal/dto"
)

// SubscriptionRequired is the access guard for protected product
// routes. It reads the user's current subscription, lazily expiring a
// lapsed one, and blocks with a stable reason code when access is
// denied. On success the decision is stashed in locals for handlers
// that want the warning flag or the subscription itself.
func SubscriptionRequired(billingService *billing.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		decision, err := billingService.CheckAccess(userID)
		if err != nil {
			slog.Error("access check failed", "user_id", userID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to check subscription",
			})
		}

		if !decision.Allow {
			return c.Status(fiber.StatusForbidden).JSON(dto.AccessDeniedResponse{
				Error:  true,
				Reason: decision.Reason,
			})
		}

		c.Locals("access_decision", decision)
		return c.Next()
	}
}

// GetAccessDecision returns the guard's decision stored by
// SubscriptionRequired, or nil when the guard did not run.
func GetAccessDecision(c *fiber.Ctx) *billing.Decision {
	if d, ok := c.Locals("access_decision").(*billing.Decision); ok {
		return d
	}
	return nil
}
