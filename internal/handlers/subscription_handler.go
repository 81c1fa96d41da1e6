package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/planvault/backend/internal/billing"
	"github.com/planvault/backend/internal/dto"
	"github.com/planvault/backend/internal/middleware"
	"github.com/planvault/backend/internal/models"
	"gorm.io/gorm"
)

type SubscriptionHandler struct {
	db             *gorm.DB
	billingService *billing.Service
}

func NewSubscriptionHandler(db *gorm.DB, billingService *billing.Service) *SubscriptionHandler {
	return &SubscriptionHandler{db: db, billingService: billingService}
}

// Current returns the user's latest subscription row, or 404 when the
// user never had one.
func (h *SubscriptionHandler) Current(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	sub, err := h.billingService.Current(userID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "No subscription found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch subscription",
		})
	}

	return c.JSON(h.toResponse(sub))
}

// Cancel schedules a cancellation at the payment provider; the local
// status change arrives through the webhook pipeline.
func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	if err := h.billingService.CancelCurrent(c.Context(), userID); err != nil {
		switch {
		case errors.Is(err, billing.ErrSubscriptionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "No subscription found",
			})
		case errors.Is(err, billing.ErrTerminalState):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: "Subscription is already canceled or expired",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to cancel subscription",
			})
		}
	}

	return c.JSON(fiber.Map{"message": "Cancellation scheduled"})
}

func (h *SubscriptionHandler) toResponse(sub *models.Subscription) dto.SubscriptionResponse {
	resp := dto.SubscriptionResponse{
		ID:                sub.ID,
		Status:            sub.Status,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		GracePeriodEnd:    sub.GracePeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		GraceWarning:      billing.InGrace(sub, time.Now().UTC()),
	}
	if sub.PlanID != nil {
		var plan models.Plan
		if err := h.db.First(&plan, "id = ?", *sub.PlanID).Error; err == nil {
			resp.Plan = plan.Name
		}
	}
	return resp
}
