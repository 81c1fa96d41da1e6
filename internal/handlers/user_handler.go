package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/planvault/backend/internal/billing"
	"github.com/planvault/backend/internal/dto"
	"github.com/planvault/backend/internal/middleware"
	"github.com/planvault/backend/internal/models"
	"github.com/planvault/backend/internal/services"
	"gorm.io/gorm"
)

type UserHandler struct {
	db             *gorm.DB
	authService    *services.AuthService
	billingService *billing.Service
}

func NewUserHandler(db *gorm.DB, authService *services.AuthService, billingService *billing.Service) *UserHandler {
	return &UserHandler{db: db, authService: authService, billingService: billingService}
}

// Me returns the account plus a subscription and usage summary.
func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	user, err := h.authService.GetUser(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "User not found",
		})
	}

	resp := dto.MeResponse{
		User: dto.UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	}

	sub, err := h.billingService.Current(userID)
	if err == nil {
		subResp := dto.SubscriptionResponse{
			ID:                sub.ID,
			Status:            sub.Status,
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			GraceWarning:      billing.InGrace(sub, time.Now().UTC()),
		}
		if sub.PlanID != nil {
			var plan models.Plan
			if err := h.db.First(&plan, "id = ?", *sub.PlanID).Error; err == nil {
				subResp.Plan = plan.Name
			}
		}
		resp.Subscription = &subResp

		if usage, err := h.billingService.UsageFor(userID); err == nil {
			resp.Usage = &dto.UsageResponse{
				ProjectsUsed: usage.ProjectsUsed,
				ProjectLimit: usage.ProjectLimit,
			}
		}
	} else if !errors.Is(err, billing.ErrSubscriptionNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to retrieve user information",
		})
	}

	return c.JSON(resp)
}

// ListUsers is admin-only.
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.authService.ListUsers()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch users",
		})
	}

	resp := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, dto.UserResponse{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Role:  u.Role,
		})
	}
	return c.JSON(resp)
}
