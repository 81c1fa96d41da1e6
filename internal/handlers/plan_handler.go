package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/planvault/backend/internal/dto"
	"github.com/planvault/backend/internal/models"
	"gorm.io/gorm"
)

type PlanHandler struct {
	db *gorm.DB
}

func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

func (h *PlanHandler) List(c *fiber.Ctx) error {
	var plans []models.Plan
	if err := h.db.Order("id ASC").Find(&plans).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch plans",
		})
	}
	return c.JSON(plans)
}

// Create is admin-only. Plans are immutable once subscriptions snapshot
// them; new pricing means a new catalog row.
func (h *PlanHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	plan := models.Plan{
		Name:            req.Name,
		Price:           req.Price,
		DurationMonths:  req.DurationMonths,
		StripePriceID:   req.StripePriceID,
		GracePeriodDays: req.GracePeriodDays,
		ProjectLimit:    req.ProjectLimit,
	}
	if err := h.db.Create(&plan).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to create plan",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(plan)
}
