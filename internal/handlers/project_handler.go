package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/planvault/backend/internal/billing"
	"github.com/planvault/backend/internal/dto"
	"github.com/planvault/backend/internal/middleware"
	"github.com/planvault/backend/internal/models"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db             *gorm.DB
	billingService *billing.Service
}

func NewProjectHandler(db *gorm.DB, billingService *billing.Service) *ProjectHandler {
	return &ProjectHandler{db: db, billingService: billingService}
}

// Create goes through the limit enforcer: the count-and-insert is
// atomic per user, so concurrent creates cannot overshoot the ceiling.
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Project name required",
		})
	}

	project, err := h.billingService.CreateProject(userID, req.Name)
	if err != nil {
		if errors.Is(err, billing.ErrLimitReached) {
			return c.Status(fiber.StatusForbidden).JSON(dto.AccessDeniedResponse{
				Error: true, Reason: billing.ReasonLimitReached,
			})
		}
		var denied *billing.AccessDeniedError
		if errors.As(err, &denied) {
			return c.Status(fiber.StatusForbidden).JSON(dto.AccessDeniedResponse{
				Error: true, Reason: denied.Reason,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to create project",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.ProjectResponse{
		ID:        project.ID,
		Name:      project.Name,
		IsActive:  project.IsActive,
		CreatedAt: project.CreatedAt,
	})
}

func (h *ProjectHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var projects []models.Project
	if err := h.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&projects).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch projects",
		})
	}

	resp := make([]dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, dto.ProjectResponse{
			ID:        p.ID,
			Name:      p.Name,
			IsActive:  p.IsActive,
			CreatedAt: p.CreatedAt,
		})
	}
	return c.JSON(resp)
}

func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	projectID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid project id",
		})
	}

	if err := h.db.Where("id = ? AND user_id = ?", projectID, userID).Delete(&models.Project{}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete project",
		})
	}

	return c.JSON(fiber.Map{"message": "Project deleted"})
}
