package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/planvault/backend/internal/billing"
	"github.com/planvault/backend/internal/config"
	"github.com/planvault/backend/internal/dto"
)

type WebhookHandler struct {
	billingService *billing.Service
	webhookSecret  string
}

func NewWebhookHandler(billingService *billing.Service, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		billingService: billingService,
		webhookSecret:  cfg.StripeWebhookSecret,
	}
}

// HandleStripe is the single inbound notification endpoint. The body
// bytes go to the verifier exactly as received; parsing happens only
// after the signature clears. 200 acknowledges, 400 rejects without
// retry, 500 asks Stripe to redeliver.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	event, err := billing.VerifyEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		slog.Warn("webhook signature verification failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid webhook signature",
		})
	}

	if err := h.billingService.ProcessEvent(c.Context(), event); err != nil {
		slog.Error("webhook processing failed",
			"event_id", event.ID, "event_type", string(event.Type), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process webhook event",
		})
	}

	slog.Info("webhook processed", "event_id", event.ID, "event_type", string(event.Type))
	return c.JSON(fiber.Map{"received": true})
}
