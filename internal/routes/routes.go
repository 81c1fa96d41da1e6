package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/planvault/backend/internal/billing"
	"github.com/planvault/backend/internal/config"
	"github.com/planvault/backend/internal/handlers"
	"github.com/planvault/backend/internal/middleware"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	billingService *billing.Service,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	planHandler *handlers.PlanHandler,
	projectHandler *handlers.ProjectHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP. Webhooks are
	// registered before it so Stripe bursts are never throttled.
	api.Post("/webhooks/stripe", webhookHandler.HandleStripe)

	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth — public, with a stricter rate limit.
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// Plans: public listing, admin-only creation.
	api.Get("/plans", planHandler.List)
	api.Post("/plans", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg), planHandler.Create)

	// Account + billing surface (JWT required).
	api.Get("/users/me", middleware.JWTProtected(cfg), userHandler.Me)
	api.Get("/subscriptions/current", middleware.JWTProtected(cfg), subscriptionHandler.Current)
	api.Post("/subscriptions/cancel", middleware.JWTProtected(cfg), subscriptionHandler.Cancel)

	// Projects. Creation additionally passes the subscription guard;
	// the limit check itself is enforced transactionally inside the
	// billing service.
	api.Get("/projects", middleware.JWTProtected(cfg), projectHandler.List)
	api.Post("/projects", middleware.JWTProtected(cfg), middleware.SubscriptionRequired(billingService), projectHandler.Create)
	api.Delete("/projects/:id", middleware.JWTProtected(cfg), projectHandler.Delete)

	// Admin panel.
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Get("/users", userHandler.ListUsers)
}
