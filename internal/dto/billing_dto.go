package dto

import "time"

// AccessDeniedResponse is the stable 403 body protected routes return.
// Reason is one of the fixed guard codes, never a raw internal error.
type AccessDeniedResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

type SubscriptionResponse struct {
	ID                uint       `json:"id"`
	Status            string     `json:"status"`
	Plan              string     `json:"plan,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	GracePeriodEnd    *time.Time `json:"grace_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	GraceWarning      bool       `json:"grace_warning"`
}

type UsageResponse struct {
	ProjectsUsed int `json:"projects_used"`
	ProjectLimit int `json:"project_limit"`
}

type MeResponse struct {
	User         UserResponse          `json:"user"`
	Subscription *SubscriptionResponse `json:"subscription"`
	Usage        *UsageResponse        `json:"usage"`
}

type CreatePlanRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Price           int64  `json:"price" validate:"gte=0"`
	DurationMonths  int    `json:"duration_months" validate:"required,gte=1"`
	StripePriceID   string `json:"stripe_price_id"`
	GracePeriodDays int    `json:"grace_period_days" validate:"gte=0"`
	ProjectLimit    int    `json:"project_limit" validate:"gte=0"`
}
