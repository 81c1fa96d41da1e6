package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses. Canceled and expired are terminal: a new row is
// created for any future billing relationship, never a transition out.
const (
	SubStatusTrialing = "trialing"
	SubStatusActive   = "active"
	SubStatusPastDue  = "past_due"
	SubStatusCanceled = "canceled"
	SubStatusExpired  = "expired"
)

// Subscription rows are append-only history. For a given user the row
// with the greatest ID is the current subscription; older rows are only
// ever touched by their own lifecycle events. The auto-increment primary
// key is the documented ordering contract, not an accident.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID               *uint      `gorm:"index" json:"plan_id"`
	StripeSubscriptionID string     `gorm:"size:255;index" json:"stripe_subscription_id"`
	Status               string     `gorm:"size:50;not null" json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	GracePeriodEnd       *time.Time `json:"grace_period_end"`
	GraceDaysSnapshot    int        `gorm:"not null;default:0" json:"grace_days_snapshot"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	User                 User       `gorm:"foreignKey:UserID" json:"-"`
	Plan                 *Plan      `gorm:"foreignKey:PlanID;constraint:OnDelete:SET NULL" json:"-"`
}

// IsTerminal reports whether the row can never transition again.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubStatusCanceled || s.Status == SubStatusExpired
}

// Entitled reports whether the status grants access before period checks.
func (s *Subscription) Entitled() bool {
	return s.Status == SubStatusTrialing || s.Status == SubStatusActive
}
