package models

import "time"

// Plan is an immutable catalog entry. Rows are created by admins and
// never mutated by the billing engine; subscriptions snapshot the grace
// window at creation time instead of reading it back from here.
type Plan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Price           int64     `gorm:"not null" json:"price"` // cents
	DurationMonths  int       `gorm:"not null" json:"duration_months"`
	StripePriceID   string    `gorm:"size:255" json:"stripe_price_id"`
	GracePeriodDays int       `gorm:"default:0" json:"grace_period_days"`
	ProjectLimit    int       `gorm:"default:0" json:"project_limit"`
	CreatedAt       time.Time `json:"created_at"`
}
