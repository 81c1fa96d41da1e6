package database

import (
	"log/slog"

	"github.com/planvault/backend/internal/models"
	"gorm.io/gorm/clause"
)

// SeedPlans inserts the default plan catalog if it is not present.
// Existing rows are left untouched so admin edits survive restarts.
func SeedPlans() error {
	plans := []models.Plan{
		{Name: "Basic", Price: 1000, DurationMonths: 1, StripePriceID: "price_basic_id", GracePeriodDays: 3, ProjectLimit: 3},
		{Name: "Standard", Price: 2500, DurationMonths: 3, StripePriceID: "price_standard_id", GracePeriodDays: 5, ProjectLimit: 15},
		{Name: "Premium", Price: 9000, DurationMonths: 12, StripePriceID: "price_premium_id", GracePeriodDays: 7, ProjectLimit: 100},
	}

	result := DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&plans)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		slog.Info("plan catalog seeded", "plans", result.RowsAffected)
	}
	return nil
}
