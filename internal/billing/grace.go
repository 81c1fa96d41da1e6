package billing

import (
	"time"

	"github.com/planvault/backend/internal/models"
)

// InGrace reports whether a past_due subscription still grants access.
// The window is bounded by the grace length snapshotted at creation;
// access holds strictly before the deadline and lapses at it.
func InGrace(sub *models.Subscription, now time.Time) bool {
	if sub.Status != models.SubStatusPastDue || sub.GracePeriodEnd == nil {
		return false
	}
	return now.Before(*sub.GracePeriodEnd)
}
