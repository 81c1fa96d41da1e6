package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the idempotency ledger. The primary key is the
// provider's globally unique event id; existence of a row is the sole
// signal that an event has been applied. Rows are insert-only.
type WebhookEvent struct {
	ID        string         `gorm:"size:255;primaryKey" json:"id"`
	EventType string         `gorm:"size:100" json:"event_type"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
