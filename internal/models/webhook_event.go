package models

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook event outcome values recorded after processing.
const (
	// WebhookOutcomeProcessed marks an event that mutated billing state.
	WebhookOutcomeProcessed = "processed"
	// WebhookOutcomeNoop marks an event recognized but requiring no change.
	WebhookOutcomeNoop = "noop"
	// WebhookOutcomeIgnored marks an event kind this system does not consume.
	WebhookOutcomeIgnored = "ignored"
	// WebhookOutcomeFailed marks an event whose reconciliation failed.
	WebhookOutcomeFailed = "failed"
)

// WebhookEvent records a received processor event for auditing. Duplicate
// deliveries of the same external event ID update the existing row and bump
// the attempt counter.
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ExternalEventID string `gorm:"type:text;not null;uniqueIndex"` // Processor event ID.
	Kind            string `gorm:"type:varchar(64);not null"`      // Processor event type.

	Payload datatypes.JSON `gorm:"type:jsonb"` // Raw event payload as received.

	Outcome string `gorm:"type:varchar(32);not null"` // Processing outcome.
	Error   string `gorm:"type:text"`                 // Failure detail, if any.

	Attempts int `gorm:"not null;default:1"` // Delivery attempts observed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // First delivery timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last delivery timestamp.
}
