package models

import "time"

// BillingStatus represents the lifecycle state of a subscription.
type BillingStatus string

// BillingStatus constants define subscription lifecycle states.
const (
	// BillingStatusActive marks a paid, current subscription.
	BillingStatusActive BillingStatus = "active"
	// BillingStatusPastDue marks a subscription with a failed payment.
	BillingStatusPastDue BillingStatus = "past_due"
	// BillingStatusCanceled marks a terminated subscription.
	BillingStatusCanceled BillingStatus = "canceled"
)

// Billing records a user's subscription state reconciled from processor
// events. At most one row exists per user; rows are mutated in place and
// never hard-deleted.
type Billing struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"`    // Owning user record.

	ProductID uint64  `gorm:"not null;index"`       // Subscribed product ID.
	Product   Product `gorm:"foreignKey:ProductID"` // Subscribed product record.

	ExternalSubscriptionID string `gorm:"type:text;not null;uniqueIndex"` // Processor subscription ID; reconciliation key.
	ExternalCustomerID     string `gorm:"type:text;index"`                // Processor customer ID.

	Status BillingStatus `gorm:"type:varchar(32);not null;default:'active'"` // Current subscription status.

	ExpiresAt time.Time `gorm:"not null"` // Access expiry; authoritative for entitlement checks.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
