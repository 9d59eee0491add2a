package models

import "time"

// Product represents a sellable subscription tier.
type Product struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(255);not null"` // Product name.
	Description string `gorm:"type:text"`                  // Product description.

	Price int64 `gorm:"not null;default:0"` // Price in minor currency units.

	ExternalPriceID   *string `gorm:"type:text;uniqueIndex"` // Payment processor price ID; nil for the free tier.
	ExternalProductID *string `gorm:"type:text"`             // Payment processor product ID.

	IsActive bool `gorm:"not null;default:true"` // Whether the product can be purchased.

	// IsDefault marks the free tier users fall back to on cancellation.
	// A partial unique index added in db.Migrate guarantees at most one
	// default product exists.
	IsDefault bool `gorm:"not null;default:false"`

	SortOrder int `gorm:"not null;default:0"` // Display ordering weight.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
