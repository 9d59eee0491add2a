package models

import "time"

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique email address.
	Name     string `gorm:"type:text"`                      // Display name.
	Password string `gorm:"type:text"`                      // Hashed password; empty for federated accounts.

	Age   int    `gorm:"not null;default:0"` // Self-reported age.
	Phone string `gorm:"type:text"`          // Contact phone number.

	EmailVerified bool `gorm:"not null;default:false"` // Whether the email has been verified.
	IsAdmin       bool `gorm:"not null;default:false"` // Whether the user can access admin endpoints.
	Active        bool `gorm:"not null;default:true"`  // Whether the user can sign in.

	CurrentProductID *uint64  `gorm:"index"`                       // Currently provisioned product ID.
	CurrentProduct   *Product `gorm:"foreignKey:CurrentProductID"` // Currently provisioned product.

	RefreshToken      *string `gorm:"type:text"`       // Single active refresh token.
	VerificationToken *string `gorm:"type:text;index"` // Pending email verification token.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
