package db

import (
	"errors"
	"fmt"

	"github.com/tierhub-io/tierhub/internal/models"
	"gorm.io/gorm"
)

// DefaultProductName is the seeded free-tier product name.
const DefaultProductName = "Free"

// Migrate runs database migrations for the current dialect and seeds the
// default product.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Product{},
		&models.User{},
		&models.Billing{},
		&models.WebhookEvent{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errIndex := ensureSingleDefaultProductIndex(conn); errIndex != nil {
		return errIndex
	}
	return ensureDefaultProduct(conn)
}

// ensureSingleDefaultProductIndex installs a partial unique index so that at
// most one product can carry the default flag. Enforced at the data layer to
// avoid races between concurrent catalog edits.
func ensureSingleDefaultProductIndex(conn *gorm.DB) error {
	stmt := `CREATE UNIQUE INDEX IF NOT EXISTS ux_products_single_default ON products (is_default) WHERE is_default`
	if IsSQLite(conn) {
		stmt = `CREATE UNIQUE INDEX IF NOT EXISTS ux_products_single_default ON products (is_default) WHERE is_default = 1`
	}
	if errExec := conn.Exec(stmt).Error; errExec != nil {
		return fmt.Errorf("db: default product index: %w", errExec)
	}
	return nil
}

// ensureDefaultProduct seeds the free-tier product when no default exists.
func ensureDefaultProduct(conn *gorm.DB) error {
	var existing models.Product
	errFind := conn.Where("is_default = ?", true).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: find default product: %w", errFind)
	}

	product := models.Product{
		Name:        DefaultProductName,
		Description: "Default free tier",
		Price:       0,
		IsActive:    true,
		IsDefault:   true,
	}
	if errCreate := conn.Create(&product).Error; errCreate != nil {
		return fmt.Errorf("db: seed default product: %w", errCreate)
	}
	return nil
}
