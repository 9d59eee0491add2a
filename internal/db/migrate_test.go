package db

import (
	"testing"

	"github.com/tierhub-io/tierhub/internal/models"
)

func TestMigrate_SeedsDefaultProduct(t *testing.T) {
	conn, err := Open("sqlite://file:migrate_seed?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var product models.Product
	if errFind := conn.Where("is_default = ?", true).First(&product).Error; errFind != nil {
		t.Fatalf("find default product: %v", errFind)
	}
	if product.Name != DefaultProductName {
		t.Fatalf("expected default product %q, got %q", DefaultProductName, product.Name)
	}

	// Re-running the migration must not create a second default.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
	var count int64
	if errCount := conn.Model(&models.Product{}).Where("is_default = ?", true).Count(&count).Error; errCount != nil {
		t.Fatalf("count defaults: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 default product, got %d", count)
	}
}

func TestMigrate_RejectsSecondDefaultProduct(t *testing.T) {
	conn, err := Open("sqlite://file:migrate_double_default?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	second := models.Product{Name: "Shadow Default", IsActive: true, IsDefault: true}
	if errCreate := conn.Create(&second).Error; errCreate == nil {
		t.Fatalf("expected unique index violation creating second default")
	}
}
