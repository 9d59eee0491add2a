package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database described by the DSN. PostgreSQL DSNs are
// the default; "sqlite://" and bare file paths open a SQLite database.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch {
	case strings.HasPrefix(trimmed, "sqlite://"):
		conn, err := gorm.Open(sqlite.Open(strings.TrimPrefix(trimmed, "sqlite://")), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", err)
		}
		return conn, nil
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"), strings.Contains(trimmed, "host="):
		conn, err := gorm.Open(postgres.Open(trimmed), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open postgres: %w", err)
		}
		return conn, nil
	default:
		conn, err := gorm.Open(sqlite.Open(trimmed), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", err)
		}
		return conn, nil
	}
}
