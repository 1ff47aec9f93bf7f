// Package storage owns the application database: connection setup for the
// supported drivers, schema migration and the preference repository.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the database driver and its DSN
type Config struct {
	Driver string
	DSN    string
}

// Open connects to the configured database and migrates the preference
// schema. SQLite databases get WAL journaling and a busy timeout so
// concurrent writers serialize instead of failing.
func Open(cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite || cfg.Driver == "" {
		// A single connection keeps SQLite writes serialized within the process.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().Str("component", "storage").Str("driver", driverName(cfg.Driver)).Msg("database ready")
	return db, nil
}

// Migrate creates or updates the preference schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&preferenceRecord{}); err != nil {
		return fmt.Errorf("failed to migrate preferences: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=10000"
}

func driverName(driver string) string {
	if driver == "" {
		return DriverSQLite
	}
	return driver
}
