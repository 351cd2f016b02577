// Package store owns the connection to the transactional relational store
// and the schema migrations that give the booking engine its partial
// unique indexes and cleanup index.
package store

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens a connection pool to PostgreSQL.
func Connect(cfg config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates the three tables via AutoMigrate, then layers on the
// partial indexes the schema depends on for cheap overlap and
// idempotency checks. GORM's struct tags can't express partial indexes,
// so these are raw SQL, mirroring the source's own createIndexes step.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Facility{},
		&models.FacilityUnit{},
		&models.Booking{},
	); err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	activePredicate := "status IN ('scheduled', 'checked_in')"

	statements := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_bookings_unit_active ON bookings(unit_id, starts_at, ends_at) WHERE %s", activePredicate),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_bookings_facility_active ON bookings(facility_id, starts_at, ends_at) WHERE %s", activePredicate),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_bookings_booked_by_active ON bookings(booked_by, starts_at, ends_at) WHERE %s", activePredicate),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_idempotency_active ON bookings(idempotency_key) WHERE %s", activePredicate),
		"CREATE INDEX IF NOT EXISTS idx_bookings_cleanup ON bookings(starts_at, status, ends_at)",
		"CREATE INDEX IF NOT EXISTS idx_facility_units_facility ON facility_units(facility_id)",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// ConnectRedis opens a Redis client used for the short-TTL availability
// cache.
func ConnectRedis(cfg config.Redis) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}
