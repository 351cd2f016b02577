package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TryAdvisoryLock attempts a non-blocking session-level advisory lock
// keyed by id. It returns false immediately if another session already
// holds it; callers must release it with the same connection, so this is
// always called on a *gorm.DB pinned to one underlying connection via
// db.Connection/db.Transaction.
func TryAdvisoryLock(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var acquired bool
	if err := db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", id).Scan(&acquired).Error; err != nil {
		return false, fmt.Errorf("advisory lock attempt failed: %w", err)
	}
	return acquired, nil
}

// ReleaseAdvisoryLock releases the session-level advisory lock keyed by
// id. Safe to call even if the lock was never acquired.
func ReleaseAdvisoryLock(ctx context.Context, db *gorm.DB, id int64) error {
	if err := db.WithContext(ctx).Exec("SELECT pg_advisory_unlock(?)", id).Error; err != nil {
		return fmt.Errorf("advisory unlock failed: %w", err)
	}
	return nil
}
