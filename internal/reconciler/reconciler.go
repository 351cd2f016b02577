// Package reconciler runs the periodic cleanup cycle that releases
// no-shows and completes expired sessions, guarded by a store-level
// singleton advisory lock so only one deployed instance does the work on
// any given tick.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slotwise/courtkeeper/internal/clock"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/events"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/repository"
	"gorm.io/gorm"
)

// Reconciler owns the cron-driven cleanup cycle.
type Reconciler struct {
	cron        *cron.Cron
	db          *gorm.DB
	bookingRepo *repository.BookingRepository
	cache       *repository.CacheRepository
	broadcaster events.Broadcaster
	clock       clock.Clock
	lockID      int64
	graceWindow time.Duration
	logger      *logger.Logger

	mu              sync.RWMutex
	lastCleanupRunAt time.Time
}

func New(
	db *gorm.DB,
	bookingRepo *repository.BookingRepository,
	cache *repository.CacheRepository,
	broadcaster events.Broadcaster,
	clk clock.Clock,
	cfg config.Booking,
	logger *logger.Logger,
) *Reconciler {
	return &Reconciler{
		cron:        cron.New(),
		db:          db,
		bookingRepo: bookingRepo,
		cache:       cache,
		broadcaster: broadcaster,
		clock:       clk,
		lockID:      cfg.CleanupLockID,
		graceWindow: time.Duration(cfg.NoShowGraceMinutes) * time.Minute,
		logger:      logger,
	}
}

// Start schedules the cleanup cycle on tickInterval and begins running
// it. Nominal tick is one minute, overridable in config for tests.
func (r *Reconciler) Start(tickInterval time.Duration) error {
	spec := "@every " + tickInterval.String()
	_, err := r.cron.AddFunc(spec, func() {
		r.RunCycle(context.Background())
	})
	if err != nil {
		return err
	}
	r.logger.Info("starting reconciler", "tick", tickInterval.String())
	r.cron.Start()
	return nil
}

func (r *Reconciler) Stop() {
	r.logger.Info("stopping reconciler")
	r.cron.Stop()
}

// LastCleanupRunAt is read by the health handler. Single-writer
// (the cycle itself), many-reader.
func (r *Reconciler) LastCleanupRunAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastCleanupRunAt
}

// RunCycle executes one reconciliation pass. Safe to call directly (as
// tests do) outside of the cron schedule.
func (r *Reconciler) RunCycle(ctx context.Context) {
	acquired, err := repository.TryAdvisoryLock(ctx, r.db, r.lockID)
	if err != nil {
		r.logger.Error("reconciler: advisory lock attempt failed", "error", err)
		return
	}
	if !acquired {
		r.logger.Debug("reconciler: lock held by another instance, skipping tick")
		return
	}
	defer func() {
		if err := repository.ReleaseAdvisoryLock(ctx, r.db, r.lockID); err != nil {
			r.logger.Error("reconciler: failed to release advisory lock", "error", err)
		}
	}()

	now := r.clock.Now()

	releases, err := r.releaseNoShows(ctx, now)
	if err != nil {
		r.logger.Error("reconciler: release no-shows failed", "error", err)
	}

	completions, err := r.completeExpiredSessions(ctx, now)
	if err != nil {
		r.logger.Error("reconciler: complete expired sessions failed", "error", err)
	}

	justStarted, err := r.bookingRepo.CountJustStarted(ctx, now.Add(-time.Minute), now)
	if err != nil {
		r.logger.Error("reconciler: count just-started failed", "error", err)
	}

	r.mu.Lock()
	r.lastCleanupRunAt = now
	r.mu.Unlock()

	if releases > 0 || completions > 0 || justStarted > 0 {
		r.cache.InvalidateAssets(ctx)
		r.broadcaster.Fire("")
	}

	r.logger.Info("reconciler cycle complete", "releases", releases, "completions", completions, "justStarted", justStarted)
}

// releaseNoShows selects scheduled bookings past the grace window and
// releases each under its own lock-ordered transaction, re-checking
// status after acquiring the lock to avoid racing a concurrent check-in.
func (r *Reconciler) releaseNoShows(ctx context.Context, now time.Time) (int, error) {
	candidates, err := r.bookingRepo.ListNoShowCandidates(ctx, now.Add(-r.graceWindow))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, candidate := range candidates {
		released, err := r.transitionUnderLock(ctx, candidate.FacilityID, candidate.ID, models.BookingStatusScheduled, models.BookingStatusReleased)
		if err != nil {
			r.logger.Error("reconciler: failed to release booking", "bookingId", candidate.ID, "error", err)
			continue
		}
		if released {
			count++
		}
	}
	return count, nil
}

// completeExpiredSessions selects checked_in bookings whose window has
// ended and completes each the same way.
func (r *Reconciler) completeExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	candidates, err := r.bookingRepo.ListExpiredCheckedIn(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, candidate := range candidates {
		completed, err := r.transitionUnderLock(ctx, candidate.FacilityID, candidate.ID, models.BookingStatusCheckedIn, models.BookingStatusCompleted)
		if err != nil {
			r.logger.Error("reconciler: failed to complete booking", "bookingId", candidate.ID, "error", err)
			continue
		}
		if completed {
			count++
		}
	}
	return count, nil
}

// transitionUnderLock locks the facility row, re-locks and re-checks the
// booking row is still in fromStatus, then updates it. Returns false
// (not an error) if the re-check finds the booking already moved by a
// user-driven transition in the meantime.
func (r *Reconciler) transitionUnderLock(ctx context.Context, facilityID, bookingID string, fromStatus, toStatus models.BookingStatus) (bool, error) {
	var transitioned bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		facilityRepo := repository.NewFacilityRepository(tx)
		if _, err := facilityRepo.GetByIDForUpdate(ctx, tx, facilityID); err != nil {
			return err
		}

		bookingRepo := repository.NewBookingRepository(tx)
		booking, err := bookingRepo.GetByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil || booking.Status != fromStatus {
			return nil
		}

		if err := bookingRepo.UpdateStatus(ctx, tx, bookingID, toStatus); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	return transitioned, err
}
