package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/slotwise/courtkeeper/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingRepository handles booking data access, including the row-locked
// reads that make the create/check-in/check-out/cancel transactions safe
// under concurrency.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ErrDuplicateIdempotencyKey is returned by Create when the unique active
// idempotency index rejects the insert.
var ErrDuplicateIdempotencyKey = errors.New("duplicate active idempotency key")

// uniqueViolationCode is Postgres's SQLSTATE for a unique_violation,
// inspected via pq.Error rather than string-matching err.Error().
const uniqueViolationCode = "23505"

// Create inserts a scheduled booking inside tx. A violation of the
// partial unique idempotency index is translated to
// ErrDuplicateIdempotencyKey instead of bubbling the raw driver error.
func (r *BookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	if err := tx.WithContext(ctx).Create(booking).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("error creating booking: %w", err)
	}
	return nil
}

// GetByID fetches a booking without locking.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching booking %s: %w", id, err)
	}
	return &b, nil
}

// GetByIDForUpdate locks the booking row. Called after the owning
// facility row is already locked in the same transaction.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Booking, error) {
	var b models.Booking
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error locking booking %s: %w", id, err)
	}
	return &b, nil
}

// UpdateStatus transitions a booking's status inside tx.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.BookingStatus) error {
	result := tx.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("error updating booking %s status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("booking %s not found for status update", id)
	}
	return nil
}

// UpdateStatusAndEndsAt is used by check-out, which both completes the
// booking and rewrites ends_at to the snapped check-out instant.
func (r *BookingRepository) UpdateStatusAndEndsAt(ctx context.Context, tx *gorm.DB, id string, status models.BookingStatus, endsAt time.Time) error {
	result := tx.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "ends_at": endsAt})
	if result.Error != nil {
		return fmt.Errorf("error updating booking %s status/ends_at: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("booking %s not found for status update", id)
	}
	return nil
}

func activeOverlap(q *gorm.DB, start, end time.Time) *gorm.DB {
	return q.Where("status IN (?)", models.ActiveStatuses).
		Where("starts_at < ?", end).
		Where("ends_at > ?", start)
}

// CountActiveOnFacility counts active bookings on a pooled facility whose
// window overlaps [start, end) — the pooled capacity check.
func (r *BookingRepository) CountActiveOnFacility(ctx context.Context, tx *gorm.DB, facilityID string, start, end time.Time) (int64, error) {
	var count int64
	q := tx.WithContext(ctx).Model(&models.Booking{}).Where("facility_id = ?", facilityID)
	if err := activeOverlap(q, start, end).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting active bookings on facility %s: %w", facilityID, err)
	}
	return count, nil
}

// FindActiveOnUnit returns the active booking, if any, whose window
// overlaps [start, end) on the given unit.
func (r *BookingRepository) FindActiveOnUnit(ctx context.Context, tx *gorm.DB, unitID string, start, end time.Time) (*models.Booking, error) {
	var b models.Booking
	q := tx.WithContext(ctx).Model(&models.Booking{}).Where("unit_id = ?", unitID)
	err := activeOverlap(q, start, end).First(&b).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding conflicting booking on unit %s: %w", unitID, err)
	}
	return &b, nil
}

// FindActiveSelfOverlap returns an overlapping active booking already
// held by bookedBy, enforcing I3.
func (r *BookingRepository) FindActiveSelfOverlap(ctx context.Context, tx *gorm.DB, bookedBy string, start, end time.Time) (*models.Booking, error) {
	var b models.Booking
	q := tx.WithContext(ctx).Model(&models.Booking{}).Where("booked_by = ?", bookedBy)
	err := activeOverlap(q, start, end).First(&b).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding self-overlap for %s: %w", bookedBy, err)
	}
	return &b, nil
}

// FindActiveFullDayOnFacility returns an active full_day booking on
// facilityID whose window intersects the civil day [dayStart, dayEnd).
// Used for the time_based pre-condition check in step 4 of create.
func (r *BookingRepository) FindActiveFullDayOnFacility(ctx context.Context, tx *gorm.DB, facilityID string, dayStart, dayEnd time.Time) (*models.Booking, error) {
	var b models.Booking
	q := tx.WithContext(ctx).Model(&models.Booking{}).
		Where("facility_id = ? AND booking_type = ?", facilityID, models.BookingTypeFullDay)
	err := activeOverlap(q, dayStart, dayEnd).First(&b).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding full-day booking on facility %s: %w", facilityID, err)
	}
	return &b, nil
}

// FindActiveOnResourceForDay returns any active booking (full_day or
// time_based) on the pooled facility or the unit, overlapping the civil
// day. Used by the full-day claimant's own overlap check in step 5.
func (r *BookingRepository) FindActiveOnResourceForDay(ctx context.Context, tx *gorm.DB, facilityID string, unitID *string, dayStart, dayEnd time.Time) (*models.Booking, error) {
	var b models.Booking
	q := tx.WithContext(ctx).Model(&models.Booking{}).Where("facility_id = ?", facilityID)
	if unitID != nil {
		q = q.Where("unit_id = ?", *unitID)
	}
	err := activeOverlap(q, dayStart, dayEnd).First(&b).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding active booking for day on facility %s: %w", facilityID, err)
	}
	return &b, nil
}

// ListActiveByUser returns every active-or-historical booking for a
// caller, unit name joined in, most recent first.
func (r *BookingRepository) ListActiveByUser(ctx context.Context, bookedBy string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Table("bookings b").
		Select("b.*, u.unit_name as unit_name").
		Joins("LEFT JOIN facility_units u ON u.id = b.unit_id").
		Where("b.booked_by = ?", bookedBy).
		Order("b.starts_at desc").
		Scan(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error listing bookings for %s: %w", bookedBy, err)
	}
	return bookings, nil
}

// ListForSchedule returns active bookings on facilityID within the civil
// day [dayStart, dayEnd), sorted by start time.
func (r *BookingRepository) ListForSchedule(ctx context.Context, facilityID string, dayStart, dayEnd time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).Model(&models.Booking{}).Where("facility_id = ?", facilityID)
	err := q.Where("status IN (?)", models.ActiveStatuses).
		Where("starts_at < ?", dayEnd).
		Where("ends_at > ?", dayStart).
		Order("starts_at asc").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error listing schedule for facility %s: %w", facilityID, err)
	}
	return bookings, nil
}

// ListNoShowCandidates returns {id, facility_id} for scheduled bookings
// whose grace window has elapsed.
func (r *BookingRepository) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Select("id", "facility_id").
		Where("status = ? AND starts_at < ?", models.BookingStatusScheduled, cutoff).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error listing no-show candidates: %w", err)
	}
	return bookings, nil
}

// ListExpiredCheckedIn returns {id, facility_id} for checked_in bookings
// whose window has ended.
func (r *BookingRepository) ListExpiredCheckedIn(ctx context.Context, now time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Select("id", "facility_id").
		Where("status = ? AND ends_at <= ?", models.BookingStatusCheckedIn, now).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error listing expired checked-in bookings: %w", err)
	}
	return bookings, nil
}

// CountJustStarted reports whether any scheduled booking crossed into
// its active window in (now-1m, now] — the reconciler's coarse
// "something became active" signal.
func (r *BookingRepository) CountJustStarted(ctx context.Context, windowStart, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("status = ?", models.BookingStatusScheduled).
		Where("starts_at > ? AND starts_at <= ?", windowStart, now).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting just-started bookings: %w", err)
	}
	return count, nil
}
