package service

import (
	"context"
	"fmt"
	"time"

	"github.com/slotwise/courtkeeper/internal/apperr"
	"github.com/slotwise/courtkeeper/internal/clock"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/events"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/policy"
	"github.com/slotwise/courtkeeper/internal/repository"
	"gorm.io/gorm"
)

// BookingService owns the create/check-in/check-out/cancel state machine.
// It is built from explicit collaborators rather than reaching into
// module-level singletons.
type BookingService struct {
	db          *gorm.DB
	facilities  *repository.FacilityRepository
	bookings    *repository.BookingRepository
	cache       *repository.CacheRepository
	broadcaster events.Broadcaster
	clock       clock.Clock
	cfg         config.Booking
	logger      *logger.Logger
}

func NewBookingService(
	db *gorm.DB,
	facilities *repository.FacilityRepository,
	bookings *repository.BookingRepository,
	cache *repository.CacheRepository,
	broadcaster events.Broadcaster,
	clk clock.Clock,
	cfg config.Booking,
	logger *logger.Logger,
) *BookingService {
	return &BookingService{
		db:          db,
		facilities:  facilities,
		bookings:    bookings,
		cache:       cache,
		broadcaster: broadcaster,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	FacilityID string
	UnitID     *string
	UserName   string
	UserType   models.UserType
	ClubName   string
	StartsAt   time.Time
	EndsAt     time.Time
}

func (s *BookingService) isValidClub(name string) bool {
	for _, c := range s.cfg.ValidClubs {
		if c == name {
			return true
		}
	}
	return false
}

// Create runs the reservation algorithm: snap endpoints, lock the
// facility, validate policy, check the battery of overlap/capacity
// rules in order, then insert. All of it happens inside one transaction.
func (s *BookingService) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	snappedStart := policy.SnapToSlot(req.StartsAt)
	snappedEnd := policy.SnapToSlot(req.EndsAt)
	idempotencyKey := policy.GenerateIdempotencyKey(req.UserName, snappedStart)

	var booking *models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		facility, err := s.facilities.GetByIDForUpdate(ctx, tx, req.FacilityID)
		if err != nil {
			return apperr.NewInternal("failed to lock facility", err)
		}
		if facility == nil {
			return apperr.NewNotFound("facility not found")
		}

		verdict, err := policy.Validate(s.cfg, *facility, snappedStart, snappedEnd, req.UserType, now)
		if err != nil {
			return err
		}
		bookingType := verdict.BookingType

		dayStart, dayEnd := civilDay(snappedStart)

		if bookingType == models.BookingTypeTimeBased {
			fullDay, err := s.bookings.FindActiveFullDayOnFacility(ctx, tx, facility.ID, dayStart, dayEnd)
			if err != nil {
				return apperr.NewInternal("failed to check full-day bookings", err)
			}
			if fullDay != nil {
				return conflictFrom(fullDay, "the day is taken by a full-day booking")
			}
		}

		if bookingType == models.BookingTypeFullDay {
			if req.UserType != models.UserTypeClub {
				return apperr.NewForbidden("full-day bookings are restricted to clubs")
			}

			incumbent, err := s.bookings.FindActiveOnResourceForDay(ctx, tx, facility.ID, req.UnitID, dayStart, dayEnd)
			if err != nil {
				return apperr.NewInternal("failed to check day occupancy", err)
			}
			if incumbent != nil {
				msg := "there are per-slot bookings on this day"
				if incumbent.BookingType == models.BookingTypeFullDay {
					msg = fmt.Sprintf("the day is taken by %s", incumbentLabel(incumbent))
				}
				return conflictFrom(incumbent, msg)
			}
		}

		if req.UserType == models.UserTypeClub {
			if req.ClubName == "" || !s.isValidClub(req.ClubName) {
				return apperr.NewBadRequest("club_name must be a member of the registered clubs")
			}
		}

		selfOverlap, err := s.bookings.FindActiveSelfOverlap(ctx, tx, req.UserName, snappedStart, snappedEnd)
		if err != nil {
			return apperr.NewInternal("failed to check self-overlap", err)
		}
		if selfOverlap != nil {
			return apperr.NewConflict("you already hold an overlapping booking", nil)
		}

		var unitID *string
		if facility.IsPooled {
			count, err := s.bookings.CountActiveOnFacility(ctx, tx, facility.ID, snappedStart, snappedEnd)
			if err != nil {
				return apperr.NewInternal("failed to count capacity", err)
			}
			if count >= int64(facility.TotalCapacity) {
				return apperr.NewConflict("facility is at capacity for the requested window", nil)
			}
		} else {
			if req.UnitID == nil || *req.UnitID == "" {
				return apperr.NewBadRequest("unit_id is required for a unit-based facility")
			}
			unit, err := s.facilities.GetUnitByIDForUpdate(ctx, tx, *req.UnitID)
			if err != nil {
				return apperr.NewInternal("failed to lock unit", err)
			}
			if unit == nil || unit.FacilityID != facility.ID {
				return apperr.NewBadRequest("unit does not belong to the requested facility")
			}

			conflict, err := s.bookings.FindActiveOnUnit(ctx, tx, unit.ID, snappedStart, snappedEnd)
			if err != nil {
				return apperr.NewInternal("failed to check unit conflicts", err)
			}
			if conflict != nil {
				msg := "unit is already booked for the requested window"
				if facility.Category == "Event Space" && conflict.ClubName != "" {
					msg = fmt.Sprintf("unit is already booked by %s for the requested window", conflict.ClubName)
				}
				return conflictFrom(conflict, msg)
			}
			unitID = &unit.ID
		}

		newBooking := &models.Booking{
			FacilityID:     facility.ID,
			UnitID:         unitID,
			BookedBy:       req.UserName,
			UserType:       req.UserType,
			ClubName:       req.ClubName,
			BookingType:    bookingType,
			StartsAt:       snappedStart,
			EndsAt:         snappedEnd,
			Status:         models.BookingStatusScheduled,
			IdempotencyKey: idempotencyKey,
		}

		if err := s.bookings.Create(ctx, tx, newBooking); err != nil {
			if err == repository.ErrDuplicateIdempotencyKey {
				return apperr.NewConflict("duplicate submission", nil)
			}
			return apperr.NewInternal("failed to create booking", err)
		}

		booking = newBooking
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.cache.InvalidateAssets(ctx)
	s.broadcaster.Fire(booking.FacilityID)

	s.logger.Info("booking created", "bookingId", booking.ID, "facilityId", booking.FacilityID)
	return booking, nil
}

// CheckIn transitions scheduled -> checked_in, permitted only inside the
// grace window and only by the booking's owner.
func (s *BookingService) CheckIn(ctx context.Context, bookingID, userName string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, userName, func(now time.Time, b *models.Booking) error {
		if b.Status != models.BookingStatusScheduled {
			return apperr.NewBadRequest("booking is not in a checkinable state")
		}
		graceEnd := b.StartsAt.Add(time.Duration(s.cfg.NoShowGraceMinutes) * time.Minute)
		if now.Before(b.StartsAt) || now.After(graceEnd) {
			return apperr.NewForbidden("check-in is outside the grace window")
		}
		b.Status = models.BookingStatusCheckedIn
		return nil
	})
}

// CheckOut transitions checked_in -> completed, rewriting ends_at to the
// next slot boundary strictly after now.
func (s *BookingService) CheckOut(ctx context.Context, bookingID, userName string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, userName, func(now time.Time, b *models.Booking) error {
		if b.Status != models.BookingStatusCheckedIn {
			return apperr.NewBadRequest("booking is not checked in")
		}
		b.Status = models.BookingStatusCompleted
		b.EndsAt = policy.SnapToNextBoundary(now)
		return nil
	})
}

// Cancel transitions scheduled -> released at the owner's request.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userName string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, userName, func(now time.Time, b *models.Booking) error {
		if b.Status != models.BookingStatusScheduled {
			return apperr.NewBadRequest("booking is not in a cancellable state")
		}
		b.Status = models.BookingStatusReleased
		return nil
	})
}

// transition is the shared shape of check-in/check-out/cancel: lock the
// facility, then the booking, verify caller identity, apply mutate, and
// persist. Each runs in a single transaction.
func (s *BookingService) transition(ctx context.Context, bookingID, userName string, mutate func(now time.Time, b *models.Booking) error) (*models.Booking, error) {
	peek, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperr.NewInternal("failed to look up booking", err)
	}
	if peek == nil {
		return nil, apperr.NewNotFound("booking not found")
	}

	var result *models.Booking

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.facilities.GetByIDForUpdate(ctx, tx, peek.FacilityID); err != nil {
			return apperr.NewInternal("failed to lock facility", err)
		}

		booking, err := s.bookings.GetByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return apperr.NewInternal("failed to lock booking", err)
		}
		if booking == nil {
			return apperr.NewNotFound("booking not found")
		}

		if booking.BookedBy != userName {
			return apperr.NewForbidden("caller does not own this booking")
		}

		now := s.clock.Now()
		if err := mutate(now, booking); err != nil {
			return err
		}

		if booking.Status == models.BookingStatusCompleted {
			if err := s.bookings.UpdateStatusAndEndsAt(ctx, tx, booking.ID, booking.Status, booking.EndsAt); err != nil {
				return apperr.NewInternal("failed to persist transition", err)
			}
		} else {
			if err := s.bookings.UpdateStatus(ctx, tx, booking.ID, booking.Status); err != nil {
				return apperr.NewInternal("failed to persist transition", err)
			}
		}

		result = booking
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.cache.InvalidateAssets(ctx)
	s.broadcaster.Fire(result.FacilityID)
	return result, nil
}

// ListForUser returns every booking (active or historical) owned by
// userName, unit name joined in.
func (s *BookingService) ListForUser(ctx context.Context, userName string) ([]models.Booking, error) {
	return s.bookings.ListActiveByUser(ctx, userName)
}

func civilDay(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.Add(24 * time.Hour)
}

func conflictFrom(b *models.Booking, msg string) *apperr.Error {
	return apperr.NewConflict(msg, &apperr.ConflictDetails{
		BookedBy: b.BookedBy,
		ClubName: b.ClubName,
		UserType: string(b.UserType),
		StartsAt: b.StartsAt,
		EndsAt:   b.EndsAt,
	})
}

func incumbentLabel(b *models.Booking) string {
	if b.ClubName != "" {
		return b.ClubName
	}
	return b.BookedBy
}
