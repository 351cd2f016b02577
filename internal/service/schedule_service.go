package service

import (
	"context"
	"time"

	"github.com/slotwise/courtkeeper/internal/apperr"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/repository"
)

// ScheduleService builds the per-facility, per-day grid of active
// bookings grouped by unit.
type ScheduleService struct {
	facilities *repository.FacilityRepository
	bookings   *repository.BookingRepository
	cfg        config.Booking
	logger     *logger.Logger
}

func NewScheduleService(facilities *repository.FacilityRepository, bookings *repository.BookingRepository, cfg config.Booking, logger *logger.Logger) *ScheduleService {
	return &ScheduleService{facilities: facilities, bookings: bookings, cfg: cfg, logger: logger}
}

// UnitSchedule is one unit's bookings for the requested date.
type UnitSchedule struct {
	UnitID   string           `json:"unitId"`
	UnitName string           `json:"unitName"`
	Bookings []models.Booking `json:"bookings"`
}

// ScheduleGrid is the full response for GetScheduleForDate.
type ScheduleGrid struct {
	Date  string         `json:"date"`
	Units []UnitSchedule `json:"units"`
}

// ValidateDateWindow rejects a requested date outside
// [today, today+HorizonDays(userType)-1] (the club horizon for clubs, the
// individual horizon otherwise), as the HTTP layer must before calling
// GetScheduleForDate.
func (s *ScheduleService) ValidateDateWindow(date time.Time, now time.Time, userType models.UserType) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	horizon := time.Duration(s.cfg.HorizonDays(string(userType))-1) * 24 * time.Hour
	requested := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())

	if requested.Before(today) || requested.After(today.Add(horizon)) {
		return apperr.NewForbidden("date is outside the allowed booking horizon")
	}
	return nil
}

// GetScheduleForDate returns every operational unit of facilityID, even
// if its bookings list is empty, with bookings filtered to the civil day
// and sorted by start time.
func (s *ScheduleService) GetScheduleForDate(ctx context.Context, facilityID string, date time.Time) (*ScheduleGrid, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	units, err := s.facilities.ListOperationalUnits(ctx, facilityID)
	if err != nil {
		return nil, apperr.NewInternal("failed to list units", err)
	}

	bookings, err := s.bookings.ListForSchedule(ctx, facilityID, dayStart, dayEnd)
	if err != nil {
		return nil, apperr.NewInternal("failed to list schedule bookings", err)
	}

	byUnit := make(map[string][]models.Booking, len(units))
	for _, b := range bookings {
		if b.UnitID == nil {
			continue
		}
		byUnit[*b.UnitID] = append(byUnit[*b.UnitID], b)
	}

	grid := &ScheduleGrid{Date: dayStart.Format("2006-01-02")}
	for _, u := range units {
		grid.Units = append(grid.Units, UnitSchedule{
			UnitID:   u.ID,
			UnitName: u.UnitName,
			Bookings: byUnit[u.ID],
		})
	}

	return grid, nil
}
