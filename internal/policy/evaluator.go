// Package policy implements the pure, deterministic rules that decide
// whether a requested booking window is admissible. It never touches the
// store; the booking service is responsible for wiring its verdicts into a
// transaction.
package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slotwise/courtkeeper/internal/apperr"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/models"
)

const slotSize = 30 * time.Minute

// SnapToSlot rounds t to the nearest 30-minute boundary, zeroing seconds
// and sub-seconds. Ties (exactly 15 minutes past a boundary) round up.
func SnapToSlot(t time.Time) time.Time {
	t = t.Truncate(time.Second)
	minute := t.Minute()
	remainder := minute % 30
	floor := t.Add(-time.Duration(remainder) * time.Minute).Truncate(time.Minute)
	if remainder >= 15 {
		return floor.Add(slotSize)
	}
	return floor
}

// SnapToNextBoundary returns the smallest 30-minute boundary strictly
// greater than t. Used at check-out to align ends_at: a check-out landing
// exactly on a boundary jumps to the next one, preserved intentionally for
// test compatibility.
func SnapToNextBoundary(t time.Time) time.Time {
	t = t.Truncate(time.Second).Add(time.Minute)
	minute := t.Minute()
	remainder := minute % 30
	if remainder == 0 {
		return t.Truncate(time.Minute)
	}
	return t.Truncate(time.Minute).Add(time.Duration(30-remainder) * time.Minute)
}

// GenerateIdempotencyKey is deterministic so that a double-submit from the
// same caller for the same snapped start collides.
func GenerateIdempotencyKey(identity string, startsAt time.Time) string {
	return identity + "_" + strconv.FormatInt(startsAt.UnixMilli(), 10)
}

// Verdict is the outcome of a successful Validate call.
type Verdict struct {
	BookingType models.BookingType
}

// Validate runs the ordered rule chain from the spec: past-dated
// rejection, horizon check, endpoint ordering, full-day/time-based
// classification, operating-hours containment, club-only full-day gate,
// and session-length bounds. The first failing rule wins.
func Validate(cfg config.Booking, facility models.Facility, snappedStart, snappedEnd time.Time, userType models.UserType, now time.Time) (Verdict, error) {
	if snappedStart.Before(now) {
		return Verdict{}, apperr.NewForbidden("booking start is in the past")
	}

	horizon := time.Duration(cfg.HorizonDays(string(userType))) * 24 * time.Hour
	if snappedStart.After(now.Add(horizon)) {
		return Verdict{}, apperr.NewForbidden("booking start is beyond the allowed horizon")
	}

	if !snappedEnd.After(snappedStart) {
		return Verdict{}, apperr.NewBadRequest("end time must be after start time")
	}

	duration := snappedEnd.Sub(snappedStart)
	bookingType := models.BookingTypeTimeBased
	if duration >= 8*time.Hour {
		bookingType = models.BookingTypeFullDay
	}

	if bookingType == models.BookingTypeTimeBased {
		if !withinOperatingHours(facility, snappedStart, snappedEnd) {
			return Verdict{}, apperr.NewBadRequest("requested window falls outside facility operating hours")
		}
	}

	if bookingType == models.BookingTypeFullDay && userType != models.UserTypeClub {
		return Verdict{}, apperr.NewForbidden("full-day bookings are restricted to clubs")
	}

	if bookingType == models.BookingTypeTimeBased {
		minutes := int(duration.Minutes())
		if minutes < facility.MinDurationMinutes || minutes > facility.MaxDurationMinutes {
			return Verdict{}, apperr.NewBadRequest(fmt.Sprintf("duration must be between %d and %d minutes", facility.MinDurationMinutes, facility.MaxDurationMinutes))
		}
	}

	return Verdict{BookingType: bookingType}, nil
}

// withinOperatingHours compares the time-of-day components of the
// snapped instants against the facility's declared open/close times.
// Timezone is advisory and not consulted: each instant's time of day is
// taken in the location the instant itself carries (UTC for clock
// readings and "Z" request times), a known simplification carried over
// from the source system.
func withinOperatingHours(facility models.Facility, start, end time.Time) bool {
	openTOD, err := parseTimeOfDay(facility.OpenTime)
	if err != nil {
		return false
	}
	closeTOD, err := parseTimeOfDay(facility.CloseTime)
	if err != nil {
		return false
	}

	startTOD := timeOfDay(start)
	endTOD := timeOfDay(end)

	return !startTOD.Before(openTOD) && !endTOD.After(closeTOD)
}

type tod struct {
	minutesSinceMidnight int
}

func (a tod) Before(b tod) bool { return a.minutesSinceMidnight < b.minutesSinceMidnight }
func (a tod) After(b tod) bool  { return a.minutesSinceMidnight > b.minutesSinceMidnight }

func timeOfDay(t time.Time) tod {
	return tod{minutesSinceMidnight: t.Hour()*60 + t.Minute()}
}

func parseTimeOfDay(s string) (tod, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return tod{}, fmt.Errorf("invalid time-of-day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return tod{}, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return tod{}, err
	}
	return tod{minutesSinceMidnight: h*60 + m}, nil
}
