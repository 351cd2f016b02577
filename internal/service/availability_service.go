package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slotwise/courtkeeper/internal/clock"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/repository"
	"gorm.io/gorm"
)

// AvailabilityService projects facilities, units, and currently-active
// bookings into the per-facility occupancy view.
type AvailabilityService struct {
	db     *gorm.DB
	cache  *repository.CacheRepository
	clock  clock.Clock
	logger *logger.Logger
}

func NewAvailabilityService(db *gorm.DB, cache *repository.CacheRepository, clk clock.Clock, logger *logger.Logger) *AvailabilityService {
	return &AvailabilityService{db: db, cache: cache, clock: clk, logger: logger}
}

// Occupant is one active booking surfaced in a facility's active_occupants.
type Occupant struct {
	ID       string    `json:"id"`
	BookedBy string    `json:"bookedBy"`
	ClubName string    `json:"clubName,omitempty"`
	UserType string    `json:"userType"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	UnitName string    `json:"unitName,omitempty"`
}

// MyBooking is the caller's own next active booking on a facility.
type MyBooking struct {
	ID       string    `json:"id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Status   string    `json:"status"`
}

// Asset is one row of getAllAssets: a facility plus its live occupancy.
type Asset struct {
	models.Facility
	CurrentUsage      int         `json:"currentUsage"`
	AvailableCapacity int         `json:"availableCapacity"`
	CurrentStatus     string      `json:"currentStatus"`
	MyActiveBooking   *MyBooking  `json:"myActiveBooking,omitempty"`
	ActiveOccupants   []Occupant  `json:"activeOccupants"`
}

// assetRow is the raw scan target; my_active_booking and
// active_occupants arrive as JSON text from Postgres's row_to_json /
// json_agg and are decoded in Go rather than via a partial gorm model.
type assetRow struct {
	models.Facility
	CurrentUsage    int             `gorm:"column:current_usage"`
	MyActiveBooking json.RawMessage `gorm:"column:my_active_booking"`
	ActiveOccupants json.RawMessage `gorm:"column:active_occupants"`
}

// GetAllAssets runs the single-statement projection described by the
// spec: a derived usage column via correlated subqueries plus two
// JSON-aggregated columns for the caller's own booking and the current
// occupants, so read consistency and latency hold without N+1 queries.
// Results are cached for a couple of seconds per caller user type.
func (s *AvailabilityService) GetAllAssets(ctx context.Context, callerName, callerUserType string) ([]Asset, error) {
	var cached []Asset
	if s.cache.GetAssets(ctx, callerUserType, &cached) {
		return s.annotateCaller(ctx, cached, callerName), nil
	}

	now := s.clock.Now()
	isClub := callerUserType == string(models.UserTypeClub)

	const query = `
SELECT
  f.*,
  CASE WHEN f.is_pooled THEN (
    SELECT COUNT(*) FROM bookings b
    WHERE b.facility_id = f.id AND b.status IN ('scheduled','checked_in')
      AND b.starts_at <= ? AND b.ends_at > ?
  ) ELSE (
    SELECT COUNT(DISTINCT b.unit_id) FROM bookings b
    WHERE b.facility_id = f.id AND b.status IN ('scheduled','checked_in')
      AND b.starts_at <= ? AND b.ends_at > ?
  ) END AS current_usage,
  (
    SELECT row_to_json(mb) FROM (
      SELECT b.id, b.starts_at, b.ends_at, b.status FROM bookings b
      WHERE b.facility_id = f.id AND b.booked_by = ?
        AND b.status IN ('scheduled','checked_in') AND b.ends_at > ?
      ORDER BY b.starts_at ASC LIMIT 1
    ) mb
  ) AS my_active_booking,
  (
    SELECT COALESCE(json_agg(row_to_json(occ)), '[]') FROM (
      SELECT b.id, b.booked_by as "bookedBy", b.club_name as "clubName", b.user_type as "userType",
             b.starts_at, b.ends_at, u.unit_name as "unitName"
      FROM bookings b
      LEFT JOIN facility_units u ON u.id = b.unit_id
      WHERE b.facility_id = f.id AND b.starts_at <= ? AND b.ends_at > ?
        AND b.status IN ('scheduled','checked_in')
    ) occ
  ) AS active_occupants
FROM facilities f
WHERE f.category <> 'Event Space' OR ?
ORDER BY f.category ASC, f.display_name ASC`

	var rows []assetRow
	err := s.db.WithContext(ctx).Raw(query, now, now, now, now, callerName, now, now, now, isClub).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error projecting available assets: %w", err)
	}

	assets := make([]Asset, 0, len(rows))
	for _, row := range rows {
		asset := Asset{
			Facility:          row.Facility,
			CurrentUsage:      row.CurrentUsage,
			AvailableCapacity: clampNonNegative(row.Facility.TotalCapacity - row.CurrentUsage),
		}
		if asset.AvailableCapacity > 0 {
			asset.CurrentStatus = "available"
		} else {
			asset.CurrentStatus = "in_use"
		}

		if len(row.MyActiveBooking) > 0 && string(row.MyActiveBooking) != "null" {
			var mb MyBooking
			if err := json.Unmarshal(row.MyActiveBooking, &mb); err == nil {
				asset.MyActiveBooking = &mb
			}
		}

		var occupants []Occupant
		if len(row.ActiveOccupants) > 0 {
			_ = json.Unmarshal(row.ActiveOccupants, &occupants)
		}
		asset.ActiveOccupants = occupants

		assets = append(assets, asset)
	}

	s.cache.SetAssets(ctx, callerUserType, assets)
	return assets, nil
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// myBookingRow is the per-facility result of the direct caller lookup
// annotateCaller runs on a cache hit.
type myBookingRow struct {
	FacilityID string    `gorm:"column:facility_id"`
	ID         string    `gorm:"column:id"`
	StartsAt   time.Time `gorm:"column:starts_at"`
	EndsAt     time.Time `gorm:"column:ends_at"`
	Status     string    `gorm:"column:status"`
}

// annotateCaller re-derives MyActiveBooking for a cache hit with a direct
// query, matching the primary projection's semantics exactly: the
// caller's earliest active booking with ends_at > now, independent of
// whether it has started yet. The cached ActiveOccupants snapshot only
// carries bookings where starts_at <= now, so deriving MyActiveBooking
// from it would hide a caller's own future scheduled booking whenever
// the cache happened to be warm.
func (s *AvailabilityService) annotateCaller(ctx context.Context, assets []Asset, callerName string) []Asset {
	for i := range assets {
		assets[i].MyActiveBooking = nil
	}
	if len(assets) == 0 {
		return assets
	}

	facilityIDs := make([]string, len(assets))
	for i, a := range assets {
		facilityIDs[i] = a.Facility.ID
	}

	const query = `
SELECT DISTINCT ON (facility_id) facility_id, id, starts_at, ends_at, status
FROM bookings
WHERE booked_by = ? AND facility_id IN ? AND status IN ('scheduled','checked_in') AND ends_at > ?
ORDER BY facility_id, starts_at ASC`

	var rows []myBookingRow
	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Raw(query, callerName, facilityIDs, now).Scan(&rows).Error; err != nil {
		s.logger.Error("failed to annotate caller's active booking on cache hit", "error", err)
		return assets
	}

	byFacility := make(map[string]myBookingRow, len(rows))
	for _, row := range rows {
		byFacility[row.FacilityID] = row
	}

	for i := range assets {
		if row, ok := byFacility[assets[i].Facility.ID]; ok {
			assets[i].MyActiveBooking = &MyBooking{ID: row.ID, StartsAt: row.StartsAt, EndsAt: row.EndsAt, Status: row.Status}
		}
	}
	return assets
}
