// Package seed loads a fixed roster of facilities and units for local
// development and demos. Seeding is idempotent: re-running it against an
// already-seeded store updates the rows in place rather than duplicating
// them, the same upsert-on-conflict shape the teacher used for syncing
// externally-owned records.
package seed

import (
	"context"
	"fmt"

	"github.com/slotwise/courtkeeper/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fixtureUnit is a unit scoped to the facility it's declared under.
type fixtureUnit struct {
	id       string
	unitName string
}

type fixture struct {
	id                 string
	displayName        string
	category           string
	description        string
	totalCapacity      int
	isPooled           bool
	minDurationMinutes int
	maxDurationMinutes int
	openTime           string
	closeTime          string
	units              []fixtureUnit
}

// fixtures mirrors the worked example in the collaborator contract: a
// unit-based Courts facility with three courts, plus a pooled study hall
// and a club-only event space to exercise every facility shape the
// projector and booking service branch on.
var fixtures = []fixture{
	{
		id:                 "00000000-0000-0000-0000-000000000002",
		displayName:        "Courts",
		category:           "Sports",
		description:        "Outdoor multi-sport courts",
		totalCapacity:      3,
		isPooled:           false,
		minDurationMinutes: 30,
		maxDurationMinutes: 120,
		openTime:           "07:00",
		closeTime:          "23:00",
		units: []fixtureUnit{
			{id: "00000000-0000-0000-0000-000000000010", unitName: "Court A"},
			{id: "00000000-0000-0000-0000-000000000011", unitName: "Court B"},
			{id: "00000000-0000-0000-0000-000000000012", unitName: "Court C"},
		},
	},
	{
		id:                 "00000000-0000-0000-0000-000000000020",
		displayName:        "Study Hall",
		category:           "Study",
		description:        "Open-seating quiet study room",
		totalCapacity:      40,
		isPooled:           true,
		minDurationMinutes: 30,
		maxDurationMinutes: 240,
		openTime:           "06:00",
		closeTime:          "23:59",
	},
	{
		id:                 "00000000-0000-0000-0000-000000000030",
		displayName:        "Event Hall",
		category:           "Event Space",
		description:        "Full-day reservable hall, club bookings only",
		totalCapacity:      1,
		isPooled:           false,
		minDurationMinutes: 480,
		maxDurationMinutes: 960,
		openTime:           "00:00",
		closeTime:          "23:59",
		units: []fixtureUnit{
			{id: "00000000-0000-0000-0000-000000000031", unitName: "Main Hall"},
		},
	},
}

// Run upserts the fixture roster inside one transaction.
func Run(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range fixtures {
			facility := models.Facility{
				ID:                 f.id,
				DisplayName:        f.displayName,
				Category:           f.category,
				Description:        f.description,
				TotalCapacity:      f.totalCapacity,
				IsPooled:           f.isPooled,
				MinDurationMinutes: f.minDurationMinutes,
				MaxDurationMinutes: f.maxDurationMinutes,
				OpenTime:           f.openTime,
				CloseTime:          f.closeTime,
				Timezone:           "UTC",
			}

			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"display_name", "category", "description", "total_capacity",
					"is_pooled", "min_duration_minutes", "max_duration_minutes",
					"open_time", "close_time", "timezone",
				}),
			}).Create(&facility).Error
			if err != nil {
				return fmt.Errorf("upsert facility %s: %w", f.displayName, err)
			}

			for _, u := range f.units {
				unit := models.FacilityUnit{
					ID:            u.id,
					FacilityID:    f.id,
					UnitName:      u.unitName,
					IsOperational: true,
				}
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"facility_id", "unit_name", "is_operational"}),
				}).Create(&unit).Error
				if err != nil {
					return fmt.Errorf("upsert unit %s: %w", u.unitName, err)
				}
			}
		}
		return nil
	})
}
