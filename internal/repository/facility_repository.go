package repository

import (
	"context"
	"fmt"

	"github.com/slotwise/courtkeeper/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FacilityRepository handles facility and facility-unit data access.
type FacilityRepository struct {
	db *gorm.DB
}

func NewFacilityRepository(db *gorm.DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// GetByID fetches a facility without locking, for read-only projections.
func (r *FacilityRepository) GetByID(ctx context.Context, id string) (*models.Facility, error) {
	var f models.Facility
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching facility %s: %w", id, err)
	}
	return &f, nil
}

// GetByIDForUpdate locks the facility row with SELECT ... FOR UPDATE.
// Must be called against a *gorm.DB bound to an open transaction. This is
// always the first lock acquired in a booking transaction, establishing
// the facility-then-unit-then-booking lock order that prevents deadlocks.
func (r *FacilityRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Facility, error) {
	var f models.Facility
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&f, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error locking facility %s: %w", id, err)
	}
	return &f, nil
}

// ListAll returns every facility, category ascending then name ascending,
// as the availability projector requires.
func (r *FacilityRepository) ListAll(ctx context.Context) ([]models.Facility, error) {
	var facilities []models.Facility
	if err := r.db.WithContext(ctx).Order("category asc, display_name asc").Find(&facilities).Error; err != nil {
		return nil, fmt.Errorf("error listing facilities: %w", err)
	}
	return facilities, nil
}

// ListOperationalUnits returns the operational units of a facility, the
// universe the schedule projector must include even when empty.
func (r *FacilityRepository) ListOperationalUnits(ctx context.Context, facilityID string) ([]models.FacilityUnit, error) {
	var units []models.FacilityUnit
	err := r.db.WithContext(ctx).
		Where("facility_id = ? AND is_operational = ?", facilityID, true).
		Order("unit_name asc").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("error listing units for facility %s: %w", facilityID, err)
	}
	return units, nil
}

// GetUnitByIDForUpdate locks the facility-unit row. Called after the
// facility row is already locked by the same transaction.
func (r *FacilityRepository) GetUnitByIDForUpdate(ctx context.Context, tx *gorm.DB, unitID string) (*models.FacilityUnit, error) {
	var u models.FacilityUnit
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, "id = ?", unitID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error locking unit %s: %w", unitID, err)
	}
	return &u, nil
}

// CountOperationalUnits reports a unit-based facility's effective
// capacity: the number of operational units.
func (r *FacilityRepository) CountOperationalUnits(ctx context.Context, facilityID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FacilityUnit{}).
		Where("facility_id = ? AND is_operational = ?", facilityID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting operational units for facility %s: %w", facilityID, err)
	}
	return count, nil
}
