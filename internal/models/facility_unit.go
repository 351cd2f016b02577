package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FacilityUnit is a sub-unit of a non-pooled Facility, e.g. one court.
// Non-operational units are invisible to booking and schedule views.
type FacilityUnit struct {
	ID            string `gorm:"type:uuid;primary_key" json:"id"`
	FacilityID    string `gorm:"type:uuid;not null;index" json:"facilityId"`
	UnitName      string `gorm:"type:varchar(255);not null" json:"unitName"`
	IsOperational bool   `gorm:"not null;default:true" json:"isOperational"`

	CreatedAt time.Time `json:"createdAt"`
}

func (u *FacilityUnit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (FacilityUnit) TableName() string { return "facility_units" }
