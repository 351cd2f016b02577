package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Facility is the static description of a bookable resource class: a
// study hall, a set of courts, an event space.
type Facility struct {
	ID          string `gorm:"type:uuid;primary_key" json:"id"`
	DisplayName string `gorm:"type:varchar(255);not null" json:"displayName"`
	// Category "Event Space" is club-only visible in the availability projection.
	Category string `gorm:"type:varchar(100);not null;index" json:"category"`
	Description string `gorm:"type:text" json:"description"`

	TotalCapacity int  `gorm:"not null" json:"totalCapacity"`
	IsPooled      bool `gorm:"not null;default:false" json:"isPooled"`

	MinDurationMinutes int    `gorm:"not null" json:"minDurationMinutes"`
	MaxDurationMinutes int    `gorm:"not null" json:"maxDurationMinutes"`
	OpenTime           string `gorm:"type:varchar(5);not null" json:"openTime"`  // "HH:MM"
	CloseTime          string `gorm:"type:varchar(5);not null" json:"closeTime"` // "HH:MM"
	Timezone           string `gorm:"type:varchar(64);not null;default:UTC" json:"timezone"`

	CreatedAt time.Time `json:"createdAt"`

	Units []FacilityUnit `gorm:"foreignKey:FacilityID;constraint:OnDelete:CASCADE" json:"-"`
}

func (f *Facility) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

func (Facility) TableName() string { return "facilities" }
