package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus is the four-state lifecycle of a claim.
type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusReleased  BookingStatus = "released"
)

// ActiveStatuses is the set of statuses that participate in overlap,
// capacity, and idempotency checks.
var ActiveStatuses = []BookingStatus{BookingStatusScheduled, BookingStatusCheckedIn}

// UserType distinguishes an individual claimant from a registered club.
type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeClub       UserType = "club"
)

// BookingType classifies the claim's duration shape.
type BookingType string

const (
	BookingTypeTimeBased BookingType = "time_based"
	BookingTypeFullDay   BookingType = "full_day"
)

// Booking is a time-bound exclusive claim against a Facility, and
// optionally a specific FacilityUnit.
type Booking struct {
	ID         string  `gorm:"type:uuid;primary_key" json:"id"`
	FacilityID string  `gorm:"type:uuid;not null" json:"facilityId"`
	UnitID     *string `gorm:"type:uuid" json:"unitId,omitempty"`

	BookedBy string   `gorm:"type:varchar(255);not null" json:"bookedBy"`
	UserType UserType `gorm:"type:varchar(20);not null" json:"userType"`
	ClubName string   `gorm:"type:varchar(255)" json:"clubName,omitempty"`

	BookingType BookingType `gorm:"type:varchar(20);not null" json:"bookingType"`

	StartsAt time.Time     `gorm:"not null" json:"starts_at"`
	EndsAt   time.Time     `gorm:"not null" json:"ends_at"`
	Status   BookingStatus `gorm:"type:varchar(20);not null" json:"status"`

	IdempotencyKey string `gorm:"type:varchar(512);not null" json:"-"`

	CreatedAt time.Time `json:"createdAt"`

	// Read-only: filled by queries that join facility_units (e.g.
	// ListActiveByUser); never written and not part of the migrated table.
	UnitName string `gorm:"->;-:migration" json:"unitName,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

func (Booking) TableName() string { return "bookings" }

// IsActive reports whether the booking currently holds the resource.
func (b Booking) IsActive() bool {
	return b.Status == BookingStatusScheduled || b.Status == BookingStatusCheckedIn
}
