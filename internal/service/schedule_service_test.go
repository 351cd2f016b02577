package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/repository"
	"github.com/slotwise/courtkeeper/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type ScheduleServiceTestSuite struct {
	suite.Suite
	DB      *gorm.DB
	Service *service.ScheduleService
	Cfg     config.Booking
}

func (s *ScheduleServiceTestSuite) SetupSuite() {
	testCfg := config.NewTestConfig()
	db, err := gorm.Open(postgres.Open(testCfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		s.T().Fatalf("failed to connect to postgres: %v", err)
	}
	s.DB = db

	err = s.DB.AutoMigrate(&models.Facility{}, &models.FacilityUnit{}, &models.Booking{})
	assert.NoError(s.T(), err)

	s.Cfg = config.Booking{MaxHorizonDays: 7, ClubHorizonDays: 30}
}

func (s *ScheduleServiceTestSuite) TearDownSuite() {
	sqlDB, _ := s.DB.DB()
	sqlDB.Close()
}

func (s *ScheduleServiceTestSuite) SetupTest() {
	s.DB.Exec("DELETE FROM bookings")
	s.DB.Exec("DELETE FROM facility_units")
	s.DB.Exec("DELETE FROM facilities")

	facilities := repository.NewFacilityRepository(s.DB)
	bookings := repository.NewBookingRepository(s.DB)
	s.Service = service.NewScheduleService(facilities, bookings, s.Cfg, logger.New("error"))
}

func (s *ScheduleServiceTestSuite) TestValidateDateWindow_WithinIndividualHorizon() {
	now := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	date := now.Add(3 * 24 * time.Hour)
	err := s.Service.ValidateDateWindow(date, now, models.UserTypeIndividual)
	assert.NoError(s.T(), err)
}

func (s *ScheduleServiceTestSuite) TestValidateDateWindow_BeyondIndividualHorizonRejected() {
	now := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	date := now.Add(10 * 24 * time.Hour)
	err := s.Service.ValidateDateWindow(date, now, models.UserTypeIndividual)
	assert.Error(s.T(), err)
}

func (s *ScheduleServiceTestSuite) TestValidateDateWindow_ClubHorizonWider() {
	now := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	date := now.Add(10 * 24 * time.Hour)
	err := s.Service.ValidateDateWindow(date, now, models.UserTypeClub)
	assert.NoError(s.T(), err)
}

func (s *ScheduleServiceTestSuite) TestValidateDateWindow_RejectsPastDate() {
	now := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	date := now.Add(-24 * time.Hour)
	err := s.Service.ValidateDateWindow(date, now, models.UserTypeIndividual)
	assert.Error(s.T(), err)
}

func (s *ScheduleServiceTestSuite) TestGetScheduleForDate_IncludesEmptyOperationalUnits() {
	t := s.T()
	ctx := context.Background()

	facility := &models.Facility{
		DisplayName: "Courts", Category: "Sports", TotalCapacity: 2,
		IsPooled: false, MinDurationMinutes: 30, MaxDurationMinutes: 120,
		OpenTime: "07:00", CloseTime: "23:00",
	}
	s.Require().NoError(s.DB.Create(facility).Error)

	unitA := &models.FacilityUnit{FacilityID: facility.ID, UnitName: "Court A", IsOperational: true}
	unitB := &models.FacilityUnit{FacilityID: facility.ID, UnitName: "Court B", IsOperational: true}
	offline := &models.FacilityUnit{FacilityID: facility.ID, UnitName: "Court C", IsOperational: false}
	s.Require().NoError(s.DB.Create(unitA).Error)
	s.Require().NoError(s.DB.Create(unitB).Error)
	s.Require().NoError(s.DB.Create(offline).Error)

	day := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		FacilityID: facility.ID, UnitID: &unitA.ID, BookedBy: "alice", UserType: models.UserTypeIndividual,
		BookingType: models.BookingTypeTimeBased,
		StartsAt:    day.Add(9 * time.Hour), EndsAt: day.Add(10 * time.Hour),
		Status: models.BookingStatusScheduled, IdempotencyKey: "alice_sched_1",
	}
	s.Require().NoError(s.DB.Create(booking).Error)

	grid, err := s.Service.GetScheduleForDate(ctx, facility.ID, day)
	assert.NoError(t, err)
	assert.Equal(t, "2026-08-04", grid.Date)
	assert.Len(t, grid.Units, 2)

	byName := map[string]service.UnitSchedule{}
	for _, u := range grid.Units {
		byName[u.UnitName] = u
	}
	assert.Len(t, byName["Court A"].Bookings, 1)
	assert.Len(t, byName["Court B"].Bookings, 0)
	_, offlinePresent := byName["Court C"]
	assert.False(t, offlinePresent)
}

func TestScheduleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ScheduleServiceTestSuite))
}
