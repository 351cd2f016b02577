package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/slotwise/courtkeeper/internal/clock"
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

type AvailabilityServiceTestSuite struct {
	suite.Suite
	DB      *gorm.DB
	Service *service.AvailabilityService
	Clock   *clock.Fixed
}

func (s *AvailabilityServiceTestSuite) SetupSuite() {
	testCfg := config.NewTestConfig()
	db, err := gorm.Open(postgres.Open(testCfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		s.T().Fatalf("failed to connect to postgres: %v", err)
	}
	s.DB = db

	err = s.DB.AutoMigrate(&models.Facility{}, &models.FacilityUnit{}, &models.Booking{})
	assert.NoError(s.T(), err)
}

func (s *AvailabilityServiceTestSuite) TearDownSuite() {
	sqlDB, _ := s.DB.DB()
	sqlDB.Close()
}

func (s *AvailabilityServiceTestSuite) SetupTest() {
	s.DB.Exec("DELETE FROM bookings")
	s.DB.Exec("DELETE FROM facility_units")
	s.DB.Exec("DELETE FROM facilities")

	s.Clock = clock.NewFixed(time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC))
	cache := repository.NewCacheRepository(nil)
	s.Service = service.NewAvailabilityService(s.DB, cache, s.Clock, logger.New("error"))
}

func (s *AvailabilityServiceTestSuite) TestGetAllAssets_PooledFacilityUsage() {
	t := s.T()
	ctx := context.Background()

	facility := &models.Facility{
		DisplayName: "Study Hall", Category: "Study", TotalCapacity: 2,
		IsPooled: true, MinDurationMinutes: 30, MaxDurationMinutes: 240,
		OpenTime: "06:00", CloseTime: "23:59",
	}
	s.Require().NoError(s.DB.Create(facility).Error)

	now := s.Clock.Now()
	booking := &models.Booking{
		FacilityID: facility.ID, BookedBy: "alice", UserType: models.UserTypeIndividual,
		BookingType: models.BookingTypeTimeBased, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
		Status: models.BookingStatusScheduled, IdempotencyKey: "alice_1",
	}
	s.Require().NoError(s.DB.Create(booking).Error)

	assets, err := s.Service.GetAllAssets(ctx, "alice", "individual")
	assert.NoError(t, err)
	assert.Len(t, assets, 1)
	assert.Equal(t, 1, assets[0].CurrentUsage)
	assert.Equal(t, 1, assets[0].AvailableCapacity)
	assert.Equal(t, "available", assets[0].CurrentStatus)
	assert.NotNil(t, assets[0].MyActiveBooking)
}

func (s *AvailabilityServiceTestSuite) TestGetAllAssets_UnitBasedCountsDistinctUnits() {
	t := s.T()
	ctx := context.Background()

	facility := &models.Facility{
		DisplayName: "Courts", Category: "Sports", TotalCapacity: 2,
		IsPooled: false, MinDurationMinutes: 30, MaxDurationMinutes: 120,
		OpenTime: "07:00", CloseTime: "23:00",
	}
	s.Require().NoError(s.DB.Create(facility).Error)

	unit := &models.FacilityUnit{FacilityID: facility.ID, UnitName: "Court A", IsOperational: true}
	s.Require().NoError(s.DB.Create(unit).Error)

	now := s.Clock.Now()
	booking := &models.Booking{
		FacilityID: facility.ID, UnitID: &unit.ID, BookedBy: "bob", UserType: models.UserTypeIndividual,
		BookingType: models.BookingTypeTimeBased, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
		Status: models.BookingStatusScheduled, IdempotencyKey: "bob_1",
	}
	s.Require().NoError(s.DB.Create(booking).Error)

	assets, err := s.Service.GetAllAssets(ctx, "someone-else", "individual")
	assert.NoError(t, err)
	assert.Len(t, assets, 1)
	assert.Equal(t, 1, assets[0].CurrentUsage)
	assert.Equal(t, 1, assets[0].AvailableCapacity)
	assert.Len(t, assets[0].ActiveOccupants, 1)
	assert.Equal(t, "Court A", assets[0].ActiveOccupants[0].UnitName)
}

func (s *AvailabilityServiceTestSuite) TestGetAllAssets_EventSpaceHiddenFromIndividuals() {
	t := s.T()
	ctx := context.Background()

	facility := &models.Facility{
		DisplayName: "Event Hall", Category: "Event Space", TotalCapacity: 1,
		IsPooled: false, MinDurationMinutes: 480, MaxDurationMinutes: 960,
		OpenTime: "00:00", CloseTime: "23:59",
	}
	s.Require().NoError(s.DB.Create(facility).Error)

	individualView, err := s.Service.GetAllAssets(ctx, "alice", "individual")
	assert.NoError(t, err)
	assert.Len(t, individualView, 0)

	clubView, err := s.Service.GetAllAssets(ctx, "coach", "club")
	assert.NoError(t, err)
	assert.Len(t, clubView, 1)
}

func TestAvailabilityServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AvailabilityServiceTestSuite))
}
