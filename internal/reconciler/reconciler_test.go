package reconciler_test

import (
	"context"
	"testing"
	"time"

	"github.com/slotwise/courtkeeper/internal/clock"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/events"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/reconciler"
	"github.com/slotwise/courtkeeper/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type mockBroadcaster struct {
	fired []string
}

func (m *mockBroadcaster) Fire(facilityID string) {
	m.fired = append(m.fired, facilityID)
}

var _ events.Broadcaster = (*mockBroadcaster)(nil)

type ReconcilerTestSuite struct {
	suite.Suite
	DB          *gorm.DB
	BookingRepo *repository.BookingRepository
	Broadcaster *mockBroadcaster
	Clock       *clock.Fixed
	Reconciler  *reconciler.Reconciler
	Facility    *models.Facility
}

func (s *ReconcilerTestSuite) SetupSuite() {
	testCfg := config.NewTestConfig()
	db, err := gorm.Open(postgres.Open(testCfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		s.T().Fatalf("failed to connect to postgres: %v", err)
	}
	s.DB = db

	err = s.DB.AutoMigrate(&models.Facility{}, &models.FacilityUnit{}, &models.Booking{})
	assert.NoError(s.T(), err)
}

func (s *ReconcilerTestSuite) TearDownSuite() {
	sqlDB, _ := s.DB.DB()
	sqlDB.Close()
}

func (s *ReconcilerTestSuite) SetupTest() {
	s.DB.Exec("DELETE FROM bookings")
	s.DB.Exec("DELETE FROM facility_units")
	s.DB.Exec("DELETE FROM facilities")

	s.BookingRepo = repository.NewBookingRepository(s.DB)
	s.Broadcaster = &mockBroadcaster{}
	s.Clock = clock.NewFixed(time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC))
	cache := repository.NewCacheRepository(nil)

	cfg := config.Booking{NoShowGraceMinutes: 15, CleanupLockID: 9999}
	s.Reconciler = reconciler.New(s.DB, s.BookingRepo, cache, s.Broadcaster, s.Clock, cfg, logger.New("error"))

	s.Facility = &models.Facility{
		DisplayName: "Courts", Category: "Sports", TotalCapacity: 1,
		IsPooled: true, MinDurationMinutes: 30, MaxDurationMinutes: 120,
		OpenTime: "00:00", CloseTime: "23:59",
	}
	s.Require().NoError(s.DB.Create(s.Facility).Error)
}

func (s *ReconcilerTestSuite) TestRunCycle_ReleasesNoShow() {
	t := s.T()
	now := s.Clock.Now()

	booking := &models.Booking{
		FacilityID: s.Facility.ID, BookedBy: "alice", UserType: models.UserTypeIndividual,
		BookingType: models.BookingTypeTimeBased,
		StartsAt:    now.Add(-30 * time.Minute), EndsAt: now.Add(30 * time.Minute),
		Status: models.BookingStatusScheduled, IdempotencyKey: "alice_noshow",
	}
	s.Require().NoError(s.DB.Create(booking).Error)

	s.Reconciler.RunCycle(context.Background())

	var reloaded models.Booking
	s.Require().NoError(s.DB.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, models.BookingStatusReleased, reloaded.Status)
	assert.Contains(t, s.Broadcaster.fired, "")
}

func (s *ReconcilerTestSuite) TestRunCycle_KeepsBookingWithinGraceWindow() {
	t := s.T()
	now := s.Clock.Now()

	booking := &models.Booking{
		FacilityID: s.Facility.ID, BookedBy: "alice", UserType: models.UserTypeIndividual,
		BookingType: models.BookingTypeTimeBased,
		StartsAt:    now.Add(-5 * time.Minute), EndsAt: now.Add(55 * time.Minute),
		Status: models.BookingStatusScheduled, IdempotencyKey: "alice_ontime",
	}
	s.Require().NoError(s.DB.Create(booking).Error)

	s.Reconciler.RunCycle(context.Background())

	var reloaded models.Booking
	s.Require().NoError(s.DB.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, models.BookingStatusScheduled, reloaded.Status)
}

func (s *ReconcilerTestSuite) TestRunCycle_CompletesExpiredCheckedInSession() {
	t := s.T()
	now := s.Clock.Now()

	booking := &models.Booking{
		FacilityID: s.Facility.ID, BookedBy: "alice", UserType: models.UserTypeIndividual,
		BookingType: models.BookingTypeTimeBased,
		StartsAt:    now.Add(-time.Hour), EndsAt: now.Add(-time.Minute),
		Status: models.BookingStatusCheckedIn, IdempotencyKey: "alice_expired",
	}
	s.Require().NoError(s.DB.Create(booking).Error)

	s.Reconciler.RunCycle(context.Background())

	var reloaded models.Booking
	s.Require().NoError(s.DB.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, models.BookingStatusCompleted, reloaded.Status)
}

func (s *ReconcilerTestSuite) TestRunCycle_NoOpSkipsBroadcast() {
	t := s.T()
	s.Reconciler.RunCycle(context.Background())
	assert.Empty(t, s.Broadcaster.fired)
	assert.Equal(t, s.Clock.Now(), s.Reconciler.LastCleanupRunAt())
}

func TestReconcilerTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerTestSuite))
}
