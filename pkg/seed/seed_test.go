package seed_test

import (
	"context"
	"testing"

	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/pkg/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type SeedTestSuite struct {
	suite.Suite
	DB *gorm.DB
}

func (s *SeedTestSuite) SetupSuite() {
	testCfg := config.NewTestConfig()
	db, err := gorm.Open(postgres.Open(testCfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		s.T().Fatalf("failed to connect to postgres: %v", err)
	}
	s.DB = db

	err = s.DB.AutoMigrate(&models.Facility{}, &models.FacilityUnit{}, &models.Booking{})
	assert.NoError(s.T(), err)
}

func (s *SeedTestSuite) TearDownSuite() {
	sqlDB, _ := s.DB.DB()
	sqlDB.Close()
}

func (s *SeedTestSuite) SetupTest() {
	s.DB.Exec("DELETE FROM bookings")
	s.DB.Exec("DELETE FROM facility_units")
	s.DB.Exec("DELETE FROM facilities")
}

func (s *SeedTestSuite) TestRun_InsertsFixtureRoster() {
	t := s.T()
	err := seed.Run(context.Background(), s.DB)
	assert.NoError(t, err)

	var facilityCount int64
	s.DB.Model(&models.Facility{}).Count(&facilityCount)
	assert.Equal(t, int64(3), facilityCount)

	var unitCount int64
	s.DB.Model(&models.FacilityUnit{}).Count(&unitCount)
	assert.Equal(t, int64(4), unitCount)
}

func (s *SeedTestSuite) TestRun_IsIdempotent() {
	t := s.T()
	assert.NoError(t, seed.Run(context.Background(), s.DB))
	assert.NoError(t, seed.Run(context.Background(), s.DB))

	var facilityCount int64
	s.DB.Model(&models.Facility{}).Count(&facilityCount)
	assert.Equal(t, int64(3), facilityCount)
}

func TestSeedTestSuite(t *testing.T) {
	suite.Run(t, new(SeedTestSuite))
}
