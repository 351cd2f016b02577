package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/courtkeeper/internal/clock"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/handlers"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/repository"
	"github.com/slotwise/courtkeeper/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type FacilityHandlerTestSuite struct {
	suite.Suite
	DB       *gorm.DB
	Router   *gin.Engine
	Facility *models.Facility
	Unit     *models.FacilityUnit
}

func (s *FacilityHandlerTestSuite) SetupSuite() {
	testCfg := config.NewTestConfig()
	db, err := gorm.Open(postgres.Open(testCfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		s.T().Fatalf("failed to connect to postgres: %v", err)
	}
	s.DB = db

	err = s.DB.AutoMigrate(&models.Facility{}, &models.FacilityUnit{}, &models.Booking{})
	assert.NoError(s.T(), err)

	gin.SetMode(gin.TestMode)
}

func (s *FacilityHandlerTestSuite) TearDownSuite() {
	sqlDB, _ := s.DB.DB()
	sqlDB.Close()
}

func (s *FacilityHandlerTestSuite) SetupTest() {
	s.DB.Exec("DELETE FROM bookings")
	s.DB.Exec("DELETE FROM facility_units")
	s.DB.Exec("DELETE FROM facilities")

	s.Facility = &models.Facility{
		DisplayName: "Courts", Category: "Sports", TotalCapacity: 1,
		IsPooled: false, MinDurationMinutes: 30, MaxDurationMinutes: 120,
		OpenTime: "00:00", CloseTime: "23:59",
	}
	s.Require().NoError(s.DB.Create(s.Facility).Error)
	s.Unit = &models.FacilityUnit{FacilityID: s.Facility.ID, UnitName: "Court A", IsOperational: true}
	s.Require().NoError(s.DB.Create(s.Unit).Error)

	facilities := repository.NewFacilityRepository(s.DB)
	bookings := repository.NewBookingRepository(s.DB)
	cache := repository.NewCacheRepository(nil)
	log := logger.New("error")
	clk := clock.New()

	availabilityService := service.NewAvailabilityService(s.DB, cache, clk, log)
	cfg := config.Booking{MaxHorizonDays: 7, ClubHorizonDays: 30}
	scheduleService := service.NewScheduleService(facilities, bookings, cfg, log)
	facilityHandler := handlers.NewFacilityHandler(availabilityService, scheduleService, facilities, log)

	router := gin.New()
	router.GET("/assets", facilityHandler.GetAssets)
	router.GET("/facilities/:id/units", facilityHandler.GetUnits)
	router.GET("/facilities/:id/schedule", facilityHandler.GetSchedule)
	s.Router = router
}

func (s *FacilityHandlerTestSuite) get(path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func (s *FacilityHandlerTestSuite) TestGetAssets() {
	t := s.T()
	rr := s.get("/assets?userName=alice&userType=individual")
	assert.Equal(t, http.StatusOK, rr.Code)

	var assets []service.Asset
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &assets))
	assert.Len(t, assets, 1)
	assert.Equal(t, "Courts", assets[0].DisplayName)
}

func (s *FacilityHandlerTestSuite) TestGetUnits() {
	t := s.T()
	rr := s.get("/facilities/" + s.Facility.ID + "/units")
	assert.Equal(t, http.StatusOK, rr.Code)

	var units []map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &units))
	assert.Len(t, units, 1)
	assert.Equal(t, "Court A", units[0]["unit_name"])
}

func (s *FacilityHandlerTestSuite) TestGetSchedule_InvalidDateFormat() {
	t := s.T()
	rr := s.get("/facilities/" + s.Facility.ID + "/schedule?date=not-a-date&userType=individual")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func (s *FacilityHandlerTestSuite) TestGetSchedule_BeyondHorizonIsForbidden() {
	t := s.T()
	farFuture := time.Now().UTC().Add(30 * 24 * time.Hour).Format("2006-01-02")
	rr := s.get("/facilities/" + s.Facility.ID + "/schedule?date=" + farFuture + "&userType=individual")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func (s *FacilityHandlerTestSuite) TestGetSchedule_WithinHorizonReturnsUnits() {
	t := s.T()
	soon := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	rr := s.get("/facilities/" + s.Facility.ID + "/schedule?date=" + soon + "&userType=individual")
	assert.Equal(t, http.StatusOK, rr.Code)

	var grid service.ScheduleGrid
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grid))
	assert.Len(t, grid.Units, 1)
}

func TestFacilityHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(FacilityHandlerTestSuite))
}
