package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/courtkeeper/internal/apperr"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/repository"
	"github.com/slotwise/courtkeeper/internal/service"
)

// FacilityHandler serves the asset/unit/schedule read surface.
type FacilityHandler struct {
	availability *service.AvailabilityService
	schedule     *service.ScheduleService
	facilities   *repository.FacilityRepository
	logger       *logger.Logger
}

func NewFacilityHandler(availability *service.AvailabilityService, schedule *service.ScheduleService, facilities *repository.FacilityRepository, logger *logger.Logger) *FacilityHandler {
	return &FacilityHandler{availability: availability, schedule: schedule, facilities: facilities, logger: logger}
}

// unitView is the unit shape the collaborator contract promises.
type unitView struct {
	ID            string `json:"id"`
	UnitName      string `json:"unit_name"`
	IsOperational bool   `json:"is_operational"`
}

// GetAssets handles GET /assets.
func (h *FacilityHandler) GetAssets(c *gin.Context) {
	userName := c.Query("userName")
	userType := c.Query("userType")

	assets, err := h.availability.GetAllAssets(c.Request.Context(), userName, userType)
	if err != nil {
		h.logger.Error("failed to project assets", "error", err)
		respondError(c, apperr.NewInternal("failed to load assets", err))
		return
	}

	c.JSON(http.StatusOK, assets)
}

// GetUnits handles GET /facilities/:id/units.
func (h *FacilityHandler) GetUnits(c *gin.Context) {
	facilityID := c.Param("id")
	if facilityID == "" {
		respondError(c, apperr.NewBadRequest("facility id is required"))
		return
	}

	units, err := h.facilities.ListOperationalUnits(c.Request.Context(), facilityID)
	if err != nil {
		respondError(c, apperr.NewInternal("failed to list units", err))
		return
	}

	views := make([]unitView, 0, len(units))
	for _, u := range units {
		views = append(views, unitView{ID: u.ID, UnitName: u.UnitName, IsOperational: u.IsOperational})
	}

	c.JSON(http.StatusOK, views)
}

// GetSchedule handles GET /facilities/:id/schedule.
func (h *FacilityHandler) GetSchedule(c *gin.Context) {
	facilityID := c.Param("id")
	if facilityID == "" {
		respondError(c, apperr.NewBadRequest("facility id is required"))
		return
	}

	dateStr := c.Query("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		respondError(c, apperr.NewBadRequest("date must be in YYYY-MM-DD format"))
		return
	}

	userType := models.UserType(c.Query("userType"))
	now := time.Now().UTC()
	if err := h.schedule.ValidateDateWindow(date, now, userType); err != nil {
		respondError(c, err)
		return
	}

	grid, err := h.schedule.GetScheduleForDate(c.Request.Context(), facilityID, date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, grid)
}
