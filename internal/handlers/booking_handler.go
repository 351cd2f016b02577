package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/courtkeeper/internal/apperr"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/models"
	"github.com/slotwise/courtkeeper/internal/service"
)

// BookingHandler serves the reservation lifecycle endpoints.
type BookingHandler struct {
	bookings *service.BookingService
	logger   *logger.Logger
}

func NewBookingHandler(bookings *service.BookingService, logger *logger.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// reserveRequest is the body of POST /reserve.
type reserveRequest struct {
	FacilityID string    `json:"facilityId" binding:"required"`
	UnitID     *string   `json:"unitId"`
	UserName   string    `json:"userName" binding:"required"`
	UserType   string    `json:"userType" binding:"required"`
	ClubName   string    `json:"clubName"`
	StartsAt   time.Time `json:"startsAt" binding:"required"`
	EndsAt     time.Time `json:"endsAt" binding:"required"`
}

// Reserve handles POST /reserve.
func (h *BookingHandler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewBadRequest("invalid request body: "+err.Error()))
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), service.CreateRequest{
		FacilityID: req.FacilityID,
		UnitID:     req.UnitID,
		UserName:   req.UserName,
		UserType:   models.UserType(req.UserType),
		ClubName:   req.ClubName,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// bookingActionRequest is the shared body shape of check-in/check-out/cancel.
type bookingActionRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
	UserName  string `json:"userName" binding:"required"`
}

// CheckIn handles POST /check-in.
func (h *BookingHandler) CheckIn(c *gin.Context) {
	var req bookingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewBadRequest("invalid request body: "+err.Error()))
		return
	}

	booking, err := h.bookings.CheckIn(c.Request.Context(), req.BookingID, req.UserName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CheckOut handles POST /check-out.
func (h *BookingHandler) CheckOut(c *gin.Context) {
	var req bookingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewBadRequest("invalid request body: "+err.Error()))
		return
	}

	booking, err := h.bookings.CheckOut(c.Request.Context(), req.BookingID, req.UserName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// Cancel handles POST /cancel.
func (h *BookingHandler) Cancel(c *gin.Context) {
	var req bookingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.NewBadRequest("invalid request body: "+err.Error()))
		return
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), req.BookingID, req.UserName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListForUser handles GET /bookings/user/:userName.
func (h *BookingHandler) ListForUser(c *gin.Context) {
	userName := c.Param("userName")
	if userName == "" {
		respondError(c, apperr.NewBadRequest("userName is required"))
		return
	}

	bookings, err := h.bookings.ListForUser(c.Request.Context(), userName)
	if err != nil {
		respondError(c, apperr.NewInternal("failed to list bookings", err))
		return
	}

	c.JSON(http.StatusOK, bookings)
}
