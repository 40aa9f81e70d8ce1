package bookings

import (
	"net/http"

	"venuely/internal/shared/middleware"
	"venuely/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func parseUUIDParam(ctx *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid "+label+" ID", nil, label+" id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateBooking handles POST /api/v1/bookings
func (c *Controller) CreateBooking(ctx *gin.Context) {
	userID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	booking, err := c.service.Create(ctx.Request.Context(), userID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking created successfully", booking, nil)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "booking")
	if !ok {
		return
	}

	booking, err := c.service.GetBooking(ctx.Request.Context(), id, actorID, role)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

// ListMyBookings handles GET /api/v1/bookings/me
func (c *Controller) ListMyBookings(ctx *gin.Context) {
	userID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.ListMyBookings(ctx.Request.Context(), userID, query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", result, nil)
}

// ListOwnerBookings handles GET /api/v1/owner/bookings
func (c *Controller) ListOwnerBookings(ctx *gin.Context) {
	ownerID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.ListOwnerBookings(ctx.Request.Context(), ownerID, role, query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", result, nil)
}

// UpdateStatus handles PATCH /api/v1/bookings/:id/status
func (c *Controller) UpdateStatus(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "booking")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	booking, err := c.service.UpdateStatus(ctx.Request.Context(), id, actorID, role, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking updated successfully", booking, nil)
}

// Reschedule handles PATCH /api/v1/bookings/:id/reschedule
func (c *Controller) Reschedule(ctx *gin.Context) {
	actorID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "booking")
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	booking, err := c.service.Reschedule(ctx.Request.Context(), id, actorID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking rescheduled successfully", booking, nil)
}

// RefundEstimate handles GET /api/v1/bookings/:id/refund-estimate
func (c *Controller) RefundEstimate(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "booking")
	if !ok {
		return
	}

	estimate, err := c.service.RefundEstimate(ctx.Request.Context(), id, actorID, role)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Refund estimate calculated", estimate, nil)
}

// DeleteBooking handles DELETE /api/v1/bookings/:id
func (c *Controller) DeleteBooking(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "booking")
	if !ok {
		return
	}

	if err := c.service.Delete(ctx.Request.Context(), id, actorID, role); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking deleted successfully", nil, nil)
}

// GetDayAvailability handles GET /api/v1/bookings/availability/:venueId?date=YYYY-MM-DD
func (c *Controller) GetDayAvailability(ctx *gin.Context) {
	venueID, ok := parseUUIDParam(ctx, "venueId", "venue")
	if !ok {
		return
	}
	date := ctx.Query("date")
	if date == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, "date is required")
		return
	}

	day, err := c.service.DayAvailability(ctx.Request.Context(), venueID, date)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", day, nil)
}
