package venues

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

func parseVenueID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid venue ID", nil, "venue id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateVenue handles POST /api/v1/venues
func (c *Controller) CreateVenue(ctx *gin.Context) {
	ownerID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	var req CreateVenueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	venue, err := c.service.CreateVenue(ctx.Request.Context(), ownerID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Venue created successfully", venue, nil)
}

// GetVenue handles GET /api/v1/venues/:id
func (c *Controller) GetVenue(ctx *gin.Context) {
	id, ok := parseVenueID(ctx)
	if !ok {
		return
	}

	venue, err := c.service.GetVenue(ctx.Request.Context(), id)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Venue retrieved successfully", venue, nil)
}

// ListVenues handles GET /api/v1/venues
func (c *Controller) ListVenues(ctx *gin.Context) {
	var filters VenueFilters
	if err := ctx.ShouldBindQuery(&filters); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.ListVenues(ctx.Request.Context(), filters)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Venues retrieved successfully", result, nil)
}

// ListOwnerVenues handles GET /api/v1/owner/venues
func (c *Controller) ListOwnerVenues(ctx *gin.Context) {
	ownerID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	var filters VenueFilters
	if err := ctx.ShouldBindQuery(&filters); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.ListOwnerVenues(ctx.Request.Context(), ownerID, filters)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Venues retrieved successfully", result, nil)
}

// UpdateVenue handles PUT /api/v1/venues/:id
func (c *Controller) UpdateVenue(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseVenueID(ctx)
	if !ok {
		return
	}

	var req UpdateVenueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	venue, err := c.service.UpdateVenue(ctx.Request.Context(), id, actorID, role, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Venue updated successfully", venue, nil)
}

// DeactivateVenue handles DELETE /api/v1/venues/:id
func (c *Controller) DeactivateVenue(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseVenueID(ctx)
	if !ok {
		return
	}

	if err := c.service.DeactivateVenue(ctx.Request.Context(), id, actorID, role); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Venue deactivated successfully", nil, nil)
}

// BlockDates handles POST /api/v1/venues/:id/blocked-dates
func (c *Controller) BlockDates(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseVenueID(ctx)
	if !ok {
		return
	}

	var req BlockDatesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	venue, err := c.service.BlockDates(ctx.Request.Context(), id, actorID, role, req.Dates)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Dates blocked successfully", venue, nil)
}

// UnblockDate handles DELETE /api/v1/venues/:id/blocked-dates/:date
func (c *Controller) UnblockDate(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseVenueID(ctx)
	if !ok {
		return
	}

	venue, err := c.service.UnblockDate(ctx.Request.Context(), id, actorID, role, ctx.Param("date"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Date unblocked successfully", venue, nil)
}
