package notifications

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

// ListNotifications handles GET /api/v1/notifications
func (c *Controller) ListNotifications(ctx *gin.Context) {
	userID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	var query ListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.List(ctx.Request.Context(), userID, query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Notifications retrieved successfully", result, nil)
}

// MarkRead handles PATCH /api/v1/notifications/:id/read
func (c *Controller) MarkRead(ctx *gin.Context) {
	userID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid notification ID", nil, nil)
		return
	}

	if err := c.service.MarkRead(ctx.Request.Context(), id, userID); err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Notification marked as read", nil, nil)
}
