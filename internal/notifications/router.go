package notifications

import (
	"github.com/gin-gonic/gin"
)

func SetupNotificationRoutes(rg *gin.RouterGroup, controller *Controller, requireAuth gin.HandlerFunc) {
	inbox := rg.Group("/notifications")
	inbox.Use(requireAuth)
	{
		inbox.GET("", controller.ListNotifications)   // GET /api/v1/notifications
		inbox.PATCH("/:id/read", controller.MarkRead) // PATCH /api/v1/notifications/:id/read
	}
}
