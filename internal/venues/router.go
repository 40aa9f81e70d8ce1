package venues

import (
	"venuely/internal/shared/middleware"
	"venuely/internal/users"

	"github.com/gin-gonic/gin"
)

func SetupVenueRoutes(rg *gin.RouterGroup, controller *Controller, requireAuth gin.HandlerFunc) {
	public := rg.Group("/venues")
	{
		public.GET("", controller.ListVenues)   // GET /api/v1/venues
		public.GET("/:id", controller.GetVenue) // GET /api/v1/venues/:id
	}

	manage := rg.Group("/venues")
	manage.Use(requireAuth, middleware.RequireRoles(users.RoleOwner, users.RoleAdmin))
	{
		manage.POST("", controller.CreateVenue)                           // POST /api/v1/venues
		manage.PUT("/:id", controller.UpdateVenue)                        // PUT /api/v1/venues/:id
		manage.DELETE("/:id", controller.DeactivateVenue)                 // DELETE /api/v1/venues/:id
		manage.POST("/:id/blocked-dates", controller.BlockDates)          // POST /api/v1/venues/:id/blocked-dates
		manage.DELETE("/:id/blocked-dates/:date", controller.UnblockDate) // DELETE /api/v1/venues/:id/blocked-dates/:date
	}

	owner := rg.Group("/owner")
	owner.Use(requireAuth, middleware.RequireRoles(users.RoleOwner, users.RoleAdmin))
	{
		owner.GET("/venues", controller.ListOwnerVenues) // GET /api/v1/owner/venues
	}
}
