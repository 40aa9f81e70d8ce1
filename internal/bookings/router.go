package bookings

import (
	"venuely/internal/shared/middleware"
	"venuely/internal/users"

	"github.com/gin-gonic/gin"
)

func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, requireAuth gin.HandlerFunc) {
	public := rg.Group("/bookings")
	{
		public.GET("/availability/:venueId", controller.GetDayAvailability) // GET /api/v1/bookings/availability/:venueId?date=
	}

	bookings := rg.Group("/bookings")
	bookings.Use(requireAuth)
	{
		bookings.POST("", controller.CreateBooking)                     // POST /api/v1/bookings
		bookings.GET("/me", controller.ListMyBookings)                  // GET /api/v1/bookings/me
		bookings.GET("/:id", controller.GetBooking)                     // GET /api/v1/bookings/:id
		bookings.PATCH("/:id/status", controller.UpdateStatus)          // PATCH /api/v1/bookings/:id/status
		bookings.PATCH("/:id/reschedule", controller.Reschedule)        // PATCH /api/v1/bookings/:id/reschedule
		bookings.GET("/:id/refund-estimate", controller.RefundEstimate) // GET /api/v1/bookings/:id/refund-estimate
		bookings.DELETE("/:id", controller.DeleteBooking)               // DELETE /api/v1/bookings/:id
	}

	owner := rg.Group("/owner")
	owner.Use(requireAuth, middleware.RequireRoles(users.RoleOwner, users.RoleAdmin))
	{
		owner.GET("/bookings", controller.ListOwnerBookings) // GET /api/v1/owner/bookings
	}
}
