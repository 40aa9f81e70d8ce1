package payments

import (
	"venuely/internal/shared/middleware"
	"venuely/internal/users"

	"github.com/gin-gonic/gin"
)

func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller, requireAuth gin.HandlerFunc) {
	callbacks := rg.Group("/payments")
	{
		callbacks.GET("/success", controller.PaymentSuccess) // GET /api/v1/payments/success?gateway=
		callbacks.GET("/failure", controller.PaymentFailure) // GET /api/v1/payments/failure
	}

	payments := rg.Group("/payments")
	payments.Use(requireAuth)
	{
		payments.POST("/initiate", controller.InitiatePayment)              // POST /api/v1/payments/initiate
		payments.GET("/booking/:bookingId", controller.ListBookingPayments) // GET /api/v1/payments/booking/:bookingId
		payments.GET("/:id", controller.GetPayment)                         // GET /api/v1/payments/:id
		payments.POST("/:id/refund", controller.RequestRefund)              // POST /api/v1/payments/:id/refund
	}

	owner := rg.Group("/owner")
	owner.Use(requireAuth, middleware.RequireRoles(users.RoleOwner, users.RoleAdmin))
	{
		owner.GET("/earnings", controller.OwnerEarnings) // GET /api/v1/owner/earnings
	}

	admin := rg.Group("/admin/payments")
	admin.Use(requireAuth, middleware.RequireRoles(users.RoleAdmin))
	{
		admin.POST("/:id/reconcile", controller.ReconcilePayment)  // POST /api/v1/admin/payments/:id/reconcile
		admin.PATCH("/:id/refund/settle", controller.SettleRefund) // PATCH /api/v1/admin/payments/:id/refund/settle
	}
}
