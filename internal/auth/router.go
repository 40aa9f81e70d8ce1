package auth

import (
	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers the auth endpoints. requireAuth is the JWT middleware.
func SetupAuthRoutes(rg *gin.RouterGroup, controller *Controller, requireAuth gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", controller.Register)
		auth.POST("/login", controller.Login)
		auth.POST("/refresh", controller.RefreshToken)

		protected := auth.Group("")
		protected.Use(requireAuth)
		{
			protected.POST("/logout", controller.Logout)
			protected.PUT("/change-password", controller.ChangePassword)
			protected.GET("/me", controller.GetMe)
		}
	}
}
