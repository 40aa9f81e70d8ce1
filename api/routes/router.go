// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"venuely/internal/auth"
	"venuely/internal/bookings"
	"venuely/internal/notifications"
	"venuely/internal/payments"
	"venuely/internal/payments/gateway"
	"venuely/internal/shared/config"
	"venuely/internal/shared/database"
	"venuely/internal/shared/middleware"
	"venuely/internal/venues"
	"venuely/pkg/cache"
	"venuely/pkg/logger"
	"venuely/pkg/mq"

	"venuely/docs"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	log      *logger.Logger
	notifier notifications.Notifier
	events   mq.EventPublisher

	cache       cache.Service
	revocations auth.RevocationStore
	requireAuth gin.HandlerFunc

	// PaymentService is exposed for the reconciler job.
	PaymentService payments.Service
}

// NewRouter builds the shared infrastructure every feature router needs.
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger, notifier notifications.Notifier, events mq.EventPublisher) *Router {
	var c cache.Service
	if db.GetRedis() != nil {
		c = cache.NewService(db.GetRedis())
	} else {
		c = cache.NewMemoryService()
	}
	revocations := auth.NewRevocationStore(c)

	return &Router{
		config:      cfg,
		db:          db,
		log:         log,
		notifier:    notifier,
		events:      events,
		cache:       c,
		revocations: revocations,
		requireAuth: middleware.JWTAuthWithConfig(cfg, revocations, log),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)
	r.setupDocsRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)
		venueRepo := r.setupVenueRoutes(api)
		bookingRepo := r.setupBookingRoutes(api, venueRepo)
		r.setupPaymentRoutes(api, bookingRepo)
		r.setupNotificationRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "venuely-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "venuely-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"redis":       r.db.GetRedis() != nil,
			"timestamp":   time.Now(),
		})
	})
}

func (r *Router) setupDocsRoutes(engine *gin.Engine) {
	docs.SwaggerInfo.BasePath = r.config.GetAPIBasePath()
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// setupAuthRoutes configures authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.db.GetPostgreSQL())
	authService := auth.NewService(authRepo, r.revocations, r.config, r.log)
	authController := auth.NewController(authService)

	auth.SetupAuthRoutes(rg, authController, r.requireAuth)
}

// setupVenueRoutes configures the venue directory and owner management routes
func (r *Router) setupVenueRoutes(rg *gin.RouterGroup) venues.Repository {
	venueRepo := venues.NewRepository(r.db.GetPostgreSQL())
	venueService := venues.NewService(venueRepo, r.cache, r.log)
	venueController := venues.NewController(venueService)

	venues.SetupVenueRoutes(rg, venueController, r.requireAuth)
	return venueRepo
}

// setupBookingRoutes configures the booking engine routes
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup, venueRepo venues.Repository) bookings.Repository {
	locker := bookings.NewSlotLocker(r.db.GetRedis(), r.config.Booking.SlotLockTTL, r.log)
	bookingRepo := bookings.NewRepository(r.db.GetPostgreSQL())
	bookingService := bookings.NewService(bookingRepo, venueRepo, locker, r.notifier, r.config.Booking, r.log)
	bookingController := bookings.NewController(bookingService)

	bookings.SetupBookingRoutes(rg, bookingController, r.requireAuth)
	return bookingRepo
}

// setupPaymentRoutes configures checkout, callbacks, refunds and earnings
func (r *Router) setupPaymentRoutes(rg *gin.RouterGroup, bookingRepo bookings.Repository) {
	paymentRepo := payments.NewRepository(r.db.GetPostgreSQL())
	gateways := gateway.NewDefaultRegistry(r.config.Payments)
	r.PaymentService = payments.NewService(paymentRepo, bookingRepo, gateways, r.events, r.notifier, r.config.Payments, r.log)
	paymentController := payments.NewController(r.PaymentService)

	payments.SetupPaymentRoutes(rg, paymentController, r.requireAuth)
}

// setupNotificationRoutes configures the in-app inbox
func (r *Router) setupNotificationRoutes(rg *gin.RouterGroup) {
	notificationRepo := notifications.NewRepository(r.db.GetPostgreSQL())
	notificationService := notifications.NewService(notificationRepo)
	notificationController := notifications.NewController(notificationService)

	notifications.SetupNotificationRoutes(rg, notificationController, r.requireAuth)
}
