package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleaning-booking-server/middleware"
	"cleaning-booking-server/models"
)

// Handlers is everything the API mounts. A nil handler leaves its routes
// out.
type Handlers struct {
	Tokens   middleware.TokenParser
	Users    middleware.UserLoader
	Limiter  *middleware.RateLimiter
	Origins  []string
	Health   gin.HandlerFunc
	Auth     *AuthHandler
	Booking  *BookingHandler
	Cleaners *CleanerHandler
	Reserve  *ReservationHandler
	Chats    *ChatHandler
	Notices  *NotificationHandler
	Address  *AddressHandler
	Admin    *AdminHandler
	Realtime *RealtimeHandler
}

// NewRouter builds the engine with the middleware chain and every route
// group.
func NewRouter(h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.InputValidationMiddleware())
	if h.Limiter != nil {
		router.Use(middleware.RateLimitMiddleware(h.Limiter))
	}
	router.Use(middleware.CORSMiddleware(h.Origins))
	router.Use(middleware.AuditLogMiddleware())

	health := h.Health
	if health == nil {
		health = func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	}
	router.GET("/health", health)

	api := router.Group("/api/v1")

	if h.Realtime != nil {
		api.GET("/realtime/ws", middleware.WebSocketAuthMiddleware(h.Tokens, h.Users), h.Realtime.serve)
	}

	public := api.Group("/auth")
	if h.Limiter != nil {
		public.Use(middleware.AuthRateLimitMiddleware(h.Limiter))
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(h.Tokens, h.Users))
	{
		if h.Auth != nil {
			h.Auth.RegisterAuthRoutes(public, protected)
		}

		bookingGroup := protected.Group("/booking", middleware.RequireRole(models.RoleCustomer))
		if h.Booking != nil {
			h.Booking.RegisterBookingRoutes(bookingGroup)
		}
		if h.Cleaners != nil {
			h.Cleaners.RegisterCleanerRoutes(bookingGroup, protected)
		}
		if h.Reserve != nil {
			h.Reserve.RegisterReservationRoutes(protected.Group("/reservations"))
		}
		if h.Chats != nil {
			h.Chats.RegisterChatRoutes(protected.Group("/chats"))
		}
		if h.Notices != nil {
			h.Notices.RegisterNotificationRoutes(protected.Group("/notifications"))
		}
		if h.Address != nil {
			h.Address.RegisterAddressRoutes(protected.Group("/addresses", middleware.RequireRole(models.RoleCustomer)))
		}
		if h.Admin != nil {
			h.Admin.RegisterAdminRoutes(protected.Group("/admin", middleware.RequireRole(models.RoleAdmin)))
		}
	}

	return router
}
