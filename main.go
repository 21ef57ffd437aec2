package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"cleaning-booking-server/booking"
	"cleaning-booking-server/chat"
	"cleaning-booking-server/config"
	"cleaning-booking-server/database"
	"cleaning-booking-server/jobs"
	"cleaning-booking-server/matching"
	"cleaning-booking-server/media"
	"cleaning-booking-server/middleware"
	"cleaning-booking-server/notifications"
	"cleaning-booking-server/realtime"
	"cleaning-booking-server/repository"
	"cleaning-booking-server/routes"
	"cleaning-booking-server/services"
	ws "cleaning-booking-server/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, using environment variables")
	}
	config.Load()
	cfg := config.AppConfig
	gin.SetMode(cfg.Server.GinMode)
	loc := cfg.Booking.Location()

	db, err := database.Initialize(cfg.Database.URL)
	if err != nil {
		log.Fatal("❌ Failed to initialize database:", err)
	}

	// Redis is optional: without it the change feed stays in-process and
	// reminders are not scheduled.
	var rdb *redis.Client
	if cfg.Realtime.Backend == "redis" {
		rdb, err = realtime.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("❌ Failed to connect to Redis:", err)
		}
		defer rdb.Close()
	}
	var broker realtime.Broker = realtime.NewMemoryBroker()
	if rdb != nil {
		broker = realtime.NewRedisBroker(rdb)
		log.Println("✅ Realtime backend: redis")
	} else {
		log.Println("✅ Realtime backend: memory")
	}

	users := repository.NewUserRepository(db, broker)
	reservations := repository.NewReservationRepository(db, broker)
	chatRepo := repository.NewChatRepository(db, broker)
	notificationRepo := repository.NewNotificationRepository(db, broker)

	notificationService := notifications.NewService(notificationRepo, broker)
	chatService := chat.NewService(chatRepo, users, reservations, broker)
	matcher := matching.NewService(users)
	jwtService := services.NewJWTService(db, cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	var (
		hooks      []booking.AfterCommitHook
		taskClient *asynq.Client
		taskServer *asynq.Server
	)
	if rdb != nil {
		taskClient = jobs.NewClient(rdb)
		defer taskClient.Close()
		scheduler := jobs.NewReminderScheduler(taskClient, cfg.Booking.ReminderLead(), loc)
		hooks = append(hooks, scheduler.AfterCommit)

		processor := jobs.NewTaskProcessor(reservations, notificationService, loc)
		srv, mux := jobs.SetupServer(rdb, processor)
		taskServer = srv
		go func() {
			log.Println("🚀 Reminder worker started")
			if err := taskServer.Run(mux); err != nil {
				log.Printf("❌ Reminder worker stopped: %v", err)
			}
		}()
	} else {
		log.Println("⚠️ Reminders disabled: REALTIME_BACKEND is not redis")
	}

	registry := booking.NewRegistry(func(b booking.Booker) *booking.Wizard {
		return booking.NewWizard(b, reservations, booking.Options{
			Matcher:  matching.DeferredMatcher{},
			Location: loc,
			Hooks:    hooks,
		})
	})

	var uploader media.Uploader
	if cfg.Cloudinary.URL != "" {
		cld, err := media.NewCloudinary(cfg.Cloudinary.URL)
		if err != nil {
			log.Printf("⚠️ Cloudinary disabled: %v", err)
		} else {
			uploader = cld
		}
	}

	hub := ws.NewHub(chatService, notificationService)
	go hub.Run()

	expiryJob := jobs.NewDraftExpiryJob(registry, cfg.Booking.DraftTTL())
	expiryJob.Start()

	limiter := middleware.NewRateLimiter()
	stopCleanup := make(chan struct{})
	go runCleanup(jwtService, limiter, stopCleanup)

	router := routes.NewRouter(routes.Handlers{
		Tokens:  jwtService,
		Users:   users,
		Limiter: limiter,
		Origins: cfg.CORS.AllowedOrigins,
		Health: func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":          "ok",
				"connections":     hub.ConnectionCount(),
				"active_bookings": registry.Len(),
				"timestamp":       time.Now().Unix(),
			})
		},
		Auth:     routes.NewAuthHandler(users, jwtService),
		Booking:  routes.NewBookingHandler(registry),
		Cleaners: routes.NewCleanerHandler(registry, matcher),
		Reserve:  routes.NewReservationHandler(reservations, notificationService, chatService),
		Chats:    routes.NewChatHandler(chatService, uploader),
		Notices:  routes.NewNotificationHandler(notificationService),
		Address:  routes.NewAddressHandler(db),
		Admin:    routes.NewAdminHandler(users, notificationService),
		Realtime: routes.NewRealtimeHandler(hub, ws.AllowOrigins(cfg.CORS.AllowedOrigins)),
	})

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("🛑 Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ HTTP shutdown failed: %v", err)
	}
	hub.Stop()
	expiryJob.Stop()
	close(stopCleanup)
	if taskServer != nil {
		taskServer.Shutdown()
	}
	log.Println("✅ Server stopped")
}

// runCleanup prunes expired refresh tokens daily and idle rate limiters
// every ten minutes.
func runCleanup(tokens *services.JWTService, limiter *middleware.RateLimiter, stop <-chan struct{}) {
	if n, err := tokens.CleanupExpiredTokens(); err != nil {
		log.Printf("❌ Token cleanup failed: %v", err)
	} else if n > 0 {
		log.Printf("✅ Removed %d expired refresh tokens", n)
	}

	tokenTicker := time.NewTicker(24 * time.Hour)
	limiterTicker := time.NewTicker(10 * time.Minute)
	defer tokenTicker.Stop()
	defer limiterTicker.Stop()

	for {
		select {
		case <-tokenTicker.C:
			if _, err := tokens.CleanupExpiredTokens(); err != nil {
				log.Printf("❌ Token cleanup failed: %v", err)
			}
		case <-limiterTicker.C:
			limiter.Cleanup()
		case <-stop:
			return
		}
	}
}
