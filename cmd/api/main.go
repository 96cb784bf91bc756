package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/hookline/tow-bookings/internal/cache"
	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/handlers"
	"github.com/hookline/tow-bookings/internal/notify"
	"github.com/hookline/tow-bookings/internal/payments"
	"github.com/hookline/tow-bookings/internal/receipts"
	"github.com/hookline/tow-bookings/internal/repository"
	"github.com/hookline/tow-bookings/internal/service"
	"github.com/hookline/tow-bookings/pkg/config"
	"github.com/hookline/tow-bookings/pkg/database"
	"github.com/hookline/tow-bookings/pkg/events"
	"github.com/hookline/tow-bookings/pkg/logger"
	mw "github.com/hookline/tow-bookings/pkg/middleware"
	"github.com/hookline/tow-bookings/pkg/retry"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Connect to Redis for request idempotency caching
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	redisOpts.Password = cfg.Redis.Password
	redisOpts.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// New Relic instrumentation, disabled unless licensed
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		)
		if err != nil {
			logger.Error("Failed to start New Relic agent", "error", err)
			os.Exit(1)
		}
	}

	// Initialize repositories
	bookingRepo := repository.NewBookingRepository(pool)
	serviceRepo := repository.NewServiceRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	// Initialize platform pieces
	gateway := payments.NewStripeGateway(cfg.Stripe)
	notifier := notify.NewDispatchNotifier(eventBus, cfg.Bookings)
	generator := receipts.NewGenerator(cfg.Bookings.ReceiptBaseURL)
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     retry.Linear(cfg.Retry.BackoffStep),
	}

	// The notification worker drains notify.send off the bus and mails
	// through the configured email backend
	worker := notify.NewWorker(eventBus, notify.NewSender(cfg.Email))
	if err := worker.Start(); err != nil {
		logger.Error("Failed to start notification worker", "error", err)
		os.Exit(1)
	}

	// Sweep expired idempotency records in the background
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := idempotencyRepo.CleanupExpired(ctx); err != nil {
				logger.Error("Idempotency cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("Idempotency records removed", "count", n)
			}
		}
	}()

	// Initialize services
	bookingService := service.NewBookingService(bookingRepo, idempotencyRepo, gateway, notifier, eventBus, cfg)
	adminService := service.NewAdminService(bookingRepo, serviceRepo, userRepo, generator, eventBus, policy)
	authService := service.NewAuthService(userRepo, cfg)

	// Initialize handlers
	h := handlers.New(bookingService, adminService, authService, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("api"))
	r.Use(mw.Logging)
	r.Use(mw.Telemetry(nrApp))
	r.Use(mw.Health)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	idemStore := cache.NewRedisIdempotencyStore(redisClient)
	authLimiter := cache.NewRedisRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Routes
	r.Route("/v1", func(r chi.Router) {
		// Public pricing and payment setup
		r.Get("/estimate", h.Estimate)
		r.Post("/payments/intent", h.CreatePaymentIntent)

		// Accounts, rate limited by client IP
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(authLimiter))
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
			r.Post("/auth/refresh", h.Refresh)
		})

		// Booking submission: signed-in customers or test mode
		r.Group(func(r chi.Router) {
			r.Use(h.OptionalJWT)
			r.Use(mw.IdempotencyMiddleware(idemStore))
			r.Post("/bookings", h.CreateBooking)
		})

		// Customer routes (JWT required)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT(""))
			r.Get("/auth/me", h.Me)
			r.Get("/bookings", h.ListMyBookings)
			r.Get("/bookings/{id}", h.GetBooking)
		})

		// Dispatch desk routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT(domain.RoleDispatcher))

			r.Post("/bookings", h.AdminCreateBooking)
			r.Get("/bookings", h.ListBookings)
			r.Get("/bookings/{id}", h.AdminGetBooking)
			r.Patch("/bookings/{id}", h.AdminUpdateBooking)
			r.Delete("/bookings/{id}", h.AdminDeleteBooking)
			r.Get("/bookings/{id}/receipt", h.Receipt)

			r.Post("/services", h.AdminCreateService)
			r.Get("/services", h.ListServices)
			r.Get("/services/{id}", h.AdminGetService)
			r.Patch("/services/{id}", h.AdminUpdateService)
			r.Delete("/services/{id}", h.AdminDeleteService)

			// Account administration is admin only
			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequireJWT(domain.RoleAdmin))
				r.Post("/", h.AdminCreateUser)
				r.Get("/", h.ListUsers)
				r.Get("/{id}", h.AdminGetUser)
				r.Patch("/{id}", h.AdminUpdateUser)
				r.Delete("/{id}", h.AdminDeleteUser)
			})
		})
	})

	// Receipt QR codes link here, outside the versioned API
	r.Get("/verify/{serviceNumber}", h.VerifyService)

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("API shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("API server error", "error", err)
		os.Exit(1)
	}
}
