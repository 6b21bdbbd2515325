package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/almazaya/travel-backend/internal/cache"
	"github.com/almazaya/travel-backend/internal/config"
	"github.com/almazaya/travel-backend/internal/database"
	"github.com/almazaya/travel-backend/internal/handlers"
	"github.com/almazaya/travel-backend/internal/middleware"
	"github.com/almazaya/travel-backend/internal/models"
	"github.com/almazaya/travel-backend/internal/services"
	"github.com/almazaya/travel-backend/pkg/integrity"
	"github.com/almazaya/travel-backend/pkg/jwt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Almazaya Travel backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Payment gateway: missing secrets disable signing and verification, not the server
	if missing := cfg.Gateway.MissingSettings(); len(missing) > 0 {
		logger.WithField("settings", missing).Error("CRITICAL: payment gateway settings are missing or hold sample values; payments will be refused")
	}
	signer := integrity.NewSigner(cfg.Gateway.SecureHashKey)
	var cipher *integrity.Cipher
	if !config.IsPlaceholder(cfg.Gateway.AESKey) || cfg.Gateway.Mode == config.GatewayModeEncryptedJSON {
		cipher, err = integrity.NewCipher(cfg.Gateway.AESKey, cfg.Gateway.AESIV)
		if err != nil {
			logger.WithError(err).Error("CRITICAL: payment AES key/IV rejected; encrypted payloads cannot be produced or verified")
			cipher = nil
		}
	}
	logger.WithFields(logrus.Fields{
		"mode":          cfg.Gateway.Mode,
		"amount_policy": cfg.Gateway.AmountPolicy,
		"track_prefix":  cfg.Gateway.TrackPrefix,
	}).Info("Payment gateway configured")

	// Catalog cache
	var catalogCache cache.CatalogCache = cache.NoopCatalogCache{}
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, catalog caching disabled")
		} else {
			defer client.Close()
			catalogCache = cache.NewRedisCatalogCache(client, cfg.Redis.Prefix, cfg.Redis.CacheTTL, logger)
			logger.Info("Catalog cache connected")
		}
	}

	// Repositories
	bookingRepository := database.NewBookingRepository(db)
	packageRepository := database.NewTripPackageRepository(db)
	auditRepository := database.NewPaymentAuditRepository(db, logger)

	// Services
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	adminAuthService := services.NewAdminAuthService(cfg.Admin, jwtService, logger)
	if !adminAuthService.Configured() {
		logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD_HASH is not set; admin login is disabled")
	}
	catalogService := services.NewCatalogService(packageRepository, catalogCache, logger)
	bookingService := services.NewBookingService(bookingRepository, packageRepository, logger)

	requestBuilder := services.NewRequestBuilder(&cfg.Gateway, signer, cipher, services.NewTrackIDGenerator(cfg.Gateway.TrackPrefix))
	gatewayClient := services.NewHostedGatewayClient(cfg.Gateway.Timeout, cfg.Gateway.SuccessStatus, logger)
	paymentService := services.NewPaymentService(&cfg.Gateway, bookingRepository, requestBuilder, gatewayClient, auditRepository, logger)
	reconciliationService := services.NewReconciliationService(&cfg.Gateway, bookingRepository, signer, cipher, auditRepository, logger)

	var sweeper *services.PendingPaymentSweeper
	if cfg.Sweeper.Enabled {
		sweeper = services.NewPendingPaymentSweeper(cfg.Sweeper, bookingRepository, auditRepository, logger)
		if err := sweeper.Start(); err != nil {
			logger.Fatalf("Failed to start pending payment sweeper: %v", err)
		}
	}

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	limiter.StartCleanup(ctx, 5*time.Minute)

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, reconciliationService, bookingService, logger)
	router := setupRouter(cfg, logger, routes{
		health:    handlers.HealthCheck(db),
		catalog:   handlers.NewCatalogHandler(catalogService, logger),
		booking:   handlers.NewBookingHandler(bookingService, paymentHandler, logger),
		payment:   paymentHandler,
		admin:     handlers.NewAdminHandler(catalogService, bookingService, logger),
		adminAuth: handlers.NewAdminAuthHandler(adminAuthService, logger),
		jwt:       jwtService,
		limiter:   limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Gateway.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	if sweeper != nil {
		sweeper.Stop()
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

type routes struct {
	health    gin.HandlerFunc
	catalog   *handlers.CatalogHandler
	booking   *handlers.BookingHandler
	payment   *handlers.PaymentHandler
	admin     *handlers.AdminHandler
	adminAuth *handlers.AdminAuthHandler
	jwt       *jwt.Service
	limiter   *middleware.IPRateLimiter
}

func setupRouter(cfg *config.Config, logger *logrus.Logger, r routes) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", r.health)

	// Hosted payment flow. Callbacks come from the bank and carry no session.
	payment := router.Group("/payment")
	{
		payment.GET("/initiate", r.limiter.Middleware(), r.payment.Initiate)
		payment.POST("/initiate", r.limiter.Middleware(), r.payment.Initiate)
		payment.POST("/success", r.payment.Success)
		payment.POST("/failure", r.payment.Failure)
		payment.GET("/result", r.payment.Result)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/packages", r.catalog.ListPackages)
		v1.GET("/packages/:id", r.catalog.GetPackage)
		v1.POST("/bookings", r.limiter.Middleware(), r.booking.Create)
		v1.GET("/bookings/:id", r.booking.Get)

		v1.POST("/admin/login", r.limiter.Middleware(), r.adminAuth.Login)

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(r.jwt, logger), middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/packages", r.admin.ListPackages)
			admin.POST("/packages", r.admin.CreatePackage)
			admin.GET("/packages/:id", r.admin.GetPackage)
			admin.PUT("/packages/:id", r.admin.UpdatePackage)
			admin.DELETE("/packages/:id", r.admin.DeletePackage)
			admin.GET("/bookings", r.admin.ListBookings)
			admin.GET("/bookings/:id", r.admin.GetBooking)
		}
	}

	return router
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
