package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dotpix/dotpix-api/internal/auth"
	"github.com/dotpix/dotpix-api/internal/config"
	"github.com/dotpix/dotpix-api/internal/database"
	"github.com/dotpix/dotpix-api/internal/escrow"
	"github.com/dotpix/dotpix-api/internal/lp"
	"github.com/dotpix/dotpix-api/internal/orders"
	"github.com/dotpix/dotpix-api/internal/pix"
	"github.com/dotpix/dotpix-api/internal/rates"
	"github.com/dotpix/dotpix-api/pkg/middleware"
	"github.com/dotpix/dotpix-api/pkg/response"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the exchange API server with graceful shutdown
// support. It wires the chain gateway, PIX provider, rate feed and lifecycle
// services before exposing the API routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Chain gateway: real node connection when configured, in-process
	// simulator otherwise.
	var chain escrow.Gateway
	if cfg.ChainSimulated() {
		zlog.Warn().Msg("Chain node not configured, using escrow simulator")
		chain = escrow.NewSimulator(cfg.LpFee().Mul(decimal.NewFromInt(100)).IntPart())
	} else {
		chain = escrow.NewChainGateway(cfg.ChainNodeURL, cfg.ContractAddress, cfg.SignerSeed, cfg.ChainTimeout)
	}

	pixProvider := pix.NewProvider(pix.Options{
		Provider: cfg.PixProvider,
		APIURL:   cfg.PixAPIURL,
		APIKey:   cfg.PixAPIKey,
		Merchant: cfg.PixMerchant,
		City:     cfg.PixMerchantCity,
	})

	rateService := rates.NewService(cfg.RatesURL, cfg.RatesCacheTTL, cfg.FallbackRateUSD(), cfg.FallbackRateBRL())

	// Initialize router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(db, cfg.JWTSecret, auth.DevVerifier{}, auth.UserDefaults{
		BuyLimitUSD:      cfg.BuyLimitUSD(),
		BuyOrdersPerDay:  cfg.DefaultBuyOrdersPerDay,
		SellLimitUSD:     cfg.SellLimitUSD(),
		SellOrdersPerDay: cfg.DefaultSellOrdersPerDay,
	})
	authHandlers := auth.NewGinHandlers(authService)

	orderService := orders.NewService(db, chain, pixProvider, rateService, cfg.LpFee(), cfg.OrderExpiry)
	orderHandlers := orders.NewGinHandlers(orderService)

	lpService := lp.NewService(db)
	lpHandlers := lp.NewGinHandlers(lpService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{
			"status":          "ok",
			"chain_connected": chain.Connected(),
			"chain_simulated": cfg.ChainSimulated(),
			"pix_provider":    pixProvider.Name(),
		})
	})
	setupRoutes(router, cfg, authHandlers, orderHandlers, lpHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		zlog.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for wallet authentication
// - Order routes: Protected by JWT authentication
// - LP routes: Protected by JWT authentication
// - Admin routes: JWT plus admin role
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	lpHandlers *lp.GinHandlers,
) {
	jwtSecret := []byte(cfg.JWTSecret)

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.GET("/me", middleware.JWTAuth(jwtSecret), authHandlers.MeHandler())
		}

		// Public market data
		v1.GET("/rates", orderHandlers.RatesHandler())

		// Order routes
		ordersGroup := v1.Group("/orders")
		ordersGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			ordersGroup.POST("", orderHandlers.CreateOrderHandler())
			ordersGroup.GET("", orderHandlers.ListOrdersHandler())
			ordersGroup.GET("/my-orders", orderHandlers.MyOrdersHandler())
			ordersGroup.GET("/:order_ref", orderHandlers.GetOrderHandler())
			ordersGroup.POST("/:order_ref/accept", orderHandlers.AcceptOrderHandler())
			ordersGroup.POST("/:order_ref/confirm-payment", orderHandlers.ConfirmPaymentHandler())
			ordersGroup.POST("/:order_ref/complete", orderHandlers.CompleteOrderHandler())
			ordersGroup.POST("/:order_ref/cancel", orderHandlers.CancelOrderHandler())
			ordersGroup.POST("/:order_ref/dispute", orderHandlers.DisputeHandler())
			ordersGroup.GET("/:order_ref/transactions", orderHandlers.TransactionsHandler())
			ordersGroup.GET("/:order_ref/blockchain", orderHandlers.BlockchainViewHandler())
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(jwtSecret), middleware.AdminOnly())
		{
			admin.POST("/orders/:order_ref/resolve-dispute", orderHandlers.ResolveDisputeHandler())
		}

		// LP routes
		lpGroup := v1.Group("/lp")
		lpGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			lpGroup.POST("/register", lpHandlers.RegisterHandler())
			lpGroup.GET("/profile", lpHandlers.ProfileHandler())
			lpGroup.PATCH("/profile", lpHandlers.UpdateHandler())
			lpGroup.POST("/availability", lpHandlers.AvailabilityHandler())
			lpGroup.GET("/available-orders", lpHandlers.AvailableOrdersHandler())
			lpGroup.GET("/earnings", lpHandlers.EarningsHandler())
		}
	}
}
