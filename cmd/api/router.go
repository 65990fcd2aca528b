package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"papertrade/internal/config"
	_ "papertrade/internal/docs" // Import swagger docs
	"papertrade/internal/handlers"
	"papertrade/internal/metrics"
	"papertrade/internal/middleware"
	"papertrade/internal/notify"
	"papertrade/internal/services"
)

// app is the wired set of components served over HTTP.
type app struct {
	cfg       *config.Config
	db        handlers.Pinger
	users     services.UserServicer
	assets    services.AssetServicer
	portfolio services.PortfolioServicer
	trades    services.TradeServicer
	audit     services.AuditServicer
	scheduler handlers.CycleRunner
	hub       *notify.Hub
	metrics   *metrics.Metrics
	limiter   *middleware.RateLimiter
}

func newRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
}

func newRouter(a *app) *gin.Engine {
	authHandler := handlers.NewAuthHandler(a.users, a.audit, a.cfg.JWTSecret, a.cfg.JWTExpirationDur)
	accountHandler := handlers.NewAccountHandler(a.users, a.audit)
	assetHandler := handlers.NewAssetHandler(a.assets, a.audit)
	portfolioHandler := handlers.NewPortfolioHandler(a.portfolio)
	tradeHandler := handlers.NewTradeHandler(a.trades, a.audit, a.metrics)
	schedulerHandler := handlers.NewSchedulerHandler(a.scheduler, a.audit)
	healthHandler := handlers.NewHealthHandler(a.db)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(a.metrics.Middleware())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	router.GET("/ws", gin.WrapH(a.hub))

	api := router.Group("/api")
	api.GET("/health", healthHandler.Health)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	api.GET("/assets", assetHandler.ListAssets)
	api.GET("/assets/:assetId", assetHandler.GetAsset)
	api.GET("/graphdata/:assetId", assetHandler.GetGraphData)
	api.GET("/stats", assetHandler.GetStats)
	api.GET("/next-update", schedulerHandler.NextUpdate)

	// Account routes accept anonymous callers but enforce a presented token.
	accounts := api.Group("")
	accounts.Use(middleware.OptionalAuth(a.cfg.JWTSecret))
	accounts.GET("/portfolio/:userId", portfolioHandler.GetPortfolio)
	accounts.GET("/portfolio/:userId/history", portfolioHandler.GetHistory)
	accounts.GET("/transactions/:userId", tradeHandler.GetTransactions)

	trading := accounts.Group("")
	trading.Use(a.limiter.Middleware())
	trading.POST("/buy", tradeHandler.Buy)
	trading.POST("/sell", tradeHandler.Sell)
	trading.POST("/add-balance", accountHandler.AddBalance)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyMiddleware(a.cfg.AdminAPIKey, a.audit))
	admin.POST("/update-cycle", schedulerHandler.TriggerCycle)
	admin.POST("/assets", assetHandler.CreateAsset)
	admin.DELETE("/assets/:assetId", assetHandler.DeleteAsset)

	return router
}
