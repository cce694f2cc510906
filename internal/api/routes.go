package api

import (
	"github.com/gin-gonic/gin"

	"github.com/irfndi/sepa-screener/internal/api/handlers"
	"github.com/irfndi/sepa-screener/internal/config"
	"github.com/irfndi/sepa-screener/internal/middleware"
)

// Dependencies are the stores and caches the HTTP API reads from. Nil
// caches disable the endpoints that need them.
type Dependencies struct {
	DB            handlers.HealthChecker
	Redis         handlers.HealthChecker
	Scorecards    handlers.ScorecardReader
	Notifications handlers.NotificationReader
	Watchlist     handlers.WatchlistStore
	RunReports    handlers.RunReportReader
	Composites    handlers.CompositeAdmin
	Breakers      handlers.BreakerStatus
	Version       string
}

// SetupRoutes registers the read API on router.
//
//	/health, /live                       probes
//	/api/v1/scorecards[/:symbol]         public
//	/api/v1/notifications                public
//	/api/v1/watchlist[/:symbol]          JWT
//	/api/v1/admin/...                    admin key
func SetupRoutes(router *gin.Engine, cfg *config.Config, deps Dependencies) {
	health := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.Version)
	router.GET("/health", health.HealthCheck)
	router.HEAD("/health", health.HealthCheck)
	router.GET("/live", health.LivenessCheck)

	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret)
	admin := middleware.NewAdminMiddleware(cfg.Security.AdminKeyHash)

	v1 := router.Group("/api/v1")
	{
		scorecards := handlers.NewScorecardHandler(deps.Scorecards)
		v1.GET("/scorecards", scorecards.ListScorecards)
		v1.GET("/scorecards/:symbol", scorecards.GetScorecard)

		notifications := handlers.NewNotificationHandler(deps.Notifications, deps.Scorecards.LatestDate)
		v1.GET("/notifications", notifications.ListNotifications)

		watchlist := handlers.NewWatchlistHandler(deps.Watchlist)
		watch := v1.Group("/watchlist")
		watch.Use(auth.RequireAuth())
		{
			watch.GET("", watchlist.ListWatchlist)
			watch.POST("", watchlist.AddToWatchlist)
			watch.DELETE("/:symbol", watchlist.RemoveFromWatchlist)
		}

		adminHandler := handlers.NewAdminHandler(
			deps.RunReports,
			deps.Composites,
			auth,
			config.Duration(cfg.Security.JWTExpiry, 0),
		).WithBreakers(deps.Breakers)
		adm := v1.Group("/admin")
		adm.Use(admin.RequireAdminAuth())
		{
			adm.GET("/runs/latest", adminHandler.LatestRun)
			adm.GET("/cache/stats", adminHandler.CacheStats)
			adm.DELETE("/cache/composites", adminHandler.ClearComposites)
			adm.GET("/breakers", adminHandler.CircuitBreakers)
			adm.POST("/tokens", adminHandler.IssueToken)
		}
	}
}
