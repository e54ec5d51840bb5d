package routes

import (
	"net/http"
	"time"

	"github.com/civic-fix/api-go/controllers"
	"github.com/civic-fix/api-go/middleware"
	"github.com/civic-fix/api-go/services"
	"github.com/civic-fix/api-go/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	JWTSecret string
	// Redis is optional; nil disables the submission rate limit.
	Redis           *redis.Client
	RateLimit       int
	RateLimitWindow time.Duration
	// UploadsDir, when set, is served at /uploads for the local storage driver.
	UploadsDir string
	Logger     *zap.Logger
}

func SetupRoutes(r *gin.Engine, workflow *services.Workflow, opts Options) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r.Use(middleware.RequestLogger(log), middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.UploadsDir != "" {
		r.Static("/uploads", opts.UploadsDir)
	}

	reportController := controllers.NewReportController(workflow)
	repairController := controllers.NewRepairController(workflow)
	assetController := controllers.NewAssetController(workflow)
	trackController := controllers.NewTrackController(workflow)

	// Public routes
	public := r.Group("/api")
	{
		public.POST("/reports",
			middleware.SubmissionRateLimiter(opts.Redis, opts.RateLimit, opts.RateLimitWindow, log),
			reportController.SubmitReport)
		public.GET("/assets/:code", assetController.GetAsset)
		SetupTrackRoutes(public, trackController)
	}

	// Protected routes
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(opts.JWTSecret))
	{
		staff := protected.Group("", middleware.RequireRole(utils.RoleStaff, utils.RoleAdmin))
		SetupReportRoutes(staff, reportController)
		SetupAssetRoutes(staff, assetController)

		field := protected.Group("", middleware.RequireRole(utils.RoleStaff, utils.RoleAdmin, utils.RoleTechnician))
		SetupRepairRoutes(staff, field, repairController)
	}
}
