package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/internal/handler"
	"github.com/noah-isme/skill-training-api/internal/middleware"
	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/internal/service"
	"github.com/noah-isme/skill-training-api/pkg/config"
	"github.com/noah-isme/skill-training-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/skill-training-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/skill-training-api/pkg/middleware/requestid"
)

type routeDeps struct {
	tokens      middleware.TokenValidator
	metrics     *service.MetricsService
	health      *handler.MetricsHandler
	modalities  *handler.ModalityHandler
	enrollments *handler.EnrollmentHandler
	trainings   *handler.TrainingHandler
	evidence    *handler.EvidenceHandler
	analytics   *handler.AnalyticsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Signed links are the credential here, so no bearer token is required.
	api.GET("/evidence/:id/download", deps.evidence.Download)

	protected := api.Group("", middleware.JWT(deps.tokens), middleware.Audit())
	privileged := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	evaluators := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleEvaluator)
	registrants := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCompetitor)

	modalities := protected.Group("/modalities")
	{
		modalities.GET("", deps.modalities.List)
		modalities.GET("/:id", deps.modalities.Get)
		modalities.POST("", privileged, deps.modalities.Create)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", deps.enrollments.List)
		enrollments.GET("/:id", deps.enrollments.Get)
		enrollments.POST("", privileged, deps.enrollments.Create)
		enrollments.PUT("/:id/evaluator", privileged, deps.enrollments.AssignEvaluator)
		enrollments.DELETE("/:id/evaluator", privileged, deps.enrollments.RemoveEvaluator)
		enrollments.PUT("/:id/status", privileged, deps.enrollments.UpdateStatus)
		enrollments.DELETE("/:id", privileged, deps.enrollments.Delete)
	}

	trainings := protected.Group("/trainings")
	{
		trainings.GET("", deps.trainings.List)
		trainings.POST("", registrants, deps.trainings.Register)
		trainings.GET("/:id", deps.trainings.Get)
		trainings.PUT("/:id", registrants, deps.trainings.Update)
		trainings.DELETE("/:id", registrants, deps.trainings.Delete)
		trainings.POST("/:id/approve", evaluators, deps.trainings.Approve)
		trainings.POST("/:id/reject", evaluators, deps.trainings.Reject)
		trainings.GET("/:id/evidence", deps.evidence.List)
		trainings.POST("/:id/evidence", registrants, deps.evidence.Upload)
	}

	evidence := protected.Group("/evidence")
	{
		evidence.GET("/:id/url", deps.evidence.DownloadURL)
		evidence.DELETE("/:id", registrants, deps.evidence.Delete)
	}

	if cfg.Analytics.Enabled {
		analytics := protected.Group("/analytics")
		competitor := analytics.Group("/competitors/:id", middleware.RBAC(
			string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleEvaluator), middleware.Self))
		{
			competitor.GET("/total-hours", deps.analytics.TotalHours)
			competitor.GET("/hours-by-type", deps.analytics.HoursByType)
			competitor.GET("/hours-by-date", deps.analytics.HoursByDate)
			competitor.GET("/hours-by-modality", deps.analytics.HoursByModality)
			competitor.GET("/daily-hours", deps.analytics.DailyHours)
		}
		analytics.GET("/system", privileged, deps.analytics.System)
	}

	return r
}
