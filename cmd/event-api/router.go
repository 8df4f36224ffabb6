package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/mini-event-api/internal/handler"
	internalmiddleware "github.com/noah-isme/mini-event-api/internal/middleware"
	"github.com/noah-isme/mini-event-api/internal/service"
	"github.com/noah-isme/mini-event-api/pkg/config"
	"github.com/noah-isme/mini-event-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mini-event-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mini-event-api/pkg/middleware/requestid"
)

// routerDeps carries the constructed services the HTTP layer depends on.
type routerDeps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Events  *service.EventService
	Exports *service.ExportService
	Jobs    *service.ExportJobService
	Dash    *service.DashboardService
	Auth    *service.AuthService
	Metrics *service.MetricsService
	Checks  map[string]handler.Pinger
}

func newRouter(deps routerDeps) *gin.Engine {
	cfg := deps.Config
	logr := deps.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.Metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.Metrics, deps.Checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	eventHandler := handler.NewEventHandler(deps.Events, nil)
	if deps.Exports != nil {
		eventHandler = handler.NewEventHandler(deps.Events, deps.Exports)
	}
	categoryHandler := handler.NewCategoryHandler(deps.Events)

	api := r.Group(cfg.APIPrefix)
	reads := api.Group("", internalmiddleware.OptionalJWT(deps.Auth))
	writes := api.Group("", internalmiddleware.RequireAuth(cfg.JWT.Enabled, deps.Auth))
	audit := func(action string) gin.HandlerFunc {
		return internalmiddleware.Audit(logr, action)
	}

	reads.GET("/events", eventHandler.List)
	reads.GET("/events/export", eventHandler.Export)
	reads.GET("/events/:id", eventHandler.Get)
	reads.GET("/category", categoryHandler.Suggest)
	reads.GET("/categories", categoryHandler.Categories)
	if deps.Dash != nil {
		reads.GET("/dashboard", handler.NewDashboardHandler(deps.Dash).Summary)
	}

	writes.POST("/events", audit("event.create"), eventHandler.Create)
	writes.PATCH("/events/:id", audit("event.update"), eventHandler.Update)
	writes.PUT("/events/:id", audit("event.toggle_archive"), eventHandler.ToggleArchive)
	writes.POST("/events/:id/archive", audit("event.archive"), eventHandler.Archive)
	writes.POST("/events/:id/unarchive", audit("event.unarchive"), eventHandler.Unarchive)
	writes.DELETE("/events/:id", audit("event.delete"), eventHandler.Delete)

	if deps.Jobs != nil {
		exportHandler := handler.NewExportHandler(deps.Jobs)
		writes.POST("/exports", audit("export.create"), exportHandler.Create)
		reads.GET("/exports/:id", exportHandler.Status)
		reads.GET("/exports/download/:token", exportHandler.Download)
	}

	return r
}
