package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/bootstrap"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/handler"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/middleware"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/config"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/logger"
	corsmiddleware "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/middleware/requestid"
)

// @title Ocat Revision API
// @version 1.0.0
// @description Parameter revisions and sign-off ledger for Chandra observations
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const readyTimeout = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	svc, err := bootstrap.New(cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("bootstrap failed", "error", err)
	}
	defer svc.Close() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svc.Metrics))

	metricsHandler := handler.NewMetricsHandler(svc.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := svc.Observations.Ping(c.Request.Context(), readyTimeout); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	registerRoutes(r.Group(cfg.APIPrefix), svc, metricsHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "ledger", cfg.Ledger.Backend)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func registerRoutes(api *gin.RouterGroup, svc *bootstrap.Services, metricsHandler *handler.MetricsHandler) {
	observations := handler.NewObservationHandler(svc.Catalog, svc.Submissions)
	revisions := handler.NewRevisionHandler(svc.Revisions, svc.Exports)
	signoffs := handler.NewSignoffHandler(svc.Signoffs, svc.Exports, svc.Validate)

	api.Use(middleware.JWT(svc.Tokens))

	submitters := middleware.RequireRoles(models.RoleAdmin, models.RoleUSINT)
	api.GET("/observations/:obsid", observations.Get)
	api.GET("/observations/:obsid/next-revision", revisions.NextRevision)
	api.POST("/observations/:obsid/preview", submitters, observations.Preview)
	api.POST("/observations/:obsid/revisions", submitters, observations.Submit)

	api.GET("/revisions/:id", revisions.Get)
	api.GET("/revisions/:id/artifact", revisions.Artifact)
	api.GET("/revisions/:id/status", revisions.Status)
	api.GET("/revisions/:id/pdf", revisions.PDF)
	api.GET("/revisions/:id/csv", revisions.CSV)

	api.GET("/signoffs", signoffs.List)
	api.POST("/signoffs/reconcile", middleware.RequireRoles(models.RoleAdmin), signoffs.Reconcile)
	api.GET("/signoffs/:id", signoffs.Get)
	signers := api.Group("/signoffs/:id", middleware.RequireSignoff())
	signers.POST("/sign", signoffs.Sign)
	signers.POST("/reverse", signoffs.Reverse)
	signers.POST("/verify", signoffs.Verify)

	api.GET("/approvals", signoffs.Approvals)
	api.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)
}
