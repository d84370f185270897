package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/risky-biz/harmoni-hse-360-sub005/api/swagger"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/handler"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/middleware"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/repository"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/cache"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/config"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/database"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/logger"
	corsmiddleware "github.com/risky-biz/harmoni-hse-360-sub005/pkg/middleware/cors"
	reqidmiddleware "github.com/risky-biz/harmoni-hse-360-sub005/pkg/middleware/requestid"
	"github.com/risky-biz/harmoni-hse-360-sub005/pkg/storage"
)

// @title HSE Compliance API
// @version 1.0.0
// @description Hazard reporting, license register and training compliance API
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsService := service.NewMetricsService()

	// Redis is optional: without it the API serves uncached responses.
	var cacheRepo service.CacheRepository
	cacheEnabled := cfg.Cache.Enabled
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheEnabled = false
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.DefaultTTL, logr, cacheEnabled)

	files, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	hazardRepo := repository.NewHazardRepository(db)
	licenseRepo := repository.NewLicenseRepository(db)
	trainingRepo := repository.NewTrainingRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	validate := validator.New()

	authService := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "hse-compliance-api",
	})
	userService := service.NewUserService(userRepo, auditRepo, validate, logr)

	hazardService := service.NewHazardService(hazardRepo, auditRepo, cacheService, logr)
	licenseService := service.NewLicenseService(licenseRepo, auditRepo, cacheService, logr)
	trainingService := service.NewTrainingService(trainingRepo, auditRepo, cacheService, logr)
	auditService := service.NewAuditService(auditRepo, logr)

	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Hazards:   hazardService,
		Licenses:  licenseService,
		Trainings: trainingService,
		Cache:     cacheService,
		Logger:    logr,
		Config:    service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	attachmentService := service.NewAttachmentService(attachmentRepo, files, signer, auditRepo,
		map[models.EntityType]service.EntityFinder{
			models.EntityHazard:   existenceCheck(hazardRepo.GetByID),
			models.EntityLicense:  existenceCheck(licenseRepo.GetByID),
			models.EntityTraining: existenceCheck(trainingRepo.GetByID),
		}, logr, service.AttachmentServiceConfig{
			MaxFileSizeBytes: cfg.Attachments.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Attachments.AllowedMIMEs,
		})

	sweeper := service.NewExpirySweeper(licenseService, logr, service.ExpirySweeperConfig{
		Interval:   cfg.Licenses.ExpirySweepInterval,
		Workers:    cfg.Licenses.SweepWorkers,
		MaxRetries: cfg.Licenses.SweepRetries,
	})

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	hazardHandler := handler.NewHazardHandler(hazardService)
	licenseHandler := handler.NewLicenseHandler(licenseService)
	trainingHandler := handler.NewTrainingHandler(trainingService)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService)
	auditHandler := handler.NewAuditHandler(auditService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authProtected := auth.Group("", middleware.JWT(authService))
	authProtected.POST("/logout", authHandler.Logout)
	authProtected.POST("/change-password", authHandler.ChangePassword)
	authProtected.GET("/me", authHandler.Me)

	// Signed token downloads authenticate via the token itself.
	api.GET("/attachments/download", attachmentHandler.Download)

	protected := api.Group("", middleware.JWT(authService), middleware.WithResponseMeta())

	hazards := protected.Group("/hazards")
	hazards.POST("", hazardHandler.Create)
	hazards.GET("", hazardHandler.List)
	hazards.GET("/:id", hazardHandler.Get)
	hazards.PUT("/:id", hazardHandler.Update)
	hazards.DELETE("/:id", hazardHandler.Delete)
	hazards.POST("/:id/actions/:action", hazardHandler.Action)
	hazards.POST("/:id/mitigations", hazardHandler.AddMitigation)
	hazards.POST("/:id/mitigations/:actionId/complete", hazardHandler.CompleteMitigation)
	hazards.POST("/:id/attachments", attachmentHandler.Upload(models.EntityHazard))
	hazards.GET("/:id/attachments", attachmentHandler.List(models.EntityHazard))

	licenses := protected.Group("/licenses")
	licenses.POST("", licenseHandler.Create)
	licenses.GET("", licenseHandler.List)
	licenses.GET("/:id", licenseHandler.Get)
	licenses.PUT("/:id", licenseHandler.Update)
	licenses.DELETE("/:id", licenseHandler.Delete)
	licenses.POST("/:id/actions/:action", licenseHandler.Action)
	licenses.POST("/:id/conditions", licenseHandler.AddCondition)
	licenses.POST("/:id/conditions/:conditionId/complete", licenseHandler.CompleteCondition)
	licenses.POST("/:id/attachments", attachmentHandler.Upload(models.EntityLicense))
	licenses.GET("/:id/attachments", attachmentHandler.List(models.EntityLicense))

	trainings := protected.Group("/trainings")
	trainings.POST("", trainingHandler.Create)
	trainings.GET("", trainingHandler.List)
	trainings.GET("/:id", trainingHandler.Get)
	trainings.PUT("/:id", trainingHandler.Update)
	trainings.DELETE("/:id", trainingHandler.Delete)
	trainings.POST("/:id/actions/:action", trainingHandler.Action)
	trainings.POST("/:id/enrollments", trainingHandler.Enroll)
	trainings.PUT("/:id/enrollments/:enrollmentId", trainingHandler.UpdateEnrollment)
	trainings.POST("/:id/attachments", attachmentHandler.Upload(models.EntityTraining))
	trainings.GET("/:id/attachments", attachmentHandler.List(models.EntityTraining))

	attachments := protected.Group("/attachments")
	attachments.POST("/:id/download-url", attachmentHandler.SignDownload)
	attachments.DELETE("/:id", attachmentHandler.Delete)

	protected.GET("/audit-logs", auditHandler.List)
	protected.GET("/audit-logs/:entityType/:entityId", auditHandler.EntityTrail)

	protected.GET("/dashboard/summary", dashboardHandler.Summary)
	protected.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin, models.RoleSafetyManager), metricsHandler.Snapshot)

	users := protected.Group("/users")
	users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleSafetyManager), userHandler.List)
	users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSafetyManager), "SELF"), userHandler.Get)
	users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)

	if cfg.Licenses.ExpirySweepEnabled {
		sweeper.Start(context.Background())
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// existenceCheck adapts a repository getter into an attachment entity finder.
func existenceCheck[T any](get func(context.Context, string) (*T, error)) service.EntityFinder {
	return func(ctx context.Context, id string) error {
		if _, err := get(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "entity not found")
			}
			return err
		}
		return nil
	}
}
