package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/csit-edu/timetable-api/api/swagger"
	"github.com/csit-edu/timetable-api/internal/handler"
	"github.com/csit-edu/timetable-api/internal/middleware"
	"github.com/csit-edu/timetable-api/internal/models"
	"github.com/csit-edu/timetable-api/internal/repository"
	"github.com/csit-edu/timetable-api/internal/service"
	"github.com/csit-edu/timetable-api/pkg/cache"
	"github.com/csit-edu/timetable-api/pkg/config"
	"github.com/csit-edu/timetable-api/pkg/database"
	"github.com/csit-edu/timetable-api/pkg/export"
	"github.com/csit-edu/timetable-api/pkg/jobs"
	"github.com/csit-edu/timetable-api/pkg/logger"
	corsmiddleware "github.com/csit-edu/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/csit-edu/timetable-api/pkg/middleware/requestid"
	"github.com/csit-edu/timetable-api/pkg/storage"
)

// @title CSIT Timetable API
// @version 1.0.0
// @description Constraint-based course timetable generation for the CSIT faculty
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", redisErr)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "timetable-api",
	})

	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	}

	datasetSvc := service.NewDatasetService(logr, service.DatasetConfig{TTL: cfg.Datasets.TTL})

	timetableSvc := service.NewTimetableService(
		datasetSvc,
		archiveRepo,
		nil,
		metricsSvc,
		cacheSvc,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
		validate,
		logr,
		service.TimetableConfig{
			DefaultTimeBudget: cfg.Solver.DefaultTimeBudget,
			MaxTimeBudget:     cfg.Solver.MaxTimeBudget,
			RunTTL:            cfg.Solver.RunTTL,
			CacheTTL:          cfg.Cache.TTL,
		},
	)

	genQueue := jobs.NewQueue("schedule-generation", timetableSvc.ProcessRun, jobs.QueueConfig{
		Workers: cfg.Solver.AsyncWorkers,
		Logger:  logr,
	})
	timetableSvc.SetQueue(genQueue)
	genQueue.Start(ctx)
	defer genQueue.Stop()

	var exportJobSvc *service.ExportJobService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		localStorage, storageErr := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if storageErr != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", storageErr)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(archiveRepo, localStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, nil, nil)

		worker := service.NewExportWorker(exportJobRepo, exportSvc, metricsSvc, cfg.Exports.WorkerRetries, logr)
		exportQueue = jobs.NewQueue("schedule-export", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportJobSvc = service.NewExportJobService(exportJobRepo, archiveRepo, exportQueue, exportSvc, validate, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	datasetHandler := handler.NewDatasetHandler(datasetSvc)
	scheduleHandler := handler.NewScheduleHandler(timetableSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Datasets.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", readyCheck(db, cacheRepo))
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authed := auth.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/change-password", authHandler.ChangePassword)
	authed.GET("/me", authHandler.Me)

	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleScheduler)

	datasets := api.Group("/datasets")
	datasets.Use(middleware.JWT(authSvc))
	datasets.GET("", datasetHandler.List)
	datasets.GET("/:id", datasetHandler.Get)
	datasets.POST("", editors, middleware.Audit(userRepo, models.AuditActionDatasetUpload, "dataset"), datasetHandler.Upload)
	datasets.DELETE("/:id", editors, middleware.Audit(userRepo, models.AuditActionDatasetDelete, "dataset"), datasetHandler.Delete)

	schedules := api.Group("/schedules")
	schedules.Use(middleware.JWT(authSvc))
	schedules.POST("/generate", editors, middleware.Audit(userRepo, models.AuditActionGenerate, "schedule"), scheduleHandler.Generate)
	schedules.POST("/generate/async", editors, middleware.Audit(userRepo, models.AuditActionGenerate, "schedule"), scheduleHandler.GenerateAsync)
	schedules.GET("/archived", scheduleHandler.ListArchived)
	schedules.GET("/archived/:id", scheduleHandler.GetArchived)
	schedules.DELETE("/archived/:id", editors, middleware.Audit(userRepo, models.AuditActionArchiveDelete, "archive"), scheduleHandler.DeleteArchived)
	schedules.GET("/:id", scheduleHandler.Get)
	schedules.GET("/:id/export", scheduleHandler.Export)
	schedules.POST("/:id/archive", editors, middleware.Audit(userRepo, models.AuditActionArchiveCreate, "archive"), scheduleHandler.Archive)

	if exportJobSvc != nil {
		exportHandler := handler.NewExportHandler(exportJobSvc)
		exports := api.Group("/exports")
		exports.GET("/download/:token", exportHandler.Download)
		authedExports := exports.Group("")
		authedExports.Use(middleware.JWT(authSvc))
		authedExports.POST("", middleware.Audit(userRepo, models.AuditActionExportCreate, "export"), exportHandler.Create)
		authedExports.GET("/:id", exportHandler.Status)
	}

	api.GET("/metrics/system", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), metricsHandler.System)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

// readyCheck pings the hard dependencies so orchestrators stop routing
// traffic when one of them goes away.
func readyCheck(db *sqlx.DB, cacheRepo *repository.CacheRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if cacheRepo != nil {
			if err := cacheRepo.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
