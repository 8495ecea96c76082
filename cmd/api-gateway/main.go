package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/jc96818/sayitschedule-sub004/api/swagger"
	"github.com/jc96818/sayitschedule-sub004/internal/handler"
	"github.com/jc96818/sayitschedule-sub004/internal/middleware"
	"github.com/jc96818/sayitschedule-sub004/internal/repository"
	"github.com/jc96818/sayitschedule-sub004/internal/service"
	"github.com/jc96818/sayitschedule-sub004/pkg/cache"
	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	"github.com/jc96818/sayitschedule-sub004/pkg/database"
	"github.com/jc96818/sayitschedule-sub004/pkg/logger"
	corsmiddleware "github.com/jc96818/sayitschedule-sub004/pkg/middleware/cors"
	reqidmiddleware "github.com/jc96818/sayitschedule-sub004/pkg/middleware/requestid"
)

// @title Say It Schedule API
// @version 0.1.0
// @description Recurring service appointment scheduling and booking
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	ruleRepo := repository.NewRuleRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	clientRepo := repository.NewClientRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	holdRepo := repository.NewHoldRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	generatorSvc := service.NewScheduleGeneratorService(
		ruleRepo, staffRepo, clientRepo, roomRepo,
		scheduleRepo, sessionRepo, db, cacheRepo,
		validate, logr, cfg.Scheduler, metricsSvc,
	)
	repairSvc := service.NewScheduleRepairService(
		generatorSvc, scheduleRepo, sessionRepo, db, cacheRepo,
		nil, logr, cfg.Scheduler, metricsSvc,
	)
	scheduleSvc := service.NewScheduleService(scheduleRepo, sessionRepo, db, cacheRepo, logr, cfg.Scheduler)
	holdSvc := service.NewHoldService(holdRepo, sessionRepo, db, validate, logr, cfg.Holds, metricsSvc, nil)
	bookingSvc := service.NewBookingService(
		holdRepo, sessionRepo, scheduleRepo, auditRepo, db, cacheRepo,
		validate, logr, cfg.Booking, metricsSvc, nil,
	)

	sweeper := service.NewHoldSweeper(holdSvc, logr, cfg.Holds)

	scheduleHandler := handler.NewScheduleHandler(generatorSvc, repairSvc, scheduleSvc)
	holdHandler := handler.NewHoldHandler(holdSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		schedules := api.Group("/schedules")
		schedules.POST("/generate", middleware.RequireRole("admin", "scheduler"), scheduleHandler.Generate)
		schedules.GET("", scheduleHandler.List)
		schedules.GET("/:id", scheduleHandler.Get)
		schedules.POST("/:id/repair", middleware.RequireRole("admin", "scheduler"), scheduleHandler.Repair)
		schedules.POST("/:id/publish", middleware.RequireRole("admin", "scheduler"), scheduleHandler.Publish)
		schedules.POST("/:id/copy", middleware.RequireRole("admin", "scheduler"), scheduleHandler.Copy)
		if cfg.Export.Enabled {
			schedules.GET("/:id/export", scheduleHandler.Export)
		}

		holds := api.Group("/holds")
		holds.POST("", holdHandler.Create)
		holds.GET("/:id", holdHandler.Get)
		holds.POST("/:id/extend", holdHandler.Extend)
		holds.DELETE("/:id", holdHandler.Release)
		holds.POST("/cleanup", middleware.RequireRole("admin"), holdHandler.Cleanup)

		bookings := api.Group("/bookings")
		bookings.POST("/from-hold", middleware.Audit(auditRepo, "booking.create", "session"), bookingHandler.BookFromHold)
		bookings.POST("/direct", middleware.RequireRole("admin", "staff"), middleware.Audit(auditRepo, "booking.create", "session"), bookingHandler.BookDirect)

		api.PATCH("/sessions/:id/status", middleware.Audit(auditRepo, "session.status", "session"), bookingHandler.UpdateSessionStatus)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
