package main

import (
	"context"
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
	"go.uber.org/zap"

	_ "github.com/ogvapps/biblioclasificador/api/swagger"
	"github.com/ogvapps/biblioclasificador/internal/handler"
	"github.com/ogvapps/biblioclasificador/internal/middleware"
	"github.com/ogvapps/biblioclasificador/internal/models"
	"github.com/ogvapps/biblioclasificador/internal/repository"
	"github.com/ogvapps/biblioclasificador/internal/service"
	"github.com/ogvapps/biblioclasificador/pkg/cache"
	"github.com/ogvapps/biblioclasificador/pkg/config"
	"github.com/ogvapps/biblioclasificador/pkg/database"
	"github.com/ogvapps/biblioclasificador/pkg/jobs"
	"github.com/ogvapps/biblioclasificador/pkg/logger"
	corsmiddleware "github.com/ogvapps/biblioclasificador/pkg/middleware/cors"
	reqidmiddleware "github.com/ogvapps/biblioclasificador/pkg/middleware/requestid"
)

// @title BiblioClasificador API
// @version 1.0.0
// @description School library catalog, circulation and dashboard backend
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()

	bookRepo := repository.NewBookRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AdminPINHash:    cfg.Auth.AdminPINHash,
		AdminPIN:        cfg.Auth.AdminPIN,
		AssistantPIN:    cfg.Auth.AssistantPIN,
		TokenSecret:     cfg.Auth.TokenSecret,
		TokenExpiration: cfg.Auth.TokenExpiration,
	})

	bookSvc := service.NewBookService(bookRepo, cacheSvc, validate, logr, service.ShelfLayout{
		TotalColumns:     cfg.Library.TotalColumns,
		ShelvesPerColumn: cfg.Library.ShelvesPerColumn,
	})
	studentSvc := service.NewStudentService(studentRepo, cacheSvc, validate, logr)
	circulationSvc := service.NewCirculationService(service.CirculationServiceParams{
		Books:     bookRepo,
		Loans:     loanRepo,
		Tx:        db,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Books:    bookRepo,
		Loans:    loanRepo,
		Students: studentRepo,
		Cache:    cacheSvc,
		Logger:   logr,
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Books:    bookRepo,
		Loans:    loanRepo,
		Students: studentRepo,
		Cache:    cacheSvc,
		Logger:   logr,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	bookHandler := handler.NewBookHandler(bookSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	circulationHandler := handler.NewCirculationHandler(circulationSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refreshQueue := jobs.NewQueue("dashboard_refresh", func(ctx context.Context, _ jobs.Task) error {
		_, _, err := dashboardSvc.Summary(ctx)
		return err
	}, jobs.Options{Workers: 1, Logger: logr})
	refreshQueue.Start(ctx)
	defer refreshQueue.Stop()

	go warmDashboard(ctx, refreshQueue, cfg.Dashboard.CacheTTL, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	public := api.Group("")
	{
		public.POST("/auth/login", authHandler.Login)
		public.GET("/books", bookHandler.List)
		public.GET("/books/:id", bookHandler.Get)
		public.GET("/dashboard", dashboardHandler.Summary)
		public.GET("/dashboard/directory", dashboardHandler.Directory)
		public.GET("/dashboard/students/:name", dashboardHandler.StudentProfile)
	}

	staff := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleAssistant))
	{
		staff.GET("/auth/session", authHandler.Session)
		staff.POST("/books", bookHandler.Create)
		staff.PUT("/books/:id", bookHandler.Update)
		staff.POST("/books/:id/lend", circulationHandler.Lend)
		staff.POST("/books/:id/reserve", circulationHandler.Reserve)
		staff.DELETE("/books/:id/reserve", circulationHandler.CancelReservation)
		staff.GET("/loans", circulationHandler.ListLoans)
		staff.POST("/loans/:id/return", circulationHandler.Return)
		staff.GET("/students", studentHandler.List)
		staff.GET("/students/:id", studentHandler.Get)
		staff.POST("/students", studentHandler.Create)
		staff.PUT("/students/:id", studentHandler.Update)
		staff.GET("/exports/books", exportHandler.ExportBooks)
		staff.GET("/exports/loans", exportHandler.ExportLoans)
		staff.GET("/exports/students", exportHandler.ExportStudents)
		staff.GET("/metrics/snapshot", metricsHandler.Snapshot)
	}

	admin := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.DELETE("/books/:id", bookHandler.Delete)
		admin.DELETE("/students/:id", studentHandler.Delete)
		admin.POST("/imports/books", exportHandler.ImportBooks)
		admin.POST("/imports/students", exportHandler.ImportStudents)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

// warmDashboard keeps the dashboard snapshot fresh so the first request
// after an invalidation does not pay the recompute cost.
func warmDashboard(ctx context.Context, queue *jobs.Queue, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	enqueue := func() {
		if err := queue.Enqueue(jobs.Task{Kind: "refresh"}); err != nil {
			logr.Sugar().Warnw("failed to enqueue dashboard refresh", "error", err)
		}
	}
	enqueue()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}
