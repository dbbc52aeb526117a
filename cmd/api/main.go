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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/weekend-course-api/api/swagger"
	"github.com/noah-isme/weekend-course-api/internal/handler"
	"github.com/noah-isme/weekend-course-api/internal/middleware"
	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/internal/repository"
	"github.com/noah-isme/weekend-course-api/internal/service"
	"github.com/noah-isme/weekend-course-api/pkg/cache"
	"github.com/noah-isme/weekend-course-api/pkg/config"
	"github.com/noah-isme/weekend-course-api/pkg/database"
	"github.com/noah-isme/weekend-course-api/pkg/logger"
	"github.com/noah-isme/weekend-course-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/weekend-course-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/weekend-course-api/pkg/middleware/requestid"
)

// @title Weekend Course API
// @version 1.0.0
// @description Weekend course management: registration, session scheduling and QR attendance
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Export.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, projection cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Export.CacheTTL, logr, true)
		}
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	reassignmentRepo := repository.NewReassignmentRepository(db)

	var sender mailer.Sender = mailer.NewLogSender(logr)
	if cfg.Mail.Enabled && cfg.Mail.SendGridAPIKey != "" {
		sender = mailer.NewSendGridSender(cfg.Mail)
	}
	notifications := service.NewNotificationService(sender, cfg.Mail.QueueWorkers, logr)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notifications.Start(ctx)
	defer notifications.Stop()

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	courseSvc := service.NewCourseService(courseRepo, userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, courseRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, classRepo, validate, logr, cfg.Sessions)
	studentSvc := service.NewStudentService(studentRepo, classRepo, notifications, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, studentRepo, cacheSvc, metrics, validate, logr, cfg.Attendance)
	reassignmentSvc := service.NewReassignmentService(reassignmentRepo, sessionRepo, studentRepo, validate, logr, cfg.Reassignment)
	assignmentSvc := service.NewAssignmentService(sessionRepo, classRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	classHandler := handler.NewClassHandler(classSvc, assignmentSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	reassignmentHandler := handler.NewReassignmentHandler(reassignmentSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/students/register", studentHandler.Register)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	staff := authed.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	{
		staff.GET("/courses", courseHandler.List)
		staff.GET("/courses/:id", courseHandler.Get)
		staff.GET("/classes", classHandler.List)
		staff.GET("/classes/:id", classHandler.Get)
		staff.GET("/sessions", sessionHandler.List)
		staff.GET("/sessions/:id", sessionHandler.Get)
		staff.POST("/sessions/validate", sessionHandler.ValidateSlot)

		staff.GET("/students", studentHandler.List)
		staff.GET("/students/:id", studentHandler.Get)
		staff.PUT("/students/:id/approve", studentHandler.Approve)
		staff.PUT("/students/:id/reject", studentHandler.Reject)
		staff.GET("/students/:id/qr", studentHandler.QRCode)

		staff.POST("/attendance/scan", attendanceHandler.Scan)
		staff.POST("/attendance/sweep", attendanceHandler.Sweep)
		staff.GET("/attendance", attendanceHandler.List)
		staff.GET("/attendance/review", attendanceHandler.Review)
		staff.GET("/attendance/export", attendanceHandler.ExportCSV)
		staff.GET("/sessions/:id/attendance-sheet", attendanceHandler.Sheet)

		staff.POST("/reassignments", reassignmentHandler.Create)
		staff.GET("/reassignments", reassignmentHandler.List)
		staff.GET("/reassignments/:id", reassignmentHandler.Get)
		staff.PUT("/reassignments/:id/process", reassignmentHandler.Process)
	}

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/courses", courseHandler.Create)
		admin.PUT("/courses/:id/status", courseHandler.UpdateStatus)
		admin.POST("/courses/:id/teachers", courseHandler.AddTeacher)
		admin.DELETE("/courses/:id/teachers/:userId", courseHandler.RemoveTeacher)

		admin.POST("/classes", classHandler.Create)
		admin.PUT("/classes/:id", classHandler.Update)
		admin.POST("/classes/:id/auto-assign", classHandler.AutoAssign)
		admin.POST("/classes/:id/students/import", studentHandler.Import)

		admin.POST("/sessions", sessionHandler.Create)
		admin.PUT("/sessions/:id", sessionHandler.Update)
		admin.DELETE("/sessions/:id", sessionHandler.Delete)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
