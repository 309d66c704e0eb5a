// Package main runs the portal gateway HTTP server with WebSocket updates and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/portal/config"
	"github.com/aura-webinar/portal/internal/assets"
	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/internal/middleware"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/pages"
	"github.com/aura-webinar/portal/internal/realtime"
	"github.com/aura-webinar/portal/internal/registrations"
	"github.com/aura-webinar/portal/internal/session"
	"github.com/aura-webinar/portal/internal/store"
	"github.com/aura-webinar/portal/internal/webinars"
	"github.com/aura-webinar/portal/pkg/apiclient"
	"github.com/aura-webinar/portal/pkg/redis"
	"github.com/aura-webinar/portal/pkg/response"
	"github.com/aura-webinar/portal/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := newLogger(cfg.Env)
	defer logger.Sync()

	ctx := context.Background()

	// Redis backs sessions and cross-instance socket fan-out. The file backend runs without it.
	var rdb *redis.Client
	if cfg.Session.Backend == "redis" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var sessionStore session.Store
	if rdb != nil {
		sessionStore = session.NewRedisStore(rdb.Client)
	} else {
		fs, err := session.NewFileStore(cfg.Session.Dir, cfg.Session.Secret)
		if err != nil {
			logger.Fatal("session store", zap.Error(err))
		}
		sessionStore = fs
		logger.Info("using file session store", zap.String("dir", cfg.Session.Dir))
	}
	sessions := session.NewManager(sessionStore, cfg.Session.CookieName, time.Duration(cfg.Session.TTLHours)*time.Hour, cfg.Session.Secure, logger)

	resolver := assets.NewResolver(cfg.API.AssetBaseURL, nil, logger)
	if cfg.AWS.Region != "" && cfg.AWS.AssetsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			resolver = assets.NewResolver(cfg.API.AssetBaseURL, s3Client, logger)
		}
	}

	api := apiclient.New(cfg.API.BaseURL,
		apiclient.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		apiclient.WithLogger(logger),
	)

	var hub *realtime.Hub
	if rdb != nil {
		bus := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, bus, bus)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}
	hub.Ignore(webinars.AnonymousStore)

	stores := store.NewRegistry(func(token string) store.Backend {
		return webinars.NewRepository(api.WithToken(token))
	}, time.Duration(cfg.Store.IdleTTLMinutes)*time.Minute, logger)
	stores.OnNewStore(hub.Attach)

	tokens := auth.NewTokenInspector(cfg.Auth.UpstreamJWTSecret)

	// Auth
	authRepo := auth.NewRepository(api)
	authHandler := auth.NewHandler(authRepo, tokens, sessions, stores, time.Duration(cfg.Auth.OTPResendCooldownSec)*time.Second, logger)

	// Webinars, registration and admin console
	policy := registrations.ParsePolicy(cfg.Workflow.PaidQuestions)
	webinarHandler := webinars.NewHandler(stores, sessions, policy, resolver, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Session(sessions, tokens, stores, logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/session", authHandler.Session)
		apiGroup.GET("/state", webinarHandler.State)

		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/verify-otp", authHandler.VerifyOTP)
		authGroup.POST("/resend-otp", authHandler.ResendOTP)
		authGroup.POST("/logout", authHandler.Logout)

		// Public listings; registration needs a signed-in viewer
		apiGroup.GET("/webinars", webinarHandler.List)
		apiGroup.GET("/webinars/:id", webinarHandler.Get)
		reg := apiGroup.Group("/webinars/:id", middleware.RequireAuth())
		reg.POST("/register", webinarHandler.Register)
		reg.POST("/answers", webinarHandler.SubmitAnswers)
		reg.POST("/payment/confirm", webinarHandler.ConfirmPayment)
		reg.GET("/payment/return", webinarHandler.ConfirmPayment)
		reg.POST("/payment/cancel", webinarHandler.CancelPayment)

		me := apiGroup.Group("/me", middleware.RequireAuth())
		me.GET("/tickets", webinarHandler.MyTickets)
		me.GET("/applications", webinarHandler.MyApplications)

		admin := apiGroup.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		admin.GET("/webinars", webinarHandler.AdminList)
		admin.POST("/webinars", webinarHandler.Create)
		admin.PUT("/webinars/:id", webinarHandler.Update)
		admin.PATCH("/webinars/:id/publish", webinarHandler.Publish)
		admin.PATCH("/webinars/:id/unpublish", webinarHandler.Unpublish)
		admin.GET("/webinars/:id/applicants", webinarHandler.Applicants)
		admin.PATCH("/applications/:id/approve", webinarHandler.Approve)
		admin.PATCH("/applications/:id/reject", webinarHandler.Reject)
	}

	// WebSocket (session cookie identifies the viewer)
	router.GET("/ws", realtime.ServeWs(hub, logger))

	// Client pages behind the role gate
	pages.Register(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("api", cfg.API.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(env string) *zap.Logger {
	config := zap.NewProductionConfig()
	if env == "development" {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
