package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"classattend/internal/activity"
	"classattend/internal/api"
	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/cloudinary"
	"classattend/internal/config"
	"classattend/internal/dashboard"
	"classattend/internal/facematch"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logger"
	"classattend/internal/queue"
	"classattend/internal/schedule"
	"classattend/internal/session"
	"classattend/internal/store"
)

const faceMatchThreshold = 0.6

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logrus.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return err
		}
		logrus.WithError(err).Warn("db not reachable")
	} else if err := db.Migrate(ctx); err != nil {
		logrus.WithError(err).Warn("schema migration failed")
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	var matcher facematch.Matcher
	if cfg.FaceMock {
		matcher = facematch.NewRandomMatcher(time.Now().UnixNano())
	} else {
		sm := facematch.NewServiceMatcher(cfg.FaceServiceURL, faceMatchThreshold)
		if err := sm.Health(ctx); err != nil {
			logrus.WithError(err).Warn("face service not available")
		}
		matcher = sm
	}

	clock := session.SystemClock()
	records := attendance.NewRepository(db.Client)

	var limiter httpmiddleware.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitRedis {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	}

	summaries := dashboard.NewService(records, redisClient.Client, cfg.SummaryCacheTTL)
	if cfg.QueueBackend == "memory" {
		runCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() { _ = summaries.Run(runCtx, q) }()
	}

	deps := api.Deps{
		Sessions:   session.NewRegistry(redisClient.Client, "", clock),
		Issuer:     session.NewIssuer(session.NewManager(clock, nil)),
		Attendance: attendance.NewService(records, matcher, q, clock),
		Records:    records,
		Summaries:  summaries,
		Activities: activity.NewRepository(db.Client),
		Schedule:   schedule.NewRepository(db.Client),
		Clock:      clock,
		Profiles:   records,
		Signer:     auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL),
		Limiter:    limiter,
		Health: func(ctx context.Context) map[string]bool {
			return map[string]bool{"db": db.Healthy(ctx), "redis": redisClient.Healthy(ctx)}
		},
		DefaultTTLMinutes: cfg.SessionDefaultTTL,
	}

	if cfg.CloudinaryConfigured() {
		deps.Uploads = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logrus.WithField("cloud", cfg.CloudinaryCloudName).Info("cloudinary configured")
	} else {
		logrus.Info("cloudinary not configured, profile picture uploads disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("server forced shutdown")
	}
	logrus.Info("server exited")
	return nil
}
