package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/dashboard"
	"classattend/internal/logger"
	"classattend/internal/queue"
	"classattend/internal/store"
)

// Worker consumes attendance events and refreshes the cached dashboard summaries.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()

	if cfg.QueueBackend == "memory" {
		logrus.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue lives inside the api process")
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	q := queue.NewRedisQueue(redisClient.Client, "")
	summaries := dashboard.NewService(attendance.NewRepository(db.Client), redisClient.Client, cfg.SummaryCacheTTL)

	logrus.Info("worker started, waiting for messages")
	if err := summaries.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("worker stopped with error")
	}
	logrus.Info("worker stopped")
}
