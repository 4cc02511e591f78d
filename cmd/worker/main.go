package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"idcard/internal/config"
	"idcard/internal/logging"
	"idcard/internal/printlog"
	"idcard/internal/queue"
	"idcard/internal/store"
	"idcard/internal/student"
)

// Worker consumes print events from Redis and records them in Postgres.
func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.Env)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatal("QUEUE_BACKEND=memory consumes prints inside the API process, the worker needs redis")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("db migrate failed")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.WithField("addr", cfg.RedisAddr).Warn("redis not reachable yet, will keep retrying")
	}

	students := student.NewService(student.NewPostgresRepository(db.Client), log)
	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log)
	consumer := printlog.NewConsumer(q, students, log.WithField("component", "printlog"), nil)

	log.Info("worker started, waiting for print events")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("worker failed")
	}
	log.Info("worker stopped")
}
