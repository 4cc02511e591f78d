package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"idcard/internal/assets"
	"idcard/internal/auth"
	"idcard/internal/card"
	"idcard/internal/config"
	"idcard/internal/handler"
	"idcard/internal/logging"
	"idcard/internal/metrics"
	"idcard/internal/printlog"
	"idcard/internal/queue"
	"idcard/internal/store"
	"idcard/internal/student"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.Env)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func run(cfg config.App, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, cleanup, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}
	log.Info("server exited")
	return nil
}

// newApp builds the router and its backends. cleanup releases whatever was
// opened, also when an error is returned.
func newApp(ctx context.Context, cfg config.App, log *logrus.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*gin.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	health := map[string]handler.HealthCheck{}

	var repo student.Repository
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		repo = student.NewMemoryRepository()
	} else {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := db.Migrate(ctx); err != nil {
			return nil, cleanup, err
		}
		repo = student.NewPostgresRepository(db.Client)
		health["db"] = db.Healthy
	}

	var redisClient *store.Redis
	if cfg.QueueBackend != "memory" || cfg.TokenBackend != "memory" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		closers = append(closers, func() { _ = redisClient.Close() })
		if !redisClient.Healthy(ctx) {
			log.WithField("addr", cfg.RedisAddr).Warn("redis not reachable yet")
		}
		health["redis"] = redisClient.Healthy
	}

	var tokenStore auth.TokenStore = auth.NewMemoryTokenStore()
	if cfg.TokenBackend != "memory" {
		tokenStore = auth.NewRedisTokenStore(redisClient.Client, "idcard")
	}
	tokens := auth.NewManager(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL, tokenStore)

	m := metrics.New(reg)
	students := student.NewService(repo, log.WithField("component", "student"))

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(64)
		q = mem
		consumer := printlog.NewConsumer(mem, students, log.WithField("component", "printlog"), m.PrintRecorded)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("print consumer stopped")
			}
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log)
	}

	uploads, err := assets.NewStore(cfg.UploadDir, cfg.SignDir, cfg.ReceiptDir)
	if err != nil {
		return nil, cleanup, err
	}

	fonts := card.LoadFontSet(append([]string{cfg.FontPath}, card.DefaultFontPaths...), log)
	inst := card.DefaultInstitution()
	inst.Name, inst.Address, inst.LogoPath = cfg.SchoolName, cfg.SchoolAddress, cfg.SchoolLogo
	engine := card.NewEngine(fonts, inst,
		card.WithLogger(log.WithField("component", "card")),
		card.WithObserver(m),
	)

	h := handler.New(handler.Deps{
		Students: students,
		Tokens:   tokens,
		Uploads:  uploads,
		Engine:   engine,
		Prints:   printlog.NewPublisher(q, students, log, m.PrintRecorded),
		Metrics:  m,
		LogoPath: cfg.SchoolLogo,
		Health:   health,
		Log:      log,
	})

	accessLog := log.Writer()
	closers = append(closers, func() { _ = accessLog.Close() })
	r := handler.NewRouter(h, handler.RouterConfig{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		MetricsHandler:  metrics.Handler(gatherer),
		AccessLog:       accessLog,
	})
	return r, cleanup, nil
}
