package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/memstore"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slot"
)

var version = "dev"

type storage struct {
	slots        slot.Repository
	appointments appointment.Repository
	uow          appointment.UnitOfWork
	directory    directory.Repository
	ping         api.Pinger
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("storage", cfg.Storage),
		zap.String("clinic_timezone", cfg.ClinicTimezone),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init error", zap.Error(err))
	}
	defer store.close()

	var rdb redis.UniversalClient
	if cfg.RedisEnabled {
		client, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		rdb = client
		logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	registry := slot.NewRegistry(store.slots, cfg.Location, time.Now, logger).WithMetrics(bookingMetrics)

	opts := []appointment.Option{
		appointment.WithLogger(logger),
		appointment.WithMetrics(bookingMetrics),
		appointment.WithNotifier(buildNotifier(cfg, rdb, logger)),
	}
	if rdb != nil {
		opts = append(opts, appointment.WithLocker(redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)))
	}
	svc := appointment.NewService(store.uow, store.appointments, registry, store.directory, opts...)

	router := api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Slots:        registry,
		Directory:    store.directory,
		Identity:     identity.NewResolver(store.directory, logger),
		Postgres:     store.ping,
		Redis:        rdb,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("api-server stopped")
}

func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		mem := memstore.New()
		return &storage{
			slots:        mem.Slots(),
			appointments: mem.Appointments(),
			uow:          mem,
			directory:    mem.Directory(),
			close:        func() {},
		}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to Postgres")

	return &storage{
		slots:        slot.NewPgRepository(pool),
		appointments: appointment.NewPgRepository(pool),
		uow:          appointment.NewPgUnitOfWork(pool),
		directory:    directory.NewPgRepository(pool),
		ping:         pool,
		close:        pool.Close,
	}, nil
}

// buildNotifier fans out to the log, the Redis channel and SendGrid when configured.
// Delivery runs off the request path.
func buildNotifier(cfg config.Config, rdb redis.UniversalClient, logger *zap.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if rdb != nil && cfg.NotifyRedisChannel != "" {
		notifiers = append(notifiers, notify.NewRedisNotifier(rdb, cfg.NotifyRedisChannel))
	}
	if sg := notify.NewSendGridNotifier(notify.SendGridConfig{
		APIKey:     cfg.SendGridAPIKey,
		FromEmail:  cfg.SendGridFromEmail,
		FromName:   cfg.SendGridFromName,
		FallbackTo: cfg.NotifyFallbackEmail,
	}, logger); sg != nil {
		notifiers = append(notifiers, sg)
	}
	return notify.NewAsync(notify.Multi(notifiers...), cfg.NotifyTimeout, logger)
}
