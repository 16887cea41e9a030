package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/bulk-dispatch/internal/config"
	"github.com/kursadbilgin/bulk-dispatch/internal/handler"
	"github.com/kursadbilgin/bulk-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/bulk-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/bulk-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/bulk-dispatch/internal/observability"
	"github.com/kursadbilgin/bulk-dispatch/internal/provider"
	"github.com/kursadbilgin/bulk-dispatch/internal/provider/browser"
	"github.com/kursadbilgin/bulk-dispatch/internal/queue"
	"github.com/kursadbilgin/bulk-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/bulk-dispatch/internal/repository"
	"github.com/kursadbilgin/bulk-dispatch/internal/service"
	"github.com/kursadbilgin/bulk-dispatch/internal/sheet"
	"github.com/kursadbilgin/bulk-dispatch/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bulk-dispatch api stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()
	deps := handler.Dependencies{}
	reporters := service.Reporters{service.NewMetricsReporter(metrics)}

	var runHistory handler.RunHistory
	var attemptHistory handler.AttemptHistory
	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		defer sqlDB.Close()
		deps.DB = sqlDB

		runs := repository.NewGormRunRepo(db)
		attempts := repository.NewGormAttemptRepo(db)
		runHistory, attemptHistory = runs, attempts
		reporters = append(reporters, service.NewHistoryReporter(runs, attempts, logger))
		logger.Info("run history enabled")
	}

	var limiter ratelimit.RateLimiter = ratelimit.Unlimited{}
	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()
		deps.Redis = rdb
	}
	switch {
	case cfg.RateLimitPerMin <= 0:
		logger.Info("send rate limit disabled")
	case deps.Redis != nil:
		shared, err := infraredis.NewRedisRateLimiter(deps.Redis, cfg.RateLimitPerMin, time.Minute)
		if err != nil {
			return fmt.Errorf("redis rate limiter init failed: %w", err)
		}
		limiter = shared
	default:
		local, err := ratelimit.NewLocalRateLimiter(cfg.RateLimitPerMin)
		if err != nil {
			return fmt.Errorf("rate limiter init failed: %w", err)
		}
		limiter = local
	}

	if cfg.RabbitMQURL != "" {
		broker, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		publisher := queue.NewRabbitMQPublisher(broker)
		defer publisher.Close()
		deps.Broker = broker
		reporters = append(reporters, service.NewEventReporter(publisher, logger))
		logger.Info("dispatch events enabled")
	}

	msgTransport, err := newTransport(cfg, logger)
	if err != nil {
		return err
	}

	dispatcher, err := service.NewDispatcher(msgTransport, sheet.NewExtensionReader(), limiter, service.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		MessageDelay: cfg.MessageDelay,
	}, logger)
	if err != nil {
		return fmt.Errorf("dispatcher init failed: %w", err)
	}
	dispatcher.SetReporter(reporters)

	dispatchHandler, err := handler.NewDispatchHandler(dispatcher, cfg.UploadDir, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "bulk-dispatch",
		BodyLimit:             cfg.MaxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, deps)
	handler.RegisterDispatchRoutes(app, dispatchHandler)
	handler.RegisterRunRoutes(app, handler.NewRunsHandler(runHistory, attemptHistory))
	handler.RegisterStaticRoutes(app, cfg.StaticDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("bulk-dispatch api started",
			zap.String("addr", addr),
			zap.String("transport", provider.NameOf(msgTransport)),
		)
		if err := app.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := dispatcher.Shutdown(shutdownCtx); err != nil {
			logger.Warn("dispatcher did not stop in time", zap.Error(err))
		}
		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}

func newTransport(cfg *config.Config, logger *zap.Logger) (provider.Transport, error) {
	switch cfg.Transport {
	case config.TransportWebhook:
		t, err := provider.NewWebhookTransport(cfg.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("webhook transport init failed: %w", err)
		}
		return t, nil
	default:
		return browser.NewTransport(browser.Config{
			BaseURL:             cfg.WhatsAppWebURL,
			ChromePath:          cfg.ChromePath,
			UserDataDir:         cfg.ChromeUserDataDir,
			Profile:             cfg.ChromeProfile,
			Headless:            cfg.ChromeHeadless,
			SessionCheckTimeout: cfg.SessionCheckTimeout,
			LoginTimeout:        cfg.LoginTimeout,
			ChatLoadTimeout:     cfg.ChatLoadTimeout,
			UploadTimeout:       cfg.UploadTimeout,
		}, logger), nil
	}
}
