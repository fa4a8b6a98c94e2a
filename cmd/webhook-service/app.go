package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"lyftr/internal/config"
	"lyftr/internal/constants"
	"lyftr/internal/logger"
	"lyftr/internal/messages"
	"lyftr/pkg/bootstrap"
	"lyftr/pkg/health"
	"lyftr/pkg/metrics"
	"lyftr/pkg/middleware"
	"lyftr/pkg/ratelimit"
	"lyftr/pkg/tracing"
)

var errSecretMissing = errors.New("webhook secret is not configured")

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	metrics        *metrics.Metrics
	service        *messages.Service
	readiness      *health.CheckerRegistry
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
	// cancelBackground stops goroutines owned by middleware.
	cancelBackground context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		metrics:     metrics.New(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initService()
	a.initRouter()
	a.initServer()
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitSQLite(ctx)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *App) initService() {
	baseRepo := messages.NewRepository(a.db, a.metrics)

	// Schema creation failure is not fatal: the service starts and reports
	// not ready until the table exists.
	if err := baseRepo.Migrate(context.Background()); err != nil {
		a.Logger.ErrorwCtx(context.Background(), "failed to create messages schema", "error", err)
	}

	var repo messages.Repository = baseRepo
	if a.Config.CircuitBreaker.Enabled {
		repo = messages.NewCircuitBreakerRepository(baseRepo, a.Config.CircuitBreaker, a.metrics)
		a.Logger.InfowCtx(context.Background(), "circuit breaker enabled for message store")
	}

	var opts []messages.Option
	if a.Producer != nil {
		publisher := messages.NewBrokerEventPublisher(a.Producer, a.Config.Broker.Kafka.MessageTopic, a.metrics, a.Logger)
		opts = append(opts, messages.WithEventPublisher(publisher))
		a.Logger.InfowCtx(context.Background(), "message events enabled", "topic", a.Config.Broker.Kafka.MessageTopic)
	}

	a.service = messages.NewService(repo, []byte(a.Config.Webhook.Secret), a.metrics, a.Logger, opts...)
	a.registerHealth(repo)
}

func (a *App) registerHealth(repo messages.Repository) {
	readiness := health.NewCheckerRegistry()
	readiness.Register(health.NewStoreChecker("sqlite", repo))
	readiness.Register(health.NewFuncChecker("webhook_secret", func(ctx context.Context) error {
		if !a.Config.WebhookSecretValid() {
			return errSecretMissing
		}
		return nil
	}))
	a.readiness = readiness
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.Standard(a.Logger, a.metrics)...)

	handler := messages.NewHandler(a.service, a.Config.Webhook.SignatureHeader, a.Config.Webhook.MaxBodyBytes, a.Logger)

	var webhookMiddleware []gin.HandlerFunc
	if rl := a.Config.Server.RateLimit; rl.Enabled {
		bgCtx, cancel := context.WithCancel(context.Background())
		a.cancelBackground = cancel
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
			OnLimited:       handler.RateLimited,
		}
		webhookMiddleware = append(webhookMiddleware, ratelimit.RateLimitMiddleware(bgCtx, rateLimitConfig, a.metrics))
		a.Logger.InfowCtx(bgCtx, "rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler.RegisterRoutes(router, webhookMiddleware...)

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), constants.HealthCheckTimeout)
		defer cancel()

		h := a.readiness.Check(ctx)
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	a.router = router
}

func (a *App) initServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.cancelBackground != nil {
			a.cancelBackground()
		}

		if a.service != nil {
			a.service.Close()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(a.db)...)
		return errs
	})
}
