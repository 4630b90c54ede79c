package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/datahub-healthcheck/internal/client"
	"github.com/prperemyshlev/datahub-healthcheck/internal/config"
	"github.com/prperemyshlev/datahub-healthcheck/internal/handler"
	"github.com/prperemyshlev/datahub-healthcheck/internal/repository"
	"github.com/prperemyshlev/datahub-healthcheck/internal/service"
	"github.com/prperemyshlev/datahub-healthcheck/internal/waiter"
	"github.com/prperemyshlev/datahub-healthcheck/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	serviceName     = "datahub-healthcheck"
	shutdownTimeout = 5 * time.Second
)

// Option customizes an App
type Option func(*options)

type options struct {
	clock      waiter.Clock
	httpClient *http.Client
}

// WithClock replaces the wall clock used for the processing wait
func WithClock(clock waiter.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithHTTPClient replaces the client used to reach DataHub
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

type App struct {
	infra       Infrastructure
	config      *config.Config
	healthCheck service.HealthCheckService
	router      *gin.Engine
	server      *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{clock: waiter.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	logger := infra.Logger()

	if cfg.FlowManager.ProcessingWait.Duration < config.MinProcessingWait && cfg.IsProduction() {
		logger.Warn("Processing wait is shorter than the flow manager needs",
			zap.Duration("processing_wait", cfg.FlowManager.ProcessingWait.Duration),
			zap.Duration("minimum", config.MinProcessingWait),
		)
	}

	recorder, err := observability.NewRecorder(infra.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	datahub, err := client.New(client.Options{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.HTTPTimeout.Duration,
		Logger:     logger,
		Observer:   recorder,
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DataHub client: %w", err)
	}

	var (
		stores      []service.ReportStore
		history     service.RunHistory
		rateLimiter handler.Limiter
	)
	if redis := infra.Redis(); redis != nil {
		stores = append(stores, service.NewReportCache(redis, cfg.Redis.ReportTTL.Duration))
		rateLimiter = service.NewRateLimiter(redis, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration)
	}
	if pg := infra.Postgres(); pg != nil {
		repos := repository.NewRepositories(pg)
		stores = append(stores, repos.Run)
		history = repos.Run
	}

	healthCheck := service.NewHealthCheckService(
		newRunnerFactory(cfg, datahub, recorder, o.clock, logger),
		history,
		logger,
		stores...,
	)

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger, "/health", "/metrics"))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	reportHandler := handler.NewReportHandler(healthCheck)
	setupRoutes(router, cfg, reportHandler, rateLimiter, NewHealthChecker(infra), infra.MetricsHandler(), logger)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:       infra,
		config:      cfg,
		healthCheck: healthCheck,
		router:      router,
		server:      srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	reportHandler *handler.ReportHandler,
	rateLimiter handler.Limiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
	logger *zap.Logger,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	{
		api.GET("/report", reportHandler.GetReport)
		api.GET("/report/:group", reportHandler.GetGroup)
		api.GET("/runs", reportHandler.ListRuns)
		api.GET("/runs/:id", reportHandler.GetRun)
		api.POST("/runs",
			handler.APIKeyMiddleware(cfg.Security.APIKeyHash),
			handler.RateLimitMiddleware(rateLimiter, logger, handler.IPBasedKey),
			reportHandler.TriggerRun,
		)
	}
}

// RunOnce performs a single run and writes its report to w as JSON.
// It reports whether every check passed.
func (a *App) RunOnce(ctx context.Context, w io.Writer) (bool, error) {
	run, err := a.healthCheck.Run(ctx)
	if err != nil {
		return false, err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run.Report); err != nil {
		return false, fmt.Errorf("failed to write report: %w", err)
	}

	return run.Success, nil
}

// Run starts a first health check run in the background and serves the
// report API until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	if err := a.healthCheck.Trigger(ctx); err != nil {
		a.infra.Logger().Warn("Initial run was not started", zap.Error(err))
	}

	go func() {
		a.infra.Logger().Info("Report server starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Report server failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Shutdown(ctx)
	}()

	err := errors.Join(
		a.healthCheck.Shutdown(ctx),
		<-serverErr,
	)
	// stores close only after the last run has saved its report
	err = errors.Join(err, a.infra.Shutdown(ctx))
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
