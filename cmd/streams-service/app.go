package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"pizzastream/internal/api"
	"pizzastream/internal/catalog"
	"pizzastream/internal/config"
	"pizzastream/internal/constants"
	"pizzastream/internal/logger"
	"pizzastream/internal/query"
	"pizzastream/internal/topology"
	"pizzastream/internal/windowstore"
	"pizzastream/pkg/bootstrap"
	"pizzastream/pkg/health"
	"pizzastream/pkg/logging"
	"pizzastream/pkg/metrics"
	"pizzastream/pkg/middleware"
	"pizzastream/pkg/ratelimit"
	"pizzastream/pkg/tracing"
)

const serviceName = "streams-service"

type App struct {
	config         *config.Config
	logger         logger.Logger
	base           *bootstrap.Base
	redis          redis.UniversalClient
	registry       *windowstore.Registry
	topology       *topology.Topology
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
	catalogBreaker *catalog.CircuitBreakerTable
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:   cfg,
		logger:   log,
		base:     bootstrap.NewBase(cfg, log),
		registry: windowstore.NewRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterStreamMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterAPIMetrics()

	table, err := a.initCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}

	if err := a.initTopology(table); err != nil {
		return fmt.Errorf("failed to initialize topology: %w", err)
	}

	a.initRouter(ctx)
	a.initServer()
	return nil
}

func (a *App) initCatalog(ctx context.Context) (catalog.Table, error) {
	if a.config.Catalog.Backend != constants.CatalogBackendRedis {
		return catalog.New(a.config.Catalog, nil, "")
	}

	client, err := bootstrap.InitRedis(ctx, a.config.Redis, a.logger)
	if err != nil {
		return nil, err
	}
	a.redis = client

	table, err := catalog.New(a.config.Catalog, client, a.config.Redis.KeyPrefix)
	if err != nil {
		return nil, err
	}
	a.catalogBreaker = catalog.NewCircuitBreakerTable(table, a.config.CircuitBreaker)
	return a.catalogBreaker, nil
}

func (a *App) initTopology(table catalog.Table) error {
	if err := a.base.InitProducer(); err != nil {
		return err
	}

	pipelines := []struct {
		name   string
		suffix string
	}{
		{constants.PipelineItems, constants.GroupSuffixItems},
		{constants.PipelineStatuses, constants.GroupSuffixStatuses},
		{constants.PipelineRevenue, constants.GroupSuffixRevenue},
	}
	for _, p := range pipelines {
		if _, err := a.base.InitConsumer(p.name, p.suffix); err != nil {
			return err
		}
	}

	topo, err := topology.New(a.config, topology.Deps{
		Producer:  a.base.Producer,
		Consumers: a.base.Consumers,
		Catalog:   table,
		Registry:  a.registry,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	a.topology = topo
	return nil
}

func (a *App) initRouter(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.logger))

	facade := query.NewFacade(a.registry, a.config.Streams.Revenue.Size, a.config.Query, a.logger)
	handler := api.NewHandler(facade, a.config.Query.Timeout, a.logger)

	apiGroup := router.Group("")
	if a.config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.config.RateLimit)
		apiGroup.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		a.logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}
	handler.RegisterRoutes(apiGroup)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewKafkaChecker(a.config.Broker.Kafka.Brokers))
	healthRegistry.RegisterOptional(health.NewFuncChecker("window_store", func(context.Context) error {
		_, err := a.registry.Store()
		return err
	}))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.catalogBreaker != nil {
		healthRegistry.RegisterOptional(health.NewFuncChecker("catalog_circuit_breaker", func(context.Context) error {
			if a.catalogBreaker.IsOpen() {
				return errors.New("circuit breaker is open")
			}
			return nil
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
}

func (a *App) initServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds,
	}
}

// Run serves HTTP and runs the topology until ctx is done or either fails,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(logging.WithServiceName(ctx, serviceName))

	g.Go(func() error {
		a.logger.InfowCtx(gctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.topology.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops intake first so that draining handlers can still publish
// and write window state, then closes state and clients.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var err error
	if a.server != nil {
		if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("server shutdown error: %w", shutdownErr))
		}
	}

	err = multierr.Append(err, a.base.Shutdown(shutdownCtx, func(ctx context.Context) error {
		var errs error
		if a.topology != nil {
			errs = multierr.Append(errs, a.topology.Close())
		}
		if a.redis != nil {
			if closeErr := a.redis.Close(); closeErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("redis close error: %w", closeErr))
			}
		}
		if a.tracerProvider != nil {
			if tpErr := a.tracerProvider.Shutdown(ctx); tpErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("tracer provider shutdown error: %w", tpErr))
			}
		}
		return errs
	}))

	return err
}
