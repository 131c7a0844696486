package app

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/dbsync-orchestrator/internal/api"
	"github.com/stacklok/dbsync-orchestrator/internal/config"
	"github.com/stacklok/dbsync-orchestrator/internal/connect"
	"github.com/stacklok/dbsync-orchestrator/internal/connector"
	"github.com/stacklok/dbsync-orchestrator/internal/connector/builder"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/reconcile"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
	"github.com/stacklok/dbsync-orchestrator/internal/tasklock"
	"github.com/stacklok/dbsync-orchestrator/internal/telemetry"
	"github.com/stacklok/dbsync-orchestrator/internal/versions"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 60 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 75 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	tracerName = "github.com/stacklok/dbsync-orchestrator"
)

// DBSyncAppOptions is a function that configures the application builder
type DBSyncAppOptions func(*dbSyncAppConfig) error

// dbSyncAppConfig collects what is needed to build a DBSyncApp.
// Injected components take precedence over the ones derived from config.
type dbSyncAppConfig struct {
	config *config.Config

	store         store.Store
	locker        tasklock.Locker
	connectClient connect.Client
	lifecycle     connector.Lifecycle
	telemetry     *telemetry.Telemetry

	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...DBSyncAppOptions) (*dbSyncAppConfig, error) {
	cfg := &dbSyncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewDBSyncApp builds the application: store, locker, connector lifecycle, orchestrator,
// reconciler and HTTP server
func NewDBSyncApp(ctx context.Context, opts ...DBSyncAppOptions) (*DBSyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	// Release whatever was built if a later step fails
	var cleanups []func()
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		}
	}()

	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		tel := cfg.telemetry
		cleanups = append(cleanups, func() { _ = tel.Shutdown(context.Background()) })
	}

	if cfg.store == nil {
		cfg.store, err = store.NewFromConfig(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		cleanups = append(cleanups, cfg.store.Close)
	}

	if cfg.locker == nil {
		cfg.locker, err = tasklock.NewFromConfig(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create task locker: %w", err)
		}
		locker := cfg.locker
		cleanups = append(cleanups, func() { _ = locker.Close() })
	}

	if err := buildConnectorComponents(cfg); err != nil {
		return nil, fmt.Errorf("failed to build connector components: %w", err)
	}

	svc, err := buildOrchestrator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}

	reconciler, err := buildReconciler(cfg, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to build reconciler: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &DBSyncApp{
		config: cfg.config,
		components: &AppComponents{
			Orchestrator: svc,
			Reconciler:   reconciler,
			Connect:      cfg.connectClient,
			Store:        cfg.store,
			Locker:       cfg.locker,
			Telemetry:    cfg.telemetry,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds the handling of a single request
func WithRequestTimeout(d time.Duration) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithStore allows injecting a task store (for testing)
func WithStore(s store.Store) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		cfg.store = s
		return nil
	}
}

// WithLocker allows injecting a task locker (for testing)
func WithLocker(l tasklock.Locker) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		cfg.locker = l
		return nil
	}
}

// WithConnectClient allows injecting a Kafka Connect client (for testing)
func WithConnectClient(c connect.Client) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		cfg.connectClient = c
		return nil
	}
}

// WithLifecycle allows injecting the connector lifecycle (for testing)
func WithLifecycle(l connector.Lifecycle) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		cfg.lifecycle = l
		return nil
	}
}

// WithTelemetry allows injecting telemetry providers
func WithTelemetry(t *telemetry.Telemetry) DBSyncAppOptions {
	return func(cfg *dbSyncAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildConnectorComponents builds the Kafka Connect client, the config builders and the lifecycle manager
func buildConnectorComponents(b *dbSyncAppConfig) error {
	if b.lifecycle != nil {
		return nil
	}
	logger.Info("Initializing connector components")

	if b.connectClient == nil {
		connectCfg := b.config.Connect
		client, err := connect.NewClient(connectCfg.GetURL(),
			connect.WithTimeout(connectCfg.GetTimeout()),
			connect.WithBreaker(connectCfg.GetBreakerFailures(), connectCfg.GetBreakerOpenDuration()),
		)
		if err != nil {
			return fmt.Errorf("failed to create kafka connect client: %w", err)
		}
		b.connectClient = client
	}

	mysql, err := builder.NewMySQL(
		builder.WithProbeTimeout(b.config.Builder.GetProbeTimeout()),
		builder.WithKafkaBootstrapServers(b.config.Builder.GetKafkaBootstrapServers()),
	)
	if err != nil {
		return fmt.Errorf("failed to create mysql builder: %w", err)
	}
	registry, err := builder.NewRegistry(mysql)
	if err != nil {
		return err
	}

	b.lifecycle, err = connector.New(b.connectClient, registry,
		connector.WithRequiredKinds(task.DatabaseMySQL),
		connector.WithRemoteValidation(b.config.Connect.ValidateBeforeCreate),
		connector.WithTracer(b.telemetry.Tracer(tracerName)),
	)
	if err != nil {
		return fmt.Errorf("failed to create connector manager: %w", err)
	}

	logger.Infow("Connector components initialized", "connect_url", b.config.Connect.GetURL(),
		"kinds", registry.Kinds())
	return nil
}

// buildOrchestrator builds the task orchestrator with its metrics and tracer
func buildOrchestrator(b *dbSyncAppConfig) (orchestrator.Service, error) {
	taskMetrics, err := telemetry.NewTaskMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create task metrics: %w", err)
	}

	orchCfg := b.config.Orchestrator
	return orchestrator.New(b.store, b.lifecycle,
		orchestrator.WithLocker(b.locker),
		orchestrator.WithTracer(b.telemetry.Tracer(tracerName)),
		orchestrator.WithMetrics(taskMetrics),
		orchestrator.WithPersistGracePeriod(orchCfg.GetPersistGracePeriod()),
		orchestrator.WithRestartLimit(orchCfg.GetRestartInterval(), orchCfg.GetRestartBurst()),
	)
}

// buildReconciler builds the health reconciler, or returns nil when it is disabled
func buildReconciler(b *dbSyncAppConfig, svc orchestrator.Service) (reconcile.Reconciler, error) {
	if !b.config.Reconcile.Enabled {
		logger.Info("Health reconciler disabled")
		return nil, nil
	}

	reconcileMetrics, err := telemetry.NewReconcileMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile metrics: %w", err)
	}
	return reconcile.New(svc,
		reconcile.WithInterval(b.config.Reconcile.GetInterval()),
		reconcile.WithConcurrency(b.config.Reconcile.GetConcurrency()),
		reconcile.WithMetrics(reconcileMetrics),
	), nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *dbSyncAppConfig, svc orchestrator.Service) (*http.Server, error) {
	logger.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing wrap everything else so rejected requests are observed too
	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		metricsMiddleware,
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
	}, b.middlewares...)

	serverOpts := []api.ServerOption{api.WithMiddlewares(b.middlewares...)}
	if h := b.telemetry.PrometheusHandler(); h != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(h))
	}
	router := api.NewServer(svc, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	logger.Infow("HTTP server configured", "address", b.address, "version", versions.GetVersionInfo().Version)
	return server, nil
}
