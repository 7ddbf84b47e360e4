package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mindboard/application/commands/bus"
	commandhandlers "mindboard/application/commands/handlers"
	"mindboard/application/materializer"
	"mindboard/application/ports"
	querybus "mindboard/application/queries/bus"
	queryhandlers "mindboard/application/queries/handlers"
	"mindboard/application/session"
	"mindboard/domain/board"
	domainconfig "mindboard/domain/config"
	"mindboard/domain/suggestion"
	"mindboard/infrastructure/ai/openai"
	"mindboard/infrastructure/cache/badger"
	"mindboard/infrastructure/config"
	redislock "mindboard/infrastructure/lock/redis"
	"mindboard/infrastructure/messaging/eventbridge"
	"mindboard/infrastructure/persistence/dynamodb"
	"mindboard/infrastructure/persistence/memory"
	"mindboard/infrastructure/persistence/resilient"
	"mindboard/infrastructure/persistence/sqlite"
	"mindboard/pkg/clock"
	"mindboard/pkg/observability"
	"mindboard/pkg/ratelimit"
)

const serviceName = "mindboard"

// EngineConfig returns the current engine tunables. With a config file it
// follows hot reloads.
type EngineConfig func() *domainconfig.DomainConfig

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var zapCfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideClock returns the wall clock
func ProvideClock() clock.Clock {
	return clock.Real()
}

// ProvideIDGenerator creates the shared node and edge id generator
func ProvideIDGenerator(clk clock.Clock) *board.IDGenerator {
	return board.NewIDGenerator(clk)
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(serviceName)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetricsExporter publishes the collector to CloudWatch on Lambda,
// where nothing scrapes /metrics. Elsewhere it returns nil.
func ProvideMetricsExporter(cfg *config.Config, client *awscloudwatch.Client, collector *observability.Collector, clk clock.Clock) *observability.CloudWatchExporter {
	if !cfg.IsLambda {
		return nil
	}
	namespace := fmt.Sprintf("Mindboard/%s", cfg.Environment)
	return observability.NewCloudWatchExporter(client, namespace, collector, clk)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideBoardStore creates the configured remote store. Every backend but
// memory sits behind the circuit breaker.
func ProvideBoardStore(
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (ports.BoardStore, func(), error) {
	var (
		store   ports.BoardStore
		cleanup = func() {}
	)

	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Warn("Using in-memory board store; boards are lost on restart")
		return memory.NewStore(), cleanup, nil
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		store = s
		cleanup = func() {
			if err := s.Close(); err != nil {
				logger.Warn("Closing SQLite store failed", zap.Error(err))
			}
		}
	case config.StoreDynamoDB:
		store = dynamodb.NewBoardStore(client, cfg.DynamoDBTable, cfg.IndexName, logger)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	settings := resilient.DefaultSettings(cfg.StoreBackend)
	settings.MaxFailures = cfg.BreakerMaxFailures
	if cfg.BreakerTimeout > 0 {
		settings.OpenTimeout = cfg.BreakerTimeout
	}
	settings.CallTimeout = cfg.StoreTimeout

	logger.Info("Board store configured", zap.String("backend", cfg.StoreBackend))
	return resilient.NewStore(store, settings, metrics, tracer, logger), cleanup, nil
}

// ProvideBoardCache opens the local cache mirror, or returns nil when the
// cache is disabled
func ProvideBoardCache(cfg *config.Config, logger *zap.Logger) (ports.BoardCache, func(), error) {
	if !cfg.CacheEnabled {
		return nil, func() {}, nil
	}
	c, err := badger.Open(cfg.CacheDir, logger.Named("cache"))
	if err != nil {
		return nil, nil, err
	}
	return c, func() {
		if err := c.Close(); err != nil {
			logger.Warn("Closing board cache failed", zap.Error(err))
		}
	}, nil
}

// ProvideWriterLock picks the lease backend: Redis when configured,
// otherwise the DynamoDB table when boards live there. Nil disables leases.
func ProvideWriterLock(
	ctx context.Context,
	cfg *config.Config,
	client *awsdynamodb.Client,
	clk clock.Clock,
	logger *zap.Logger,
) (ports.WriterLock, func(), error) {
	switch {
	case cfg.RedisAddr != "":
		rc, err := redislock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return redislock.NewWriterLock(rc, cfg.LockPrefix, logger), func() { _ = rc.Close() }, nil
	case cfg.StoreBackend == config.StoreDynamoDB:
		return dynamodb.NewWriterLock(client, cfg.DynamoDBTable, clk, logger), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// ProvideEventPublisher creates the EventBridge publisher, or nil when no
// bus is configured
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, cfg.EventSource, logger)
}

// ProvideSuggester creates the AI collaborator adapter
func ProvideSuggester(cfg *config.Config, logger *zap.Logger) ports.Suggester {
	return openai.NewSuggester(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, logger.Named("suggester"))
}

// ProvideSuggestLimiter bounds suggestion requests per session. Counters
// live in the DynamoDB table when boards do, so every instance shares them.
// A zero limit disables it.
func ProvideSuggestLimiter(cfg *config.Config, client *awsdynamodb.Client, clk clock.Clock, logger *zap.Logger) ratelimit.Limiter {
	if cfg.SuggestRateLimit <= 0 {
		return nil
	}
	if cfg.StoreBackend == config.StoreDynamoDB {
		return dynamodb.NewRateLimiter(client, cfg.DynamoDBTable, "suggest", cfg.SuggestRateLimit, time.Minute, clk, logger.Named("ratelimit"))
	}
	return ratelimit.NewSlidingWindowLimiter(cfg.SuggestRateLimit, time.Minute, clk)
}

// ProvideConfigWatcher starts watching the config file for engine changes.
// Without a config file there is nothing to watch and it returns nil.
func ProvideConfigWatcher(cfg *config.Config, logger *zap.Logger) (*config.Watcher, func(), error) {
	if cfg.ConfigFile == "" {
		return nil, func() {}, nil
	}
	w, err := config.NewWatcher(cfg.ConfigFile, cfg.Engine, logger.Named("config"))
	if err != nil {
		return nil, nil, err
	}
	w.Start()
	return w, w.Stop, nil
}

// ProvideEngineConfig exposes the live engine tunables
func ProvideEngineConfig(cfg *config.Config, watcher *config.Watcher) EngineConfig {
	if watcher == nil {
		return func() *domainconfig.DomainConfig { return cfg.Engine }
	}
	return watcher.Current
}

// ProvideRegistry creates the session registry. New sessions pick up the
// engine tunables current at creation time.
func ProvideRegistry(
	store ports.BoardStore,
	cache ports.BoardCache,
	lock ports.WriterLock,
	publisher ports.EventPublisher,
	clk clock.Clock,
	ids *board.IDGenerator,
	engine EngineConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*session.Registry, func()) {
	registry := session.NewRegistry(session.Dependencies{
		Store:   store,
		Cache:   cache,
		Lock:    lock,
		Events:  publisher,
		Clock:   clk,
		IDs:     ids,
		Logger:  logger.Named("session"),
		Metrics: metrics,
	}, func() session.Options {
		return session.OptionsFromConfig(engine())
	})

	return registry, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		registry.CloseAll(ctx)
	}
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	registry *session.Registry,
	ids *board.IDGenerator,
	suggester ports.Suggester,
	publisher ports.EventPublisher,
	engine EngineConfig,
	clk clock.Clock,
	metrics *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.TracingMiddleware(tracer),
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)

	engineCfg := engine()
	boardHandlers := commandhandlers.NewBoardCommandHandlers(
		registry,
		ids,
		commandhandlers.OptionsFromConfig(engineCfg),
		logger,
		metrics,
	)
	if err := boardHandlers.Register(commandBus); err != nil {
		return nil, err
	}

	m := materializer.New(materializer.OptionsFromConfig(engineCfg), ids, logger, metrics)
	suggestionHandlers := commandhandlers.NewSuggestionCommandHandlers(
		registry,
		m,
		suggester,
		publisher,
		suggestion.ParseOptions{MaxDepth: engineCfg.MaxSuggestionDepth},
		clk,
		logger,
	)
	if err := suggestionHandlers.Register(commandBus); err != nil {
		return nil, err
	}

	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	registry *session.Registry,
	store ports.BoardStore,
	clk clock.Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(observabilityWrapper(metrics, logger))

	if err := queryhandlers.NewBoardQueryHandlers(registry, store, clk, logger).Register(queryBus); err != nil {
		return nil, err
	}
	return queryBus, nil
}

func observabilityWrapper(metrics *observability.Collector, logger *zap.Logger) func(querybus.QueryHandler) querybus.QueryHandler {
	return querybus.NewMetricsMiddleware(metrics, logger).Wrap
}
