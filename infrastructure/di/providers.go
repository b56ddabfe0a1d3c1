package di

import (
	"context"
	"fmt"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/application/services"
	"bobbin-backend/application/suggestions"
	domainconfig "bobbin-backend/domain/config"
	infraauth "bobbin-backend/infrastructure/auth"
	"bobbin-backend/infrastructure/config"
	"bobbin-backend/infrastructure/idempotency"
	"bobbin-backend/infrastructure/messaging"
	"bobbin-backend/infrastructure/messaging/eventbridge"
	"bobbin-backend/infrastructure/persistence/dynamodb"
	"bobbin-backend/infrastructure/persistence/memory"
	"bobbin-backend/infrastructure/persistence/postgres"
	"bobbin-backend/interfaces/http/rest"
	"bobbin-backend/interfaces/http/rest/middleware"
	"bobbin-backend/pkg/auth"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags "-X bobbin-backend/infrastructure/di.Version=..."
var Version = "dev"

const (
	eventRetention  = 90 * 24 * time.Hour
	tableCreateWait = time.Minute
	serviceName     = "bobbin-backend"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment)), nil
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

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideGraphStore opens the store selected by STORE_BACKEND. The cleanup
// closes the postgres pool.
func ProvideGraphStore(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.GraphStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		store, err := postgres.Open(cfg.DatabaseURL, postgres.Options{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close postgres pool", zap.Error(err))
			}
		}
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				cleanup()
				return nil, nil, err
			}
		}
		return store, cleanup, nil

	case config.StoreDynamoDB:
		store := dynamodb.NewStore(client, cfg.DynamoDBTable, logger)
		if cfg.AutoMigrate {
			if err := store.EnsureTable(ctx, tableCreateWait); err != nil {
				return nil, nil, err
			}
		}
		return store, func() {}, nil

	case config.StoreMemory:
		logger.Warn("Using the in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// ProvideEventPublisher fans events out to the log, the DynamoDB event log
// when the graph lives in DynamoDB, and EventBridge when a bus is set
func ProvideEventPublisher(cfg *config.Config, dynamoClient *awsdynamodb.Client, ebClient *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	fanout := messaging.Fanout{messaging.NewLogPublisher(logger)}
	if cfg.StoreBackend == config.StoreDynamoDB {
		fanout = append(fanout, dynamodb.NewEventLog(dynamoClient, cfg.DynamoDBTable, eventRetention))
	}
	if cfg.EventBusName != "" {
		fanout = append(fanout, eventbridge.NewPublisher(ebClient, cfg.EventBusName, logger))
	}
	return fanout
}

// ProvideSuggestionScorer picks the scorer named by SUGGESTION_SCORER
func ProvideSuggestionScorer(cfg *config.Config, logger *zap.Logger) ports.SuggestionScorer {
	if cfg.SuggestionScorer == config.ScorerEmbedding {
		return suggestions.NewEmbeddingScorer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, logger)
	}
	return suggestions.NewKeywordScorer()
}

// ProvideIdempotencyStore picks the backend named by IDEMPOTENCY_BACKEND
func ProvideIdempotencyStore(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.IdempotencyStore, func(), error) {
	switch cfg.IdempotencyBackend {
	case config.IdempotencyRedis:
		redisClient, err := idempotency.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return idempotency.NewRedisStore(redisClient), cleanup, nil
	case config.IdempotencyDynamoDB:
		return idempotency.NewDynamoDBStore(client, cfg.DynamoDBTable), func() {}, nil
	}
	return idempotency.NewMemoryStore(), func() {}, nil
}

// ProvideTokenVerifier accepts Supabase sessions and, when a secret is
// configured, locally signed tokens
func ProvideTokenVerifier(cfg *config.Config, logger *zap.Logger) (ports.TokenVerifier, error) {
	var chain infraauth.ChainVerifier
	if cfg.SupabaseURL != "" {
		v, err := infraauth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseKey, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase verifier: %w", err)
		}
		chain = append(chain, v)
	}
	if cfg.JWTSecret != "" {
		v, err := infraauth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, fmt.Errorf("failed to create jwt verifier: %w", err)
		}
		chain = append(chain, v)
	}
	if len(chain) == 0 {
		logger.Warn("No token verifier configured; every API request will be rejected")
	}
	return chain, nil
}

// ProvideSessionResolver resolves the caller from the request context
func ProvideSessionResolver() ports.SessionResolver {
	return infraauth.NewContextSession()
}

// ProvideRateLimiter counts in DynamoDB when RATE_LIMIT_TABLE is set so the
// limit holds across Lambda instances. A non-positive limit disables it.
func ProvideRateLimiter(cfg *config.Config, client *awsdynamodb.Client) auth.RateLimiter {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	if cfg.RateLimitTable != "" {
		return auth.NewDistributedRateLimiter(client, cfg.RateLimitTable, cfg.RateLimitPerMinute, time.Minute)
	}
	return auth.NewSlidingWindowLimiter(cfg.RateLimitPerMinute, time.Minute)
}

// ProvideCircuitBreaker creates the API circuit breaker
func ProvideCircuitBreaker(cfg *config.Config, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if cfg.BreakerMaxFailures <= 0 {
		return nil
	}
	return middleware.NewCircuitBreaker(middleware.CircuitBreakerConfig{
		Name:        "api",
		MaxFailures: uint32(cfg.BreakerMaxFailures),
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, logger)
}

// ProvideMetrics creates the collector. Under Lambda operation metrics are
// mirrored to CloudWatch.
func ProvideMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	var sink *observability.CloudWatchSink
	if cfg.IsLambda {
		sink = observability.NewCloudWatchSink(cfg.CloudWatchNamespace, client, logger)
	}
	return observability.NewCollector(cfg.MetricsNamespace, sink)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideDomainConfig loads the business rules
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	return config.LoadDomainConfig(cfg.DomainConfigFile, cfg.Environment)
}

// ProvideKnowledgeGraph creates the access layer
func ProvideKnowledgeGraph(
	store ports.GraphStore,
	session ports.SessionResolver,
	scorer ports.SuggestionScorer,
	publisher ports.EventPublisher,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Collector,
	tracer *observability.Tracer,
) *services.KnowledgeGraph {
	return services.NewKnowledgeGraph(store, session, scorer, publisher, domainCfg, logger, metrics, tracer)
}

// ProvideDomainConfigWatcher returns nil unless a domain config file is set
// and watching is enabled
func ProvideDomainConfigWatcher(cfg *config.Config, graph *services.KnowledgeGraph, logger *zap.Logger) *config.DomainConfigWatcher {
	if cfg.DomainConfigFile == "" || !cfg.WatchDomainConfig {
		return nil
	}
	return config.NewDomainConfigWatcher(cfg.DomainConfigFile, cfg.Environment, graph.SetDomainConfig, logger)
}

// ProvideErrorHandler creates the HTTP error handler; details are shown
// outside production
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	graph *services.KnowledgeGraph,
	store ports.GraphStore,
	verifier ports.TokenVerifier,
	idem ports.IdempotencyStore,
	limiter auth.RateLimiter,
	breaker *gobreaker.CircuitBreaker,
	errs *pkgerrors.ErrorHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(graph, store, verifier, idem, limiter, breaker, errs, metrics, rest.Options{
		Version:            Version,
		EnableCORS:         cfg.EnableCORS,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		EnableMetrics:      cfg.EnableMetrics,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
		IdempotencyTTL:     cfg.IdempotencyTTL,
	}, logger)
}
