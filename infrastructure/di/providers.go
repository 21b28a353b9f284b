package di

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/sony/gobreaker"
	supa "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/application/services"
	"mindo/infrastructure/config"
	"mindo/infrastructure/messaging/eventbridge"
	"mindo/infrastructure/persistence/dynamodb"
	"mindo/infrastructure/persistence/memory"
	"mindo/infrastructure/persistence/resilient"
	"mindo/infrastructure/persistence/sqlite"
	"mindo/infrastructure/persistence/supabase"
	"mindo/infrastructure/storage/local"
	"mindo/interfaces/http/rest"
	"mindo/pkg/auth"
	"mindo/pkg/errors"
	"mindo/pkg/observability"
)

// DevelopmentSecret signs tokens when no JWT_SECRET is configured outside
// production
const DevelopmentSecret = "development-secret-change-in-production"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build(zap.Fields(zap.String("service", "mindo")))
}

// ProvideAWSConfig creates AWS configuration. Loading does not touch the
// network, so it is safe for non-AWS backends too.
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

// ProvideSupabaseClient creates the Supabase client, or nil when the
// supabase store is not selected
func ProvideSupabaseClient(cfg *config.Config) (*supa.Client, error) {
	if cfg.Store != config.StoreSupabase {
		return nil, nil
	}
	return supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("mindo", cfg.EnableTracing)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(strings.ToLower(cfg.MetricsNamespace))
}

// ProvideCloudWatchMetrics creates the CloudWatch sink when metrics are
// enabled
func ProvideCloudWatchMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.CloudWatchMetrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCloudWatchMetrics(cfg.MetricsNamespace, client, logger)
}

// ProvideMetrics fans domain metrics out to every configured sink
func ProvideMetrics(collector *observability.Collector, cw *observability.CloudWatchMetrics) ports.Metrics {
	if cw == nil {
		return collector
	}
	return observability.MultiMetrics{collector, cw}
}

// ProvideGateway opens the configured store and, when enabled, puts it
// behind the circuit breaker
func ProvideGateway(
	cfg *config.Config,
	dynamo *awsdynamodb.Client,
	supabaseClient *supa.Client,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (ports.Gateway, func(), error) {
	var gateway ports.Gateway
	cleanup := func() {}

	switch cfg.Store {
	case config.StoreMemory:
		gateway = memory.NewGateway()
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close sqlite store", zap.Error(err))
			}
		}
		gateway = sqlite.NewGateway(db, logger)
	case config.StoreSupabase:
		gateway = supabase.NewGateway(supabaseClient, logger)
	case config.StoreDynamoDB:
		gateway = dynamodb.NewGateway(dynamo, cfg.DynamoDBTable, cfg.IndexName, logger)
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	logger.Info("Store selected", zap.String("store", cfg.Store))
	if cfg.EnableCircuitBreaker && cfg.Store != config.StoreMemory {
		gateway = resilient.NewGateway(gateway, resilient.DefaultBreakerConfig(cfg.Store), metrics, tracer, logger)
	}
	return gateway, cleanup, nil
}

// ProvideBlobStorage stores media in the Supabase bucket for the supabase
// store and on local disk otherwise
func ProvideBlobStorage(cfg *config.Config, supabaseClient *supa.Client, logger *zap.Logger) (ports.BlobStorage, error) {
	if cfg.Store == config.StoreSupabase {
		return supabase.NewBlobStorage(supabaseClient.Storage, cfg.StorageBucket, logger), nil
	}
	return local.NewBlobStorage(cfg.LocalBlobDir, cfg.LocalBlobURL, logger)
}

// ProvideEventPublisher publishes domain events to EventBridge when enabled
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvidePersistenceRunner creates the background persistence runner
func ProvidePersistenceRunner(cfg *config.Config, metrics ports.Metrics, logger *zap.Logger) *services.PersistenceRunner {
	return services.NewPersistenceRunner(cfg.Domain.PersistTimeout, metrics, logger)
}

// ProvideWorkspaces creates the per-user graph state cache
func ProvideWorkspaces(
	cfg *config.Config,
	gateway ports.Gateway,
	blobs ports.BlobStorage,
	publisher ports.EventPublisher,
	runner *services.PersistenceRunner,
	logger *zap.Logger,
) (*services.Workspaces, func()) {
	opts := []services.GraphStateOption{services.WithBlobStorage(blobs)}
	if publisher != nil {
		opts = append(opts, services.WithEventPublisher(publisher))
	}
	workspaces := services.NewWorkspaces(func(userID string) *services.GraphState {
		return services.NewGraphState(userID, gateway, runner, cfg.Domain, logger, opts...)
	}, cfg.WorkspaceTTL, logger)
	return workspaces, workspaces.Close
}

// ProvideLayoutService creates the layout service
func ProvideLayoutService(cfg *config.Config, workspaces *services.Workspaces, metrics ports.Metrics, logger *zap.Logger) *services.LayoutService {
	return services.NewLayoutService(workspaces, cfg.Domain, metrics, logger)
}

// ProvideReviewService creates the review service with the configured
// ladder policy
func ProvideReviewService(cfg *config.Config, workspaces *services.Workspaces, metrics ports.Metrics, logger *zap.Logger) *services.ReviewService {
	return services.NewReviewService(workspaces, nil, cfg.Domain, metrics, logger)
}

// ProvideAnalyticsService creates the analytics service
func ProvideAnalyticsService(cfg *config.Config, workspaces *services.Workspaces, reviews *services.ReviewService, logger *zap.Logger) *services.AnalyticsService {
	return services.NewAnalyticsService(workspaces, reviews, cfg.Domain, logger)
}

// ProvideAssetService creates the media upload service
func ProvideAssetService(cfg *config.Config, workspaces *services.Workspaces, blobs ports.BlobStorage, runner *services.PersistenceRunner, logger *zap.Logger) *services.AssetService {
	return services.NewAssetService(workspaces, blobs, runner, cfg.MaxUploadBytes, logger)
}

// ProvideJWTValidator creates the token validator. Lambda deployments rely
// on the API Gateway authorizer and get none.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.IsLambda {
			return nil, nil
		}
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = DevelopmentSecret
	}
	jwtCfg := auth.JWTConfig{SecretKey: secret, Issuer: cfg.JWTIssuer}
	return auth.NewJWTValidator(jwtCfg)
}

// ProvideRateLimiter counts in memory. Lambda instances sharing the DynamoDB
// store also count in the table, with the local window shedding bursts
// before they reach it.
func ProvideRateLimiter(cfg *config.Config, dynamo *awsdynamodb.Client) auth.RateLimiter {
	local := auth.NewSlidingWindowLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	if cfg.IsLambda && cfg.Store == config.StoreDynamoDB {
		return auth.NewCompositeRateLimiter(
			local,
			auth.NewDistributedRateLimiter(dynamo, cfg.DynamoDBTable, cfg.RateLimitRequests, cfg.RateLimitWindow),
		)
	}
	return local
}

// ProvideRouter assembles the HTTP surface
func ProvideRouter(
	cfg *config.Config,
	workspaces *services.Workspaces,
	layout *services.LayoutService,
	reviews *services.ReviewService,
	analytics *services.AnalyticsService,
	assets *services.AssetService,
	validator *auth.JWTValidator,
	limiter auth.RateLimiter,
	collector *observability.Collector,
	gateway ports.Gateway,
	blobs ports.BlobStorage,
	logger *zap.Logger,
) *rest.Router {
	opts := []rest.RouterOption{
		rest.WithMetrics(collector),
		rest.WithReadiness(readiness(gateway)),
	}
	if files, ok := blobs.(*local.BlobStorage); ok {
		opts = append(opts, rest.WithAssetFiles(files.Handler()))
	}

	return rest.NewRouter(
		rest.RouterConfig{
			EnableCORS:      cfg.EnableCORS,
			AllowedOrigins:  cfg.AllowedOrigins,
			Lambda:          cfg.IsLambda,
			Debug:           cfg.IsDevelopment(),
			RateLimit:       cfg.RateLimitRequests,
			RateLimitWindow: cfg.RateLimitWindow.String(),
		},
		workspaces, layout, reviews, analytics, assets,
		validator, limiter, logger, opts...,
	)
}

// readiness fails while the store's circuit breaker is open
func readiness(gateway ports.Gateway) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if rg, ok := gateway.(*resilient.Gateway); ok && rg.State() == gobreaker.StateOpen {
			return errors.NewUnavailableError("gateway")
		}
		return nil
	}
}
