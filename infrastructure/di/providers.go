package di

import (
	"context"
	"fmt"

	"libreria/application/services"
	"libreria/infrastructure/config"
	"libreria/infrastructure/messaging/eventbridge"
	"libreria/infrastructure/persistence/dynamo"
	"libreria/infrastructure/persistence/memory"
	"libreria/infrastructure/persistence/store"
	"libreria/interfaces/http/rest"
	"libreria/pkg/auth"
	"libreria/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
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

// ProvideMetrics creates a metrics publisher. Disabled metrics produce a
// publisher with no client, which drops every datum.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) *observability.Metrics {
	namespace := fmt.Sprintf("Libreria/%s", cfg.Environment)
	if !cfg.EnableMetrics {
		return observability.NewMetrics(namespace, nil)
	}
	return observability.NewMetrics(namespace, client)
}

// ProvideTracer creates a tracer
func ProvideTracer() *observability.Tracer {
	return observability.NewTracer("libreria")
}

// ProvideItemStore selects and builds the storage backend.
func ProvideItemStore(
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (store.ItemStore, error) {
	var st store.ItemStore
	switch cfg.DBProvider {
	case config.ProviderDynamoDB:
		st = dynamo.New(client, cfg.DynamoDBTable, logger)
	case config.ProviderMemory:
		var err error
		st, err = memory.New(
			memory.WithPersistFile(cfg.DBFile),
			memory.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("build embedded store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown DB_PROVIDER %q", cfg.DBProvider)
	}

	if cfg.EnableMetrics {
		st = store.Instrument(st, metrics)
	}
	return st, nil
}

// ProvideTokenManager creates the session token manager.
func ProvideTokenManager(cfg *config.Config) (*auth.TokenManager, error) {
	secret := cfg.JWTSecret
	if secret == "" && !cfg.IsProduction() {
		secret = "development-secret-change-in-production"
	}
	return auth.NewTokenManager(secret, cfg.JWTIssuer, 0)
}

// ProvideEventPublisher creates the invoice event publisher. An empty bus
// name disables publishing.
func ProvideEventPublisher(
	client *awseventbridge.Client,
	cfg *config.Config,
	logger *zap.Logger,
) services.EventPublisher {
	if cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideUserService creates the user service
func ProvideUserService(st store.ItemStore, logger *zap.Logger) *services.UserService {
	return services.NewUserService(st, logger)
}

// ProvideBookService creates the book service
func ProvideBookService(st store.ItemStore, logger *zap.Logger) *services.BookService {
	return services.NewBookService(st, logger)
}

// ProvideCartService creates the cart service
func ProvideCartService(st store.ItemStore, books *services.BookService, cfg *config.Config, logger *zap.Logger) *services.CartService {
	return services.NewCartService(st, books, cfg.TaxRate, logger)
}

// ProvideInvoiceService creates the invoice service
func ProvideInvoiceService(
	st store.ItemStore,
	carts *services.CartService,
	publisher services.EventPublisher,
	logger *zap.Logger,
) *services.InvoiceService {
	return services.NewInvoiceService(st, carts, publisher, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	users *services.UserService,
	books *services.BookService,
	carts *services.CartService,
	invoices *services.InvoiceService,
	tokens *auth.TokenManager,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(cfg, users, books, carts, invoices, tokens, tracer, logger)
}
