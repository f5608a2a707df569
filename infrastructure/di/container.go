//go:build !wireinject
// +build !wireinject

package di

import (
	"context"

	"libreria/application/services"
	"libreria/infrastructure/config"
)

// InitializeContainer creates a fully wired container. Mirrors the wire
// provider graph for builds that skip code generation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}

	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dynamoClient := ProvideDynamoDBClient(awsCfg)
	eventBridgeClient := ProvideEventBridgeClient(awsCfg)
	cloudWatchClient := ProvideCloudWatchClient(awsCfg)

	metrics := ProvideMetrics(cloudWatchClient, cfg)
	tracer := ProvideTracer()

	st, err := ProvideItemStore(cfg, dynamoClient, metrics, logger)
	if err != nil {
		return nil, err
	}

	if err := services.EnsureTables(ctx, st); err != nil {
		return nil, err
	}

	tokens, err := ProvideTokenManager(cfg)
	if err != nil {
		return nil, err
	}

	publisher := ProvideEventPublisher(eventBridgeClient, cfg, logger)

	users := ProvideUserService(st, logger)
	books := ProvideBookService(st, logger)
	carts := ProvideCartService(st, books, cfg, logger)
	invoices := ProvideInvoiceService(st, carts, publisher, logger)

	router := ProvideRouter(cfg, users, books, carts, invoices, tokens, tracer, logger)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Users:    users,
		Books:    books,
		Carts:    carts,
		Invoices: invoices,
		Tokens:   tokens,
		Metrics:  metrics,
		Tracer:   tracer,
		Router:   router,
	}, nil
}
