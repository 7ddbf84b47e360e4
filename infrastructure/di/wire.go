//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"mindboard/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideClock,
	ProvideIDGenerator,
	ProvideMetrics,
	ProvideCloudWatchClient,
	ProvideMetricsExporter,
	ProvideTracer,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideBoardStore,
	ProvideBoardCache,
	ProvideWriterLock,
	ProvideEventPublisher,
	ProvideSuggester,
	ProvideSuggestLimiter,
	ProvideConfigWatcher,
	ProvideEngineConfig,
	ProvideRegistry,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
