package di

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mindboard/application/commands/bus"
	"mindboard/application/ports"
	querybus "mindboard/application/queries/bus"
	"mindboard/application/session"
	"mindboard/infrastructure/config"
	"mindboard/pkg/clock"
	"mindboard/pkg/observability"
	"mindboard/pkg/ratelimit"
)

// shutdownGrace bounds the final saves and lease releases on shutdown
const shutdownGrace = 10 * time.Second

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *zap.Logger
	Clock           clock.Clock
	Metrics         *observability.Collector
	MetricsExporter *observability.CloudWatchExporter
	Tracer          *observability.Tracer
	Store           ports.BoardStore
	Watcher         *config.Watcher
	Registry        *session.Registry
	CommandBus      *bus.CommandBus
	QueryBus        *querybus.QueryBus
	SuggestLimiter  ratelimit.Limiter
}

// Ready reports whether the container can serve traffic: the remote store
// must answer a listing within the deadline of ctx
func (c *Container) Ready(ctx context.Context) error {
	_, err := c.Store.List(ctx)
	return err
}
