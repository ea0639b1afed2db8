package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"creatorhub-settlement/internal/httpapi"
	"creatorhub-settlement/internal/server"
	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/gen"
	"creatorhub-settlement/pkg/health"
	"creatorhub-settlement/pkg/logger"
	"creatorhub-settlement/pkg/otelcol"
	"creatorhub-settlement/pkg/redis"
	"creatorhub-settlement/pkg/region"
	"creatorhub-settlement/pkg/task"
	"creatorhub-settlement/services/audit"
	"creatorhub-settlement/services/settlement"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		region.Module,
		redis.Module,
		task.Client,
		task.Server,
		gen.Module,
		health.Module,
		otelcol.Module,
		settlement.Module,
		audit.Module,
		httpapi.Module,
		server.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
