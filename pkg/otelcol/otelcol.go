package otelcol

import (
	"context"

	"creatorhub-settlement/pkg/config"
	"creatorhub-settlement/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol",
	fx.Invoke(Register),
)

func providerOptions(exporter trace.SpanExporter) []trace.TracerProviderOption {
	return []trace.TracerProviderOption{
		trace.WithResource(resource.Default()),
		trace.WithBatcher(exporter),
	}
}

// Register installs the global tracer provider when an OTLP endpoint is
// configured; without one the job keeps the no-op provider.
func Register(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Otel.Addr == "" {
		return nil
	}

	exporter, err := exporters.ProvideHTTP(cfg)
	if err != nil {
		return err
	}

	tp := trace.NewTracerProvider(providerOptions(exporter)...)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				zap.L().Warn("failed to shut down tracer provider", zap.Error(err))
			}
			return nil
		},
	})

	return nil
}
