package observability

import (
	"github.com/smallbiznis/translog/internal/observability/logger"
	"github.com/smallbiznis/translog/internal/observability/metrics"
	"github.com/smallbiznis/translog/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the logger, the tracer and meter providers, the domain
// instruments and the HTTP metrics. The tracer provider is forced so the
// global propagator is installed even when no component asks for it.
var Module = fx.Module("observability",
	fx.Provide(
		NewConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
