package observability

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader carries the request correlation id over HTTP and NATS.
const CorrelationHeader = "X-Correlation-ID"

type correlationKey struct{}

// MetricsHandler exposes the review service collectors in the Prometheus and OpenMetrics formats.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// WithCorrelationID binds id to ctx. Blank ids leave ctx untouched.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id bound by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Correlate tags the active span with the correlation id and returns logger scoped to it.
func Correlate(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	id := CorrelationID(ctx)
	if id == "" {
		return logger
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("correlation.id", id))
	}
	return logger.With().Str("correlation_id", id).Logger()
}
