package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelateScopesLoggerToRequest(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)

	Correlate(context.Background(), logger).Info().Msg("plain")
	require.NotContains(t, out.String(), "correlation_id")

	ctx := WithCorrelationID(context.Background(), "  corr-42 ")
	require.Equal(t, "corr-42", CorrelationID(ctx))
	require.Equal(t, ctx, WithCorrelationID(ctx, " "), "blank ids keep the bound one")

	out.Reset()
	Correlate(ctx, logger).Info().Msg("tagged")
	require.Contains(t, out.String(), `"correlation_id":"corr-42"`)
}

func TestMetricsHandlerExposesReviewCollectors(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", MetricsHandler())
	ChainsGenerated().Inc()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "review_chains_generated_total")
}
