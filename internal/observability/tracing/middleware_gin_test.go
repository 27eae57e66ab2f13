package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareRecordsRouteAndRecordIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/applications/:id", func(c *gin.Context) {
		c.Set("application_id", "1790000000000000000")
		c.Status(http.StatusOK)
	})
	r.POST("/api/payments/webhooks/:provider", func(c *gin.Context) {
		c.Set("event_id", "1790000000000000001")
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/applications/1790000000000000000", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/stripe", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "HTTP GET /api/applications/:id", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("translog.application_id", "1790000000000000000"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "HTTP POST /api/payments/webhooks/:provider", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(), attribute.String("translog.event_id", "1790000000000000001"))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
