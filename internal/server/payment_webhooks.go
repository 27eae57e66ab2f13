package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
)

const defaultWebhookMaxBytes int64 = 1 << 20

// HandlePaymentWebhook reads the raw body unmodified; the provider signature
// covers the exact bytes received.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))

	limit := s.cfg.Stripe.MaxPayloadBytes
	if limit <= 0 {
		limit = defaultWebhookMaxBytes
	}
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.webhooks.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if result.EventID != 0 {
		c.Set("event_id", result.EventID.String())
	}
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
