package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/translog/internal/config"
	obsmetrics "github.com/smallbiznis/translog/internal/observability/metrics"
	"github.com/smallbiznis/translog/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Dispatcher paymentdomain.Dispatcher
	Adapters   *adapters.Registry
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	dispatcher paymentdomain.Dispatcher
	adapters   map[string]paymentdomain.PaymentAdapter
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	log := p.Log.Named("payment.webhook")
	return &Service{
		log:        log,
		dispatcher: p.Dispatcher,
		adapters:   buildAdapters(log, p.Adapters, providerConfigs(p.Cfg)),
		obsMetrics: p.ObsMetrics,
	}
}

func providerConfigs(cfg config.Config) []paymentdomain.AdapterConfig {
	return []paymentdomain.AdapterConfig{{
		Provider: "stripe",
		Config: map[string]any{
			"webhook_secret": cfg.Stripe.WebhookSecret,
			"tolerance":      cfg.Stripe.WebhookTolerance,
		},
	}}
}

func buildAdapters(log *zap.Logger, registry *adapters.Registry, configs []paymentdomain.AdapterConfig) map[string]paymentdomain.PaymentAdapter {
	enabled, disabled := registry.Configure(configs...)
	for provider, err := range disabled {
		log.Warn("payment provider disabled", zap.String("provider", provider), zap.Error(err))
	}
	return enabled
}

// IngestWebhook verifies the raw payload, parses it and dispatches the event.
// The payload must be the request body byte for byte.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (paymentdomain.DispatchResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.DispatchResult{}, paymentdomain.ErrInvalidProvider
	}
	adapter, ok := s.adapters[provider]
	if !ok {
		return paymentdomain.DispatchResult{}, paymentdomain.ErrProviderNotFound
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider), zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, provider, "unknown", "rejected")
		return paymentdomain.DispatchResult{}, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		s.log.Warn("webhook payload rejected", zap.String("provider", provider), zap.Error(err))
		return paymentdomain.DispatchResult{}, err
	}
	event.Provider = provider
	event.RawPayload = payload

	result, err := s.dispatcher.Dispatch(ctx, event)
	if err != nil && !errors.Is(err, paymentdomain.ErrHandlerFailed) {
		s.log.Error("webhook dispatch failed",
			zap.String("provider", provider),
			zap.String("event_id", event.ProviderEventID),
			zap.Error(err),
		)
	}
	return result, err
}
