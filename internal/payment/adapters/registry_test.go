package adapters_test

import (
	"testing"
	"time"

	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/payment/adapters"
	"github.com/smallbiznis/translog/internal/payment/adapters/stripe"
	"github.com/smallbiznis/translog/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryConfigure(t *testing.T) {
	registry := adapters.NewRegistry(stripe.NewFactory(clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))), nil)
	assert.Equal(t, []string{"stripe"}, registry.Providers())

	enabled, disabled := registry.Configure(
		domain.AdapterConfig{Provider: " Stripe ", Config: map[string]any{"webhook_secret": "whsec_registry"}},
		domain.AdapterConfig{Provider: "paypal", Config: map[string]any{"webhook_secret": "unused"}},
	)
	require.Contains(t, enabled, "stripe")
	assert.NotContains(t, enabled, "paypal")
	assert.Empty(t, disabled)
}

func TestRegistryConfigureMissingSecretDisablesProvider(t *testing.T) {
	registry := adapters.NewRegistry(stripe.NewFactory(nil))

	enabled, disabled := registry.Configure(domain.AdapterConfig{
		Provider: "stripe",
		Config:   map[string]any{"webhook_secret": "  "},
	})
	assert.Empty(t, enabled)
	assert.ErrorIs(t, disabled["stripe"], domain.ErrInvalidConfig)
}

func TestRegistryNewAdapterUnknownProvider(t *testing.T) {
	registry := adapters.NewRegistry(stripe.NewFactory(nil))

	_, err := registry.NewAdapter("adyen", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	var empty *adapters.Registry
	_, err = empty.NewAdapter("stripe", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
	assert.Nil(t, empty.Providers())
}
