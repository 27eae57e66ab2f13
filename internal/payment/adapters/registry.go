package adapters

import (
	"sort"
	"strings"

	"github.com/smallbiznis/translog/internal/payment/domain"
)

// Registry maps a provider name, as it appears in the webhook URL, to the
// factory that builds its verifier. Names are matched case insensitively.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]domain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		if name := providerKey(factory.Provider()); name != "" {
			registry.factories[name] = factory
		}
	}
	return registry
}

// Providers lists the registered provider names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) NewAdapter(provider string, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	factory, ok := r.factories[providerKey(provider)]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewAdapter(cfg)
}

// Configure builds a verifier for each config whose provider is registered.
// A provider whose factory rejects its config (a missing webhook secret, for
// instance) lands in disabled with the reason; configs for unregistered
// providers are skipped.
func (r *Registry) Configure(configs ...domain.AdapterConfig) (enabled map[string]domain.PaymentAdapter, disabled map[string]error) {
	enabled = make(map[string]domain.PaymentAdapter, len(configs))
	disabled = map[string]error{}
	for _, cfg := range configs {
		name := providerKey(cfg.Provider)
		if r == nil || r.factories[name] == nil {
			continue
		}
		adapter, err := r.NewAdapter(name, cfg)
		if err != nil {
			disabled[name] = err
			continue
		}
		enabled[name] = adapter
	}
	return enabled, disabled
}

func providerKey(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
