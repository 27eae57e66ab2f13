package payment

import (
	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/payment/adapters"
	"github.com/smallbiznis/translog/internal/payment/adapters/stripe"
	disputerepo "github.com/smallbiznis/translog/internal/payment/dispute/repository"
	disputeservice "github.com/smallbiznis/translog/internal/payment/dispute/service"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	"github.com/smallbiznis/translog/internal/payment/repository"
	paymentservice "github.com/smallbiznis/translog/internal/payment/service"
	"github.com/smallbiznis/translog/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(disputerepo.Provide),
	fx.Provide(func(clk clock.Clock) *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(clk),
		)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(func(s *paymentservice.Service) paymentdomain.Dispatcher { return s }),
	fx.Provide(disputeservice.NewService),
	fx.Provide(webhook.NewService),
	fx.Invoke(paymentservice.RegisterHandlers),
	fx.Invoke(func(s *disputeservice.Service, d paymentdomain.Dispatcher) error {
		return s.Register(d)
	}),
)
