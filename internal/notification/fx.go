package notification

import (
	"github.com/smallbiznis/translog/internal/notification/domain"
	"github.com/smallbiznis/translog/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(
		service.NewService,
		func(s *service.Service) domain.Notifier { return s },
	),
	fx.Invoke(func(lc fx.Lifecycle, s *service.Service) {
		lc.Append(fx.Hook{OnStop: s.Wait})
	}),
)
