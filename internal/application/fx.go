package application

import (
	"github.com/smallbiznis/translog/internal/application/repository"
	"github.com/smallbiznis/translog/internal/application/service"
	"go.uber.org/fx"
)

var Module = fx.Module("application.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
