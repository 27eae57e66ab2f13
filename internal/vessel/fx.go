package vessel

import (
	"github.com/smallbiznis/translog/internal/vessel/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("vessel.repository",
	fx.Provide(repository.Provide),
)
