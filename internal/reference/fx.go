package reference

import (
	"context"

	"github.com/smallbiznis/translog/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("reference",
	fx.Provide(NewRepository),
	fx.Invoke(registerSeedCheck),
)

// registerSeedCheck warns at startup when the country list is empty, which
// leaves flag and nationality lookups unanswerable.
func registerSeedCheck(lc fx.Lifecycle, repo domain.Repository, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return CheckSeeded(ctx, repo, log.Named("reference"))
		},
	})
}

// CheckSeeded logs a warning when no countries are present.
func CheckSeeded(ctx context.Context, repo domain.Repository, log *zap.Logger) error {
	countries, err := repo.ListCountries(ctx)
	if err != nil {
		return err
	}
	if len(countries) == 0 {
		log.Warn("countries table is empty; run the reference data migration")
		return nil
	}
	log.Debug("reference data loaded", zap.Int("countries", len(countries)))
	return nil
}
