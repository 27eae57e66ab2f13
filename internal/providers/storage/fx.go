package storage

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/translog/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.storage",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "memory":
		log.Warn("using in-memory object storage; uploads are not durable")
		return NewMemory(""), nil
	case "supabase", "":
		return NewSupabase(SupabaseConfig{
			URL:            cfg.Storage.SupabaseURL,
			ServiceRoleKey: cfg.Storage.ServiceRoleKey,
			Bucket:         cfg.Storage.Bucket,
			Timeout:        cfg.Storage.Timeout,
		}, nil, log)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
