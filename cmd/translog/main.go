package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/config"
	"github.com/smallbiznis/translog/internal/migration"
	"github.com/smallbiznis/translog/internal/observability"
	"github.com/smallbiznis/translog/internal/server"
	"github.com/smallbiznis/translog/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
