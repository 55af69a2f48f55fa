package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/internal/config"
	"github.com/smallbiznis/herbcart/internal/logger"
	"github.com/smallbiznis/herbcart/internal/migration"
	"github.com/smallbiznis/herbcart/internal/server"
	"github.com/smallbiznis/herbcart/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
