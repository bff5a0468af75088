package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/audit"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/cache"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/jobs"
	"github.com/smallbiznis/collabhub/internal/marketplace"
	"github.com/smallbiznis/collabhub/internal/observability"
	"github.com/smallbiznis/collabhub/internal/ratelimit"
	"github.com/smallbiznis/collabhub/internal/server"
	"github.com/smallbiznis/collabhub/pkg/db"
	"go.uber.org/fx"
)

// The API process serves HTTP only. Migrations and scheduled jobs run in
// their own processes.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		jobs.Module,

		audit.Module,
		authorization.Module,
		marketplace.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
