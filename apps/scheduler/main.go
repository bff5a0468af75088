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
	"github.com/smallbiznis/collabhub/internal/migration"
	"github.com/smallbiznis/collabhub/internal/observability"
	"github.com/smallbiznis/collabhub/internal/ratelimit"
	"github.com/smallbiznis/collabhub/internal/scheduler"
	"github.com/smallbiznis/collabhub/pkg/db"
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
		cache.Module,
		jobs.Module,

		// Domain services the jobs drive
		audit.Module,
		authorization.Module,
		marketplace.Module,

		// Job locks only; the mutation limiter is unused here.
		ratelimit.Module,

		// No server module. This process exists to run jobs.
		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.SchedulerEnabled = true
			return cfg
		}),
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
