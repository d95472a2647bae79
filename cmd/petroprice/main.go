package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/petroprice/internal/audit"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/component"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/dealer"
	"github.com/smallbiznis/petroprice/internal/journal"
	"github.com/smallbiznis/petroprice/internal/lock"
	"github.com/smallbiznis/petroprice/internal/metricspush"
	"github.com/smallbiznis/petroprice/internal/migration"
	"github.com/smallbiznis/petroprice/internal/observability"
	"github.com/smallbiznis/petroprice/internal/pricebuildup"
	"github.com/smallbiznis/petroprice/internal/pricingwindow"
	"github.com/smallbiznis/petroprice/internal/providers"
	"github.com/smallbiznis/petroprice/internal/reconciliation"
	"github.com/smallbiznis/petroprice/internal/scheduler"
	"github.com/smallbiznis/petroprice/internal/seed"
	"github.com/smallbiznis/petroprice/internal/server"
	"github.com/smallbiznis/petroprice/internal/uppf"
	"github.com/smallbiznis/petroprice/pkg/db"
	"go.uber.org/fx"
)

// petroprice runs the API, the scheduler and migrations in one process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		cache.Module,
		providers.Module,
		metricspush.Module,

		// Functional Domains
		audit.Module,
		component.Module,
		pricebuildup.Module,
		pricingwindow.Module,
		reconciliation.Module,
		journal.Module,
		uppf.Module,
		dealer.Module,
		seed.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
