package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/ridgelinehq/roofcrm/internal/activity"
	"github.com/ridgelinehq/roofcrm/internal/authorization"
	"github.com/ridgelinehq/roofcrm/internal/billing"
	"github.com/ridgelinehq/roofcrm/internal/changeorder"
	"github.com/ridgelinehq/roofcrm/internal/clock"
	"github.com/ridgelinehq/roofcrm/internal/config"
	"github.com/ridgelinehq/roofcrm/internal/docstore"
	"github.com/ridgelinehq/roofcrm/internal/job"
	"github.com/ridgelinehq/roofcrm/internal/migration"
	"github.com/ridgelinehq/roofcrm/internal/observability/logger"
	"github.com/ridgelinehq/roofcrm/internal/observability/metrics"
	"github.com/ridgelinehq/roofcrm/internal/providers"
	"github.com/ridgelinehq/roofcrm/internal/renderlock"
	"github.com/ridgelinehq/roofcrm/internal/server"
	"github.com/ridgelinehq/roofcrm/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Billing support
		authorization.Module,
		providers.Module,
		docstore.Module,
		renderlock.Module,

		// Feature domains
		job.Module,
		changeorder.Module,
		activity.Module,
		billing.Module,

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
