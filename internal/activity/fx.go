package activity

import (
	"github.com/ridgelinehq/roofcrm/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(service.NewService),
)
