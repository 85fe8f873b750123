package changeorder

import (
	"github.com/ridgelinehq/roofcrm/internal/changeorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("changeorder.service",
	fx.Provide(service.NewService),
)
