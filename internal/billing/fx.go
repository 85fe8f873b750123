package billing

import (
	"go.uber.org/fx"

	"github.com/ridgelinehq/roofcrm/internal/billing/service"
)

var Module = fx.Module("billing.service",
	fx.Provide(service.NewRenderer),
	fx.Provide(service.NewService),
)
