package job

import (
	"github.com/ridgelinehq/roofcrm/internal/job/service"
	"go.uber.org/fx"
)

var Module = fx.Module("job.service",
	fx.Provide(service.NewService),
)
