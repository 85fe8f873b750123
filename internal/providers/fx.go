package providers

import (
	"go.uber.org/fx"

	"github.com/ridgelinehq/roofcrm/internal/providers/pdf"
)

var Module = fx.Module("providers",
	fx.Provide(pdf.New),
)
