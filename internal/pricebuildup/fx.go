package pricebuildup

import (
	"github.com/smallbiznis/petroprice/internal/pricebuildup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricebuildup.service",
	fx.Provide(service.New),
)
