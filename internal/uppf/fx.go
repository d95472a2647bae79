package uppf

import (
	"github.com/smallbiznis/petroprice/internal/uppf/repository"
	"github.com/smallbiznis/petroprice/internal/uppf/service"
	"go.uber.org/fx"
)

var Module = fx.Module("uppf.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewRateSync),
)
