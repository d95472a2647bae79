package component

import (
	"github.com/smallbiznis/petroprice/internal/component/repository"
	"github.com/smallbiznis/petroprice/internal/component/service"
	"go.uber.org/fx"
)

var Module = fx.Module("component.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
