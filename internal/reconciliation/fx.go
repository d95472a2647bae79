package reconciliation

import (
	"github.com/smallbiznis/petroprice/internal/reconciliation/repository"
	"github.com/smallbiznis/petroprice/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
