package dealer

import (
	"github.com/smallbiznis/petroprice/internal/dealer/repository"
	"github.com/smallbiznis/petroprice/internal/dealer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dealer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
