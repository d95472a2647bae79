package pricingwindow

import (
	"github.com/smallbiznis/petroprice/internal/pricingwindow/repository"
	"github.com/smallbiznis/petroprice/internal/pricingwindow/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricingwindow.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
