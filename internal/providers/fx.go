package providers

import (
	"github.com/smallbiznis/petroprice/internal/providers/accounting"
	"github.com/smallbiznis/petroprice/internal/providers/dealer"
	"github.com/smallbiznis/petroprice/internal/providers/npa"
	"github.com/smallbiznis/petroprice/internal/providers/slack"
	"github.com/smallbiznis/petroprice/internal/providers/station"
	"github.com/smallbiznis/petroprice/internal/providers/transaction"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	fx.Provide(accounting.New),
	fx.Provide(station.New),
	fx.Provide(dealer.New),
	fx.Provide(transaction.New),
	fx.Provide(npa.New),
	fx.Provide(slack.New),
)
