package pangaea

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/ketovdk/fiscalgate/internal/config"
	"github.com/ketovdk/fiscalgate/internal/metrics"
)

// Module exposes the gateway client implementation to the fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(
		p.Config.PangaeaAddress,
		p.Config.ActorID,
		p.Config.ActorToken,
		p.Config.Cashbox,
		p.Config.Agent,
		p.Logger,
		p.Metrics,
	)
}
