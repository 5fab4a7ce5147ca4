package usecase

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/ketovdk/fiscalgate/internal/adapter/pangaea"
	"github.com/ketovdk/fiscalgate/internal/config"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/domain/repository"
	"github.com/ketovdk/fiscalgate/internal/metrics"
)

// Module wires the fiscalization use cases into the fx graph.
var Module = fx.Provide(
	newSettings,
	newGateway,
	newSequencer,
	newFiscalization,
)

func newGateway(c pangaea.Client) Gateway {
	return c
}

func newSettings(cfg *config.Config) Settings {
	return Settings{
		Taxation:      model.Taxation(cfg.Taxation),
		Location:      cfg.BillingPlace,
		Cashbox:       cfg.Cashbox,
		PreFullScheme: cfg.PreFullScheme,
	}
}

type sequencerParams struct {
	fx.In

	Receipts repository.ReceiptRepository
	Settings Settings
}

func newSequencer(p sequencerParams) *Sequencer {
	return NewSequencer(p.Receipts, p.Settings)
}

type fiscalizationParams struct {
	fx.In

	Sequencer *Sequencer
	Receipts  repository.ReceiptRepository
	Gateway   Gateway
	Settings  Settings
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

func newFiscalization(p fiscalizationParams) *Fiscalization {
	return NewFiscalization(p.Sequencer, p.Receipts, p.Gateway, p.Settings, p.Logger, p.Metrics)
}
