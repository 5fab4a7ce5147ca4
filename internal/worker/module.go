package worker

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/ketovdk/fiscalgate/internal/config"
	"github.com/ketovdk/fiscalgate/internal/domain/repository"
	"github.com/ketovdk/fiscalgate/internal/metrics"
	"github.com/ketovdk/fiscalgate/internal/pkg/lease"
	"github.com/ketovdk/fiscalgate/internal/usecase"
)

// Module wires the pipeline and its runner into the fx graph.
var Module = fx.Provide(
	newPipeline,
	newRunner,
)

type pipelineParams struct {
	fx.In

	Receipts repository.ReceiptRepository
	Gateway  usecase.Gateway
	Lease    lease.Lease
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

func newPipeline(p pipelineParams) *Pipeline {
	return NewPipeline(p.Receipts, p.Gateway, p.Lease, p.Config.PipelineBatch, p.Config.ReceiptTTL, p.Logger, p.Metrics)
}

type runnerParams struct {
	fx.In

	Pipeline *Pipeline
	Config   *config.Config
	Logger   *slog.Logger
}

func newRunner(p runnerParams) *Runner {
	return NewRunner(p.Pipeline, p.Config.PipelineInterval, p.Logger)
}
