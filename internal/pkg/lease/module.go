package lease

import (
	"context"

	"go.uber.org/fx"

	"github.com/ketovdk/fiscalgate/internal/config"
)

const pipelineLeaseKey = "fiscalgate:pipeline:lease"

// Module provides the pipeline run lease: redis-backed when a redis URL is
// configured, in-process otherwise.
var Module = fx.Options(
	fx.Provide(newLease),
)

type leaseParams struct {
	fx.In

	Ctx       context.Context
	Config    *config.Config
	Lifecycle fx.Lifecycle
}

func newLease(p leaseParams) (Lease, error) {
	if p.Config.RedisURL == "" {
		return NewLocal(), nil
	}

	r, err := NewRedisFromURL(p.Ctx, p.Config.RedisURL, pipelineLeaseKey, 2*p.Config.PipelineInterval)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return r.Close()
		},
	})
	return r, nil
}
