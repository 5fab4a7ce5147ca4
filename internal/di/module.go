package di

import (
	"go.uber.org/fx"

	"github.com/ketovdk/fiscalgate/internal/adapter/pangaea"
	"github.com/ketovdk/fiscalgate/internal/app"
	"github.com/ketovdk/fiscalgate/internal/config"
	"github.com/ketovdk/fiscalgate/internal/logger"
	"github.com/ketovdk/fiscalgate/internal/metrics"
	"github.com/ketovdk/fiscalgate/internal/pkg/lease"
	"github.com/ketovdk/fiscalgate/internal/server/http/router"
	"github.com/ketovdk/fiscalgate/internal/storage/postgres"
	"github.com/ketovdk/fiscalgate/internal/usecase"
	"github.com/ketovdk/fiscalgate/internal/worker"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		postgres.Module,
		pangaea.Module,
		lease.Module,
		usecase.Module,
		worker.Module,
		fx.Provide(func(s *postgres.Storage) app.HealthChecker { return s }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
