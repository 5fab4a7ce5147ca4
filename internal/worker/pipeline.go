package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ketovdk/fiscalgate/internal/adapter/pangaea"
	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/domain/repository"
	"github.com/ketovdk/fiscalgate/internal/fiscal/codec"
	"github.com/ketovdk/fiscalgate/internal/metrics"
	"github.com/ketovdk/fiscalgate/internal/pkg/lease"
	"github.com/ketovdk/fiscalgate/internal/usecase"
)

// Pipeline drives unfinished receipts to a terminal status. Each pass picks
// up receipts awaiting a poll (WAIT, ASSUME) and receipts that never reached
// the gateway (REPEAT, PREPARED), and replays them against the cash register.
//
// Only one pass may run at a time across all replicas; the lease guarantees
// that. A pass that cannot take the lease is skipped, not queued.
type Pipeline struct {
	receipts repository.ReceiptRepository
	gateway  usecase.Gateway
	lease    lease.Lease
	batch    int
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	now func() time.Time
}

// NewPipeline constructs the receipt pipeline.
func NewPipeline(
	receipts repository.ReceiptRepository,
	gateway usecase.Gateway,
	l lease.Lease,
	batch int,
	ttl time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	if batch <= 0 {
		batch = 1
	}
	return &Pipeline{
		receipts: receipts,
		gateway:  gateway,
		lease:    l,
		batch:    batch,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Update runs one pipeline pass. It reports false when another pass holds
// the lease; the pass is skipped without touching any receipt.
func (p *Pipeline) Update(ctx context.Context) (bool, error) {
	ok, err := p.lease.TryAcquire(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		p.metrics.ObservePipelineRun("skipped", 0)
		return false, nil
	}
	defer func() {
		if err := p.lease.Release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("pipeline lease release failed", slog.String("error", err.Error()))
		}
	}()

	started := p.now()
	err = p.run(ctx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.metrics.ObservePipelineRun(result, p.now().Sub(started))
	return true, err
}

func (p *Pipeline) run(ctx context.Context) error {
	queue, err := p.selectQueue(ctx)
	if err != nil {
		return err
	}

	for i := range queue {
		receipt := &queue[i]

		if receipt.ExpiredAt(p.now(), p.ttl) {
			receipt.Status = model.StatusExpired
			if err := p.receipts.Save(ctx, receipt); err != nil {
				return err
			}
			p.metrics.ObserveStatus(string(receipt.Status))
			p.logger.Warn("receipt expired",
				slog.String("order", receipt.OrderID),
				slog.String("uuid", receipt.UUID),
			)
			continue
		}

		stop, err := p.handle(ctx, receipt)
		if err != nil {
			return err
		}
		if stop {
			// The gateway answered with a retriable failure; the rest of
			// the queue would very likely hit the same wall this pass.
			return nil
		}
	}
	return nil
}

// selectQueue loads the work set: a bounded slice of receipts awaiting a
// poll plus every receipt awaiting re-submission. Oldest first within each
// group.
func (p *Pipeline) selectQueue(ctx context.Context) ([]model.Receipt, error) {
	polling, err := p.receipts.GetCollection(ctx, repository.ReceiptFilter{
		Statuses: []model.ReceiptStatus{model.StatusWait, model.StatusAssume},
		Limit:    p.batch,
	})
	if err != nil {
		return nil, err
	}
	resubmit, err := p.receipts.GetCollection(ctx, repository.ReceiptFilter{
		Statuses: []model.ReceiptStatus{model.StatusRepeat, model.StatusPrepared},
	})
	if err != nil {
		return nil, err
	}
	return append(polling, resubmit...), nil
}

func (p *Pipeline) handle(ctx context.Context, receipt *model.Receipt) (stop bool, err error) {
	var resp *pangaea.Response
	if receipt.Status.NeedsResubmit() {
		resp, err = p.resubmit(ctx, receipt)
	} else {
		resp, err = p.gateway.GetReceipt(ctx, receipt.UUID)
	}
	if err != nil {
		var transportErr *domainErrors.TransportError
		if errors.As(err, &transportErr) {
			receipt.MarkPrepared()
			if saveErr := p.receipts.Save(ctx, receipt); saveErr != nil {
				return false, saveErr
			}
			p.logger.Warn("gateway unreachable, receipt kept prepared",
				slog.String("uuid", receipt.UUID),
				slog.String("error", err.Error()),
			)
			return false, nil
		}
		var codecErr *domainErrors.CodecError
		var validationErr *domainErrors.ValidationError
		if errors.As(err, &codecErr) || errors.As(err, &validationErr) {
			// Unserializable content will never transmit; park the receipt
			// so operators notice instead of retrying forever.
			receipt.Status = model.StatusError
			receipt.ResponseBody = err.Error()
			if saveErr := p.receipts.Save(ctx, receipt); saveErr != nil {
				return false, saveErr
			}
			p.metrics.ObserveStatus(string(receipt.Status))
			p.logger.Error("receipt cannot be encoded",
				slog.String("uuid", receipt.UUID),
				slog.String("error", err.Error()),
			)
			return false, nil
		}
		return false, err
	}
	if resp == nil {
		return false, nil
	}

	receipt.SetFiscalResult(resp.Code, string(resp.Body))
	if err := p.receipts.Save(ctx, receipt); err != nil {
		return false, err
	}
	p.metrics.ObserveStatus(string(receipt.Status))
	p.logger.Info("receipt updated",
		slog.String("order", receipt.OrderID),
		slog.String("uuid", receipt.UUID),
		slog.String("status", string(receipt.Status)),
	)

	switch receipt.Status {
	case model.StatusRepeat, model.StatusAssume:
		return true, nil
	}
	return false, nil
}

// resubmit replays the receipt under its original idempotency key. A
// conflict means the gateway remembered the earlier attempt, so the actual
// state comes from a poll instead.
func (p *Pipeline) resubmit(ctx context.Context, receipt *model.Receipt) (*pangaea.Response, error) {
	payload, err := codec.EncodeReceipt(receipt)
	if err != nil {
		return nil, err
	}
	resp, err := p.gateway.SendReceipt(ctx, receipt.UUID, payload)
	if err != nil {
		return nil, err
	}
	if resp.Code == http.StatusConflict {
		return p.gateway.GetReceipt(ctx, receipt.UUID)
	}
	return resp, nil
}
