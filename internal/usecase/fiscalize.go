package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ketovdk/fiscalgate/internal/adapter/pangaea"
	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/domain/repository"
	"github.com/ketovdk/fiscalgate/internal/fiscal/codec"
	"github.com/ketovdk/fiscalgate/internal/metrics"
)

// Gateway is the subset of the cash register client the use case consumes.
type Gateway interface {
	SendReceipt(ctx context.Context, uuid string, payload *codec.Payload) (*pangaea.Response, error)
	GetReceipt(ctx context.Context, uuid string) (*pangaea.Response, error)
	GetCashbox(ctx context.Context) (*pangaea.Response, error)
	ReceiptLink(uuid string) string
}

// OrderAdapter supplies order content for automatic fiscalization. The
// collaborating shop implements it; the HTTP layer wraps request bodies into
// one.
type OrderAdapter interface {
	Total(ctx context.Context, orderID, siteID string) (float64, error)
	Items(ctx context.Context, orderID, siteID string, subType model.ReceiptSubType) ([]model.ReceiptItem, error)
	Customer(ctx context.Context, orderID, siteID string) (*model.Customer, error)
	Notify(ctx context.Context, orderID, siteID string) (model.Notify, error)
}

// Fiscalization drives the full receipt flow: sequencing, encoding,
// transmission, status classification and persistence.
//
// Interactive calls fail fast on sequencing/validation/codec errors and on a
// terminal gateway rejection. Receipts left in an intermediate state
// (WAIT/ASSUME/REPEAT/PREPARED) are persisted and returned without error;
// the retry pipeline resolves them later.
type Fiscalization struct {
	sequencer *Sequencer
	receipts  repository.ReceiptRepository
	gateway   Gateway
	settings  Settings
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewFiscalization constructs the fiscalization use case.
func NewFiscalization(
	sequencer *Sequencer,
	receipts repository.ReceiptRepository,
	gateway Gateway,
	settings Settings,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Fiscalization {
	return &Fiscalization{
		sequencer: sequencer,
		receipts:  receipts,
		gateway:   gateway,
		settings:  settings,
		logger:    logger,
		metrics:   m,
	}
}

// Fiscalize issues a coming receipt for the order, pulling content through
// the adapter. An empty subType is selected automatically from the order
// history and the configured scheme.
func (f *Fiscalization) Fiscalize(ctx context.Context, orders OrderAdapter, orderID, siteID string, subType model.ReceiptSubType) (*model.Receipt, error) {
	total, err := orders.Total(ctx, orderID, siteID)
	if err != nil {
		return nil, fmt.Errorf("order total: %w", err)
	}
	items, err := orders.Items(ctx, orderID, siteID, subType)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	customer, err := orders.Customer(ctx, orderID, siteID)
	if err != nil {
		return nil, fmt.Errorf("order customer: %w", err)
	}
	notify, err := orders.Notify(ctx, orderID, siteID)
	if err != nil {
		return nil, fmt.Errorf("order notify: %w", err)
	}

	receipt, err := f.sequencer.CreateComing(ctx, orderID, siteID, subType, items, total, notify, customer, nil)
	if err != nil {
		return nil, err
	}
	return f.transmit(ctx, receipt)
}

// Refund issues a refund receipt for the selected flattened lines of the
// order's coming receipt.
func (f *Fiscalization) Refund(ctx context.Context, orderID, siteID string, lines map[int]float64) (*model.Receipt, error) {
	receipt, err := f.sequencer.CreateRefund(ctx, orderID, siteID, lines)
	if err != nil {
		return nil, err
	}
	return f.transmit(ctx, receipt)
}

// FiscalizeManual issues a HAND coming receipt from caller-supplied content.
func (f *Fiscalization) FiscalizeManual(ctx context.Context, orderID, siteID string, items []model.ReceiptItem, notify model.Notify, amount *model.Amount) (*model.Receipt, error) {
	receipt, err := f.sequencer.CreateManual(ctx, model.TypeComing, orderID, siteID, items, notify, amount)
	if err != nil {
		return nil, err
	}
	return f.transmit(ctx, receipt)
}

// RefundManual issues a HAND refund receipt from caller-supplied content.
func (f *Fiscalization) RefundManual(ctx context.Context, orderID, siteID string, items []model.ReceiptItem, notify model.Notify, amount *model.Amount) (*model.Receipt, error) {
	receipt, err := f.sequencer.CreateManual(ctx, model.TypeRefundComing, orderID, siteID, items, notify, amount)
	if err != nil {
		return nil, err
	}
	return f.transmit(ctx, receipt)
}

// VerifySettings checks the configured fiscal context against the cashbox
// registration on the gateway.
func (f *Fiscalization) VerifySettings(ctx context.Context) error {
	resp, err := f.gateway.GetCashbox(ctx)
	if err != nil {
		return err
	}
	if resp.Code != http.StatusOK {
		return &domainErrors.SettingsError{Reason: "invalid gateway credentials"}
	}

	info, err := resp.DecodeCashbox()
	if err != nil {
		return err
	}

	if info.Taxation&int(f.settings.Taxation) == 0 {
		var names []string
		for _, t := range model.TaxationsInMask(info.Taxation) {
			names = append(names, t.Name())
		}
		return &domainErrors.SettingsError{
			Reason: fmt.Sprintf("taxation regime not registered on the cashbox, available: %s", strings.Join(names, ", ")),
		}
	}

	for _, place := range info.BillingPlaces {
		if place == f.settings.Location {
			return nil
		}
	}
	return &domainErrors.SettingsError{
		Reason: fmt.Sprintf("billing place not registered on the cashbox, available: %s", strings.Join(info.BillingPlaces, ", ")),
	}
}

// OrderReceipts lists the receipt history of an order, oldest first.
func (f *Fiscalization) OrderReceipts(ctx context.Context, orderID, siteID string) ([]model.Receipt, error) {
	return f.receipts.GetCollection(ctx, repository.ReceiptFilter{OrderID: orderID, SiteID: siteID})
}

// Receipt loads a single receipt by storage id.
func (f *Fiscalization) Receipt(ctx context.Context, id int64) (*model.Receipt, error) {
	return f.receipts.GetByID(ctx, id)
}

// ReceiptLink returns the public render URL of a receipt.
func (f *Fiscalization) ReceiptLink(receipt *model.Receipt) string {
	return f.gateway.ReceiptLink(receipt.UUID)
}

func (f *Fiscalization) transmit(ctx context.Context, receipt *model.Receipt) (*model.Receipt, error) {
	payload, err := codec.EncodeReceipt(receipt)
	if err != nil {
		return nil, err
	}

	resp, err := f.gateway.SendReceipt(ctx, receipt.UUID, payload)
	if err != nil {
		var transportErr *domainErrors.TransportError
		if !errors.As(err, &transportErr) {
			return nil, err
		}
		// Never confirmed sent: persist for re-submission by the pipeline.
		receipt.MarkPrepared()
		if saveErr := f.receipts.Save(ctx, receipt); saveErr != nil {
			return nil, saveErr
		}
		f.metrics.ObserveStatus(string(receipt.Status))
		f.logger.Warn("receipt prepared, gateway unreachable",
			slog.String("order", receipt.OrderID),
			slog.String("uuid", receipt.UUID),
			slog.String("error", err.Error()),
		)
		return receipt, nil
	}

	// A duplicate conflict means the receipt was accepted earlier under the
	// same idempotency key; its actual state comes from a poll.
	if resp.Code == http.StatusConflict {
		resp, err = f.gateway.GetReceipt(ctx, receipt.UUID)
		if err != nil {
			var transportErr *domainErrors.TransportError
			if !errors.As(err, &transportErr) {
				return nil, err
			}
			receipt.MarkPrepared()
			if saveErr := f.receipts.Save(ctx, receipt); saveErr != nil {
				return nil, saveErr
			}
			return receipt, nil
		}
	}

	receipt.SetFiscalResult(resp.Code, string(resp.Body))
	if err := f.receipts.Save(ctx, receipt); err != nil {
		return nil, err
	}
	f.metrics.ObserveStatus(string(receipt.Status))

	if receipt.Status == model.StatusError {
		return receipt, &domainErrors.GatewayError{Code: resp.Code, Body: string(resp.Body)}
	}

	f.logger.Info("receipt submitted",
		slog.String("order", receipt.OrderID),
		slog.String("uuid", receipt.UUID),
		slog.String("status", string(receipt.Status)),
	)
	return receipt, nil
}
