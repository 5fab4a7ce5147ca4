package app

import (
	"context"

	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/usecase"
)

// HealthChecker reports backing store availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReceiptFacade aggregates the application surface consumed by the HTTP
// layer.
type ReceiptFacade struct {
	fiscal *usecase.Fiscalization
	health HealthChecker
}

// NewReceiptFacade constructs the facade.
func NewReceiptFacade(fiscal *usecase.Fiscalization, health HealthChecker) *ReceiptFacade {
	return &ReceiptFacade{fiscal: fiscal, health: health}
}

func (f *ReceiptFacade) Fiscalize(ctx context.Context, orders usecase.OrderAdapter, orderID, siteID string, subType model.ReceiptSubType) (*model.Receipt, error) {
	return f.fiscal.Fiscalize(ctx, orders, orderID, siteID, subType)
}

func (f *ReceiptFacade) Refund(ctx context.Context, orderID, siteID string, lines map[int]float64) (*model.Receipt, error) {
	return f.fiscal.Refund(ctx, orderID, siteID, lines)
}

func (f *ReceiptFacade) FiscalizeManual(ctx context.Context, orderID, siteID string, items []model.ReceiptItem, notify model.Notify, amount *model.Amount) (*model.Receipt, error) {
	return f.fiscal.FiscalizeManual(ctx, orderID, siteID, items, notify, amount)
}

func (f *ReceiptFacade) RefundManual(ctx context.Context, orderID, siteID string, items []model.ReceiptItem, notify model.Notify, amount *model.Amount) (*model.Receipt, error) {
	return f.fiscal.RefundManual(ctx, orderID, siteID, items, notify, amount)
}

func (f *ReceiptFacade) OrderReceipts(ctx context.Context, orderID, siteID string) ([]model.Receipt, error) {
	return f.fiscal.OrderReceipts(ctx, orderID, siteID)
}

func (f *ReceiptFacade) Receipt(ctx context.Context, id int64) (*model.Receipt, error) {
	return f.fiscal.Receipt(ctx, id)
}

func (f *ReceiptFacade) ReceiptLink(receipt *model.Receipt) string {
	return f.fiscal.ReceiptLink(receipt)
}

func (f *ReceiptFacade) VerifySettings(ctx context.Context) error {
	return f.fiscal.VerifySettings(ctx)
}

func (f *ReceiptFacade) HealthCheck(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}
