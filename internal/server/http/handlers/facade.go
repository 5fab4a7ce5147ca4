package handlers

import (
	"context"

	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/usecase"
)

// ReceiptFacade describes the fiscalization operations exposed via HTTP.
type ReceiptFacade interface {
	Fiscalize(ctx context.Context, orders usecase.OrderAdapter, orderID, siteID string, subType model.ReceiptSubType) (*model.Receipt, error)
	Refund(ctx context.Context, orderID, siteID string, lines map[int]float64) (*model.Receipt, error)
	FiscalizeManual(ctx context.Context, orderID, siteID string, items []model.ReceiptItem, notify model.Notify, amount *model.Amount) (*model.Receipt, error)
	RefundManual(ctx context.Context, orderID, siteID string, items []model.ReceiptItem, notify model.Notify, amount *model.Amount) (*model.Receipt, error)
	OrderReceipts(ctx context.Context, orderID, siteID string) ([]model.Receipt, error)
	Receipt(ctx context.Context, id int64) (*model.Receipt, error)
	ReceiptLink(receipt *model.Receipt) string
	VerifySettings(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}
