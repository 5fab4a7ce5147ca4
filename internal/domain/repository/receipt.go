package repository

import (
	"context"

	"github.com/ketovdk/fiscalgate/internal/domain/model"
)

// ReceiptFilter narrows receipt collection queries. Zero-valued fields are
// ignored. Results are always ordered oldest first.
type ReceiptFilter struct {
	OrderID  string
	SiteID   string
	Type     model.ReceiptType
	SubType  model.ReceiptSubType
	Statuses []model.ReceiptStatus
	Limit    int
}

// ReceiptRepository describes persistence operations with receipts.
type ReceiptRepository interface {
	// Save inserts the receipt on first call (assigning ID) and updates the
	// stored record on subsequent calls.
	Save(ctx context.Context, receipt *model.Receipt) error
	GetByID(ctx context.Context, id int64) (*model.Receipt, error)
	GetByUUID(ctx context.Context, uuid string) (*model.Receipt, error)
	GetCollection(ctx context.Context, filter ReceiptFilter) ([]model.Receipt, error)
}
