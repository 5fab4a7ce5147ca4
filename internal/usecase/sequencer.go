package usecase

import (
	"context"
	"fmt"

	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/domain/repository"
	"github.com/ketovdk/fiscalgate/internal/fiscal/codec"
)

// Settings is the fiscal context applied to every receipt the service
// issues.
type Settings struct {
	Taxation model.Taxation
	Location string
	Cashbox  string

	// PreFullScheme makes automatic fiscalization open an order with a
	// prepayment receipt before the full settlement one.
	PreFullScheme bool
}

// Sequencer validates and constructs receipts against the existing receipt
// history of an order, enforcing the legally mandated ordering. It performs
// no I/O beyond reading the history; transmission is the caller's job.
//
// Callers must serialize sequencer calls for the same order: two concurrent
// calls racing against the same stale history could both pass validation.
type Sequencer struct {
	receipts repository.ReceiptRepository
	settings Settings
}

// NewSequencer constructs a Sequencer.
func NewSequencer(receipts repository.ReceiptRepository, settings Settings) *Sequencer {
	return &Sequencer{receipts: receipts, settings: settings}
}

// CreateComing builds a coming receipt for the order. An empty subType
// selects one automatically: PRE when the order history is clean and the
// two-receipt scheme is configured, FULL otherwise. A nil amount is derived
// from the item totals.
func (s *Sequencer) CreateComing(
	ctx context.Context,
	orderID, siteID string,
	subType model.ReceiptSubType,
	items []model.ReceiptItem,
	total float64,
	notify model.Notify,
	customer *model.Customer,
	amount *model.Amount,
) (*model.Receipt, error) {
	history, err := s.receipts.GetCollection(ctx, repository.ReceiptFilter{OrderID: orderID, SiteID: siteID})
	if err != nil {
		return nil, fmt.Errorf("load receipt history: %w", err)
	}

	if subType == "" {
		subType = model.SubTypeFull
		if s.settings.PreFullScheme && findReceipt(history, model.TypeComing, model.SubTypePre) == nil {
			subType = model.SubTypePre
		}
	}

	if subType != model.SubTypeHand {
		if err := s.checkComingOrder(history, orderID, subType); err != nil {
			return nil, err
		}
	}

	if len(items) == 0 {
		return nil, &domainErrors.ValidationError{Reason: "receipt has no items"}
	}
	if notify.Empty() {
		return nil, &domainErrors.ValidationError{Reason: "receipt has no customer contacts"}
	}

	receipt := model.NewReceipt(model.TypeComing, subType, orderID, siteID)
	receipt.Items = items
	receipt.Notify = notify
	receipt.Customer = customer
	s.supplement(receipt)

	if amount != nil {
		receipt.Amount = *amount
	} else {
		if total <= 0 {
			total = receipt.TotalAmount()
		}
		prepaid := findReceipt(history, model.TypeComing, model.SubTypePre) != nil
		receipt.Amount = codec.SplitAmount(subType, prepaid, total)
	}

	return receipt, nil
}

// CreateRefund builds a refund receipt against the most recent non-refunded
// coming receipt of the order. Lines maps flattened unit indices (each unit
// of quantity in the source occupies its own index) onto refund amounts in
// (0, unit price].
func (s *Sequencer) CreateRefund(ctx context.Context, orderID, siteID string, lines map[int]float64) (*model.Receipt, error) {
	history, err := s.receipts.GetCollection(ctx, repository.ReceiptFilter{OrderID: orderID, SiteID: siteID})
	if err != nil {
		return nil, fmt.Errorf("load receipt history: %w", err)
	}

	source, err := s.refundSource(history, orderID)
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, &domainErrors.ValidationError{Reason: "no lines selected for refund"}
	}

	refund := source.CopyForRefund()

	var requested float64
	units := flattenUnits(source.Items)
	for index, amount := range lines {
		if index < 0 || index >= len(units) {
			return nil, &domainErrors.ValidationError{
				Reason: fmt.Sprintf("refund line index %d does not exist", index),
			}
		}
		unit := units[index]
		if amount <= 0 || amount > unit.Price {
			return nil, &domainErrors.ValidationError{
				Reason: fmt.Sprintf("refund amount %v for line %d is outside (0, %v]", amount, index, unit.Price),
			}
		}
		requested += amount
	}

	balance := receiptBalance(history)
	if requested > balance {
		return nil, &domainErrors.SequencingError{
			OrderID: orderID,
			Reason:  fmt.Sprintf("refund total %v exceeds order balance %v", requested, balance),
		}
	}

	// Deterministic item order regardless of map iteration.
	for index, unit := range units {
		amount, ok := lines[index]
		if !ok {
			continue
		}
		item := unit
		item.Quantity = 1
		item.Amount = amount
		refund.Items = append(refund.Items, item)
	}
	refund.Amount = model.Amount{Cashless: requested}

	return refund, nil
}

// CreateManual builds a HAND receipt from caller-supplied content, bypassing
// PRE/FULL sequencing. Manual refunds still honor the order balance rule.
func (s *Sequencer) CreateManual(
	ctx context.Context,
	receiptType model.ReceiptType,
	orderID, siteID string,
	items []model.ReceiptItem,
	notify model.Notify,
	amount *model.Amount,
) (*model.Receipt, error) {
	if len(items) == 0 {
		return nil, &domainErrors.ValidationError{Reason: "receipt has no items"}
	}
	if notify.Empty() {
		return nil, &domainErrors.ValidationError{Reason: "receipt has no customer contacts"}
	}

	receipt := model.NewReceipt(receiptType, model.SubTypeHand, orderID, siteID)
	receipt.Items = items
	receipt.Notify = notify
	s.supplement(receipt)

	if amount != nil {
		receipt.Amount = *amount
	} else {
		receipt.Amount = model.Amount{Cashless: receipt.TotalAmount()}
	}

	if receiptType == model.TypeRefundComing {
		history, err := s.receipts.GetCollection(ctx, repository.ReceiptFilter{OrderID: orderID, SiteID: siteID})
		if err != nil {
			return nil, fmt.Errorf("load receipt history: %w", err)
		}
		balance := receiptBalance(history)
		if refundTotal := receipt.Amount.Total(); refundTotal > balance {
			return nil, &domainErrors.SequencingError{
				OrderID: orderID,
				Reason:  fmt.Sprintf("refund total %v exceeds order balance %v", refundTotal, balance),
			}
		}
	}

	return receipt, nil
}

func (s *Sequencer) checkComingOrder(history []model.Receipt, orderID string, subType model.ReceiptSubType) error {
	switch subType {
	case model.SubTypePre:
		if len(history) > 0 {
			return &domainErrors.SequencingError{
				OrderID: orderID,
				Reason:  "order already has receipts, a prepayment receipt can only open a fresh order",
			}
		}
	case model.SubTypeFull:
		if findReceipt(history, model.TypeComing, model.SubTypeFull) != nil {
			return &domainErrors.SequencingError{
				OrderID: orderID,
				Reason:  "order already has a full settlement receipt",
			}
		}
		if findReceipt(history, model.TypeRefundComing, model.SubTypeFull) != nil {
			return &domainErrors.SequencingError{
				OrderID: orderID,
				Reason:  "order already has a full settlement refund, no further receipts permitted",
			}
		}
	default:
		return &domainErrors.ValidationError{Reason: fmt.Sprintf("unknown receipt subtype %q", subType)}
	}
	return nil
}

func (s *Sequencer) refundSource(history []model.Receipt, orderID string) (*model.Receipt, error) {
	if findReceipt(history, model.TypeRefundComing, model.SubTypeFull) != nil {
		return nil, &domainErrors.SequencingError{
			OrderID: orderID,
			Reason:  "order already has a full settlement refund",
		}
	}
	if findReceipt(history, model.TypeComing, model.SubTypeFull) == nil &&
		findReceipt(history, model.TypeRefundComing, model.SubTypePre) != nil {
		return nil, &domainErrors.SequencingError{
			OrderID: orderID,
			Reason:  "prepayment already refunded and no full settlement was issued",
		}
	}

	source := findReceipt(history, model.TypeComing, model.SubTypeFull)
	if source == nil {
		source = findReceipt(history, model.TypeComing, model.SubTypePre)
	}
	if source == nil {
		return nil, &domainErrors.SequencingError{
			OrderID: orderID,
			Reason:  "order has no coming receipt to refund",
		}
	}
	if source.Status != model.StatusCompleted {
		return nil, &domainErrors.SequencingError{
			OrderID: orderID,
			Reason:  fmt.Sprintf("receipt %d is not fiscalized yet (status %s)", source.ID, source.Status),
		}
	}
	return source, nil
}

func (s *Sequencer) supplement(r *model.Receipt) {
	r.Taxation = s.settings.Taxation
	r.Location = s.settings.Location
	r.Cashbox = s.settings.Cashbox
}

// findReceipt returns the first receipt matching type and subtype, nil when
// absent. An empty subtype matches any.
func findReceipt(history []model.Receipt, t model.ReceiptType, sub model.ReceiptSubType) *model.Receipt {
	for i := range history {
		if history[i].Type != t {
			continue
		}
		if sub != "" && history[i].SubType != sub {
			continue
		}
		return &history[i]
	}
	return nil
}

// flattenUnits expands every receipt line into per-unit lines so refunds can
// address a single unit of a multi-quantity position.
func flattenUnits(items []model.ReceiptItem) []model.ReceiptItem {
	var units []model.ReceiptItem
	for _, item := range items {
		count := int(item.Quantity)
		if count < 1 {
			count = 1
		}
		for k := 0; k < count; k++ {
			unit := item
			unit.Quantity = 1
			unit.Amount = item.Price
			units = append(units, unit)
		}
	}
	return units
}

// receiptBalance computes the refundable remainder of an order: fiscalized
// coming totals minus everything already refunded.
func receiptBalance(history []model.Receipt) float64 {
	var balance float64
	for i := range history {
		r := &history[i]
		amount := r.Amount.Total()
		if amount <= 0 {
			amount = r.TotalAmount()
		}
		switch r.Type {
		case model.TypeComing:
			balance += amount
		case model.TypeRefundComing:
			balance -= amount
		}
	}
	return balance
}
