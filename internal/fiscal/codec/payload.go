package codec

import (
	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
)

// Payload is the receipt document the gateway accepts.
type Payload struct {
	Type     int              `json:"type"`
	Taxation int              `json:"taxation"`
	Items    []ItemPayload    `json:"items"`
	Amount   AmountPayload    `json:"amount"`
	Notify   []NotifyPayload  `json:"notify"`
	Customer *CustomerPayload `json:"customer,omitempty"`
	Loc      LocPayload       `json:"loc"`
}

type ItemPayload struct {
	Type          int     `json:"type"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	Amount        float64 `json:"amount"`
	PaymentMethod int     `json:"payment_method"`
	Vat           int     `json:"vat"`
}

type AmountPayload struct {
	Prepayment float64 `json:"prepayment"`
	Cashless   float64 `json:"cashless"`
}

type NotifyPayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type CustomerPayload struct {
	Name string `json:"name"`
}

type LocPayload struct {
	BillingPlace string `json:"billing_place"`
}

const (
	wireTypeComing = 1
	wireTypeRefund = 2
)

// EncodeReceipt serializes a receipt into the gateway payload, resolving VAT
// codes and payment methods. Validation and codec failures surface before any
// transmission happens.
func EncodeReceipt(r *model.Receipt) (*Payload, error) {
	if len(r.Items) == 0 {
		return nil, &domainErrors.ValidationError{Reason: "receipt has no items"}
	}
	if r.Notify.Empty() {
		return nil, &domainErrors.ValidationError{Reason: "receipt has no customer contacts"}
	}

	payload := &Payload{
		Type:     wireTypeComing,
		Taxation: int(r.Taxation),
		Loc:      LocPayload{BillingPlace: r.Location},
	}
	if r.Type == model.TypeRefundComing {
		payload.Type = wireTypeRefund
	}

	for _, item := range r.Items {
		encoded, err := encodeItem(r, item)
		if err != nil {
			return nil, err
		}
		payload.Items = append(payload.Items, encoded)
	}

	amount := r.Amount
	if amount.Total() <= 0 {
		amount = SplitAmount(r.SubType, false, r.TotalAmount())
	}
	payload.Amount = AmountPayload{Prepayment: amount.Prepayment, Cashless: amount.Cashless}

	if r.Notify.Email != "" {
		payload.Notify = append(payload.Notify, NotifyPayload{Type: "email", Value: r.Notify.Email})
	} else {
		payload.Notify = append(payload.Notify, NotifyPayload{Type: "phone", Value: r.Notify.Phone})
	}

	if r.Customer != nil && r.Customer.Name != "" {
		payload.Customer = &CustomerPayload{Name: r.Customer.Name}
	}

	return payload, nil
}

func encodeItem(r *model.Receipt, item model.ReceiptItem) (ItemPayload, error) {
	kind := item.Kind
	if kind == 0 {
		kind = model.ItemProduct
	}
	method := item.PaymentMethod

	// Prepayment receipts account every line as an advance payment.
	if r.SubType == model.SubTypePre {
		kind = model.ItemPayment
		if method == 0 {
			method = model.PaymentMethodPre100
		}
	}
	if method == 0 {
		method = model.PaymentMethodFull
	}

	vat, err := VatCode(r.Taxation, item.Vat, r.SubType)
	if err != nil {
		return ItemPayload{}, err
	}

	return ItemPayload{
		Type:          int(kind),
		Name:          item.Name,
		Price:         item.Price,
		Quantity:      item.Quantity,
		Amount:        item.Total(),
		PaymentMethod: int(method),
		Vat:           vat,
	}, nil
}
